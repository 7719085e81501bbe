// Package search builds the MongoDB query behind GET /api/listing/search.
package search

import (
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultLimit = 9

	// Sentinel values the client sends for "no preference".
	anyType     = "all"
	anyBedrooms = "Any"
)

// ListingFilter holds the optional search parameters exactly as they arrive
// on the query string. Numeric fields stay strings so malformed input can be
// dropped instead of failing the request.
type ListingFilter struct {
	SearchTerm string `form:"searchTerm"`
	Type       string `form:"type"`
	Bedrooms   string `form:"bedrooms"`
	Furnished  string `form:"furnished"`
	Parking    string `form:"parking"`
	MinPrice   string `form:"minPrice"`
	MaxPrice   string `form:"maxPrice"`
	Limit      string `form:"limit"`
	StartIndex string `form:"startIndex"`
}

// Build translates the filter into a bson document. An empty filter yields
// an empty document: browse everything.
func (f ListingFilter) Build() bson.M {
	query := bson.M{}

	if f.SearchTerm != "" {
		term := primitive.Regex{Pattern: regexp.QuoteMeta(f.SearchTerm), Options: "i"}
		query["$or"] = []bson.M{
			{"name": term},
			{"description": term},
			{"areaName": term},
		}
	}

	if f.Type != "" && f.Type != anyType {
		query["type"] = f.Type
	}

	if f.Bedrooms != "" && f.Bedrooms != anyBedrooms {
		query["bedrooms"] = f.Bedrooms
	}

	// Only the literal "true" filters; "false" means no preference, not a
	// negative filter.
	if f.Furnished == "true" {
		query["furnished"] = true
	}
	if f.Parking == "true" {
		query["parking"] = true
	}

	price := bson.M{}
	if min, err := strconv.ParseFloat(f.MinPrice, 64); err == nil {
		price["$gte"] = min
	}
	if max, err := strconv.ParseFloat(f.MaxPrice, 64); err == nil {
		price["$lte"] = max
	}
	if len(price) > 0 {
		query["price"] = price
	}

	return query
}

// FindOptions returns pagination and ordering for the search: newest created
// first, default page size 9.
func (f ListingFilter) FindOptions() *options.FindOptions {
	limit := int64(DefaultLimit)
	if n, err := strconv.ParseInt(f.Limit, 10, 64); err == nil && n > 0 {
		limit = n
	}

	var skip int64
	if n, err := strconv.ParseInt(f.StartIndex, 10, 64); err == nil && n > 0 {
		skip = n
	}

	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)
}
