package models

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Listing types accepted by /api/listing/create. The last five are service
// categories: offerings by people rather than places, so bedroom counts do
// not apply to them.
const (
	TypeRentals          = "rentals"
	TypeForSale          = "for-sale"
	TypeBnbs             = "bnbs"
	TypeTechnicians      = "technicians"
	TypeArchitects       = "architects"
	TypeEngineers        = "engineers"
	TypeInteriorDesigner = "interior-designer"
	TypeFurniture        = "furniture"
)

var serviceTypes = map[string]bool{
	TypeTechnicians:      true,
	TypeArchitects:       true,
	TypeEngineers:        true,
	TypeInteriorDesigner: true,
	TypeFurniture:        true,
}

// IsServiceType reports whether the listing type is a service category.
func IsServiceType(listingType string) bool {
	return serviceTypes[listingType]
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(longitude, latitude float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{longitude, latitude}}
}

// ParseLocation converts a "lat,lng" text pair into a GeoPoint, swapping the
// order to the longitude-first convention used in storage.
func ParseLocation(s string) (*GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, errors.New("location must be a \"lat,lng\" pair")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, errors.New("invalid latitude")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, errors.New("invalid longitude")
	}
	return NewGeoPoint(lng, lat), nil
}

type Listing struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	PhoneNumber string             `bson:"phoneNumber" json:"phoneNumber"`
	Price       float64            `bson:"price" json:"price"`
	Bedrooms    string             `bson:"bedrooms,omitempty" json:"bedrooms,omitempty"`
	Type        string             `bson:"type" json:"type"`
	Furnished   bool               `bson:"furnished" json:"furnished"`
	Parking     bool               `bson:"parking" json:"parking"`
	ImageURLs   []string           `bson:"imageUrls" json:"imageUrls"`
	Location    *GeoPoint          `bson:"location,omitempty" json:"location,omitempty"`
	AreaName    string             `bson:"areaName,omitempty" json:"areaName,omitempty"`
	UserRef     string             `bson:"userRef" json:"userRef"`
	SavedCount  int64              `bson:"savedCount" json:"savedCount"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate enforces the invariants that binding tags cannot express:
// bedrooms is required unless the type is a service category, and service
// listings never carry a bedrooms value.
func (l *Listing) Validate() error {
	if IsServiceType(l.Type) {
		if l.Bedrooms != "" {
			return errors.New("bedrooms does not apply to service listings")
		}
		return nil
	}
	if l.Bedrooms == "" {
		return errors.New("bedrooms is required for property listings")
	}
	return nil
}
