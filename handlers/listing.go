package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kejafiti/database"
	"kejafiti/httperr"
	"kejafiti/middleware"
	"kejafiti/models"
	"kejafiti/search"
)

type ListingHandler struct {
	DB *mongo.Database
}

func NewListingHandler(db *mongo.Database) *ListingHandler {
	return &ListingHandler{DB: db}
}

// RegisterRoutes wires the listing endpoints. guard protects the
// owner-scoped operations; reads stay public.
func (h *ListingHandler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.POST("/create", guard, h.Create)
	rg.GET("/get/:id", h.Get)
	rg.GET("/getall", h.GetAll)
	rg.GET("/user/:id", guard, h.UserListings)
	rg.POST("/update/:id", guard, h.Update)
	rg.DELETE("/delete/:id", guard, h.Delete)
	rg.GET("/search", h.Search)
}

type CreateListingRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description" binding:"required"`
	PhoneNumber string          `json:"phoneNumber" binding:"required"`
	Price       float64         `json:"price" binding:"required"`
	Bedrooms    string          `json:"bedrooms"`
	Type        string          `json:"type" binding:"required,oneof=rentals for-sale bnbs technicians architects engineers interior-designer furniture"`
	Furnished   bool            `json:"furnished"`
	Parking     bool            `json:"parking"`
	ImageURLs   []string        `json:"imageUrls" binding:"required,min=1"`
	Location    json.RawMessage `json:"location"`
	AreaName    string          `json:"areaName"`
}

// resolveLocation accepts either a prebuilt GeoJSON point or a "lat,lng"
// string, which gets parsed and swapped to longitude-first.
func resolveLocation(raw json.RawMessage) (*models.GeoPoint, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var pair string
	if err := json.Unmarshal(raw, &pair); err == nil {
		return models.ParseLocation(pair)
	}

	var point models.GeoPoint
	if err := json.Unmarshal(raw, &point); err != nil {
		return nil, err
	}
	if point.Type == "" {
		point.Type = "Point"
	}
	return &point, nil
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	location, err := resolveLocation(req.Location)
	if err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	now := time.Now().UTC()
	listing := models.Listing{
		ID:          primitive.NewObjectID(),
		Name:        req.Name,
		Description: req.Description,
		PhoneNumber: req.PhoneNumber,
		Price:       req.Price,
		Bedrooms:    req.Bedrooms,
		Type:        req.Type,
		Furnished:   req.Furnished,
		Parking:     req.Parking,
		ImageURLs:   req.ImageURLs,
		Location:    location,
		AreaName:    req.AreaName,
		UserRef:     userID.Hex(),
		SavedCount:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Service categories never carry a bedroom count.
	if models.IsServiceType(listing.Type) {
		listing.Bedrooms = ""
	}
	if err := listing.Validate(); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.DB.Collection(database.Listings).InsertOne(ctx, listing); err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Listing created successfully",
		"listing": listing,
	})
}

func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var listing models.Listing
	err := h.DB.Collection(database.Listings).FindOne(ctx, bson.M{"_id": id}).Decode(&listing)
	if err == mongo.ErrNoDocuments {
		httperr.Abort(c, httperr.NotFound("Listing not found"))
		return
	}
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "listing": listing})
}

func (h *ListingHandler) GetAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.DB.Collection(database.Listings).Find(ctx, bson.M{},
		optionsFindNewestFirst())
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "listings": listings})
}

func (h *ListingHandler) UserListings(c *gin.Context) {
	ownerID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.DB.Collection(database.Listings).Find(ctx,
		bson.M{"userRef": ownerID.Hex()}, optionsFindNewestFirst())
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "listings": listings})
}

type UpdateListingRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	PhoneNumber *string         `json:"phoneNumber"`
	Price       *float64        `json:"price"`
	Bedrooms    *string         `json:"bedrooms"`
	Type        *string         `json:"type"`
	Furnished   *bool           `json:"furnished"`
	Parking     *bool           `json:"parking"`
	ImageURLs   []string        `json:"imageUrls"`
	Location    json.RawMessage `json:"location"`
	AreaName    *string         `json:"areaName"`
}

func (h *ListingHandler) Update(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listings := h.DB.Collection(database.Listings)

	listing, ok := h.requireOwnedListing(c, ctx, id)
	if !ok {
		return
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Name != nil {
		listing.Name = *req.Name
		set["name"] = *req.Name
	}
	if req.Description != nil {
		listing.Description = *req.Description
		set["description"] = *req.Description
	}
	if req.PhoneNumber != nil {
		listing.PhoneNumber = *req.PhoneNumber
		set["phoneNumber"] = *req.PhoneNumber
	}
	if req.Price != nil {
		listing.Price = *req.Price
		set["price"] = *req.Price
	}
	if req.Type != nil {
		listing.Type = *req.Type
		set["type"] = *req.Type
	}
	if req.Bedrooms != nil {
		listing.Bedrooms = *req.Bedrooms
		set["bedrooms"] = *req.Bedrooms
	}
	if req.Furnished != nil {
		listing.Furnished = *req.Furnished
		set["furnished"] = *req.Furnished
	}
	if req.Parking != nil {
		listing.Parking = *req.Parking
		set["parking"] = *req.Parking
	}
	if len(req.ImageURLs) > 0 {
		listing.ImageURLs = req.ImageURLs
		set["imageUrls"] = req.ImageURLs
	}
	if req.AreaName != nil {
		listing.AreaName = *req.AreaName
		set["areaName"] = *req.AreaName
	}
	if len(req.Location) > 0 {
		location, err := resolveLocation(req.Location)
		if err != nil {
			httperr.Abort(c, httperr.BadRequest(err.Error()))
			return
		}
		listing.Location = location
		set["location"] = location
	}

	if models.IsServiceType(listing.Type) && listing.Bedrooms != "" {
		listing.Bedrooms = ""
		set["bedrooms"] = ""
	}
	if err := listing.Validate(); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	if _, err := listings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		httperr.Abort(c, err)
		return
	}
	listing.UpdatedAt = set["updatedAt"].(time.Time)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Listing updated successfully",
		"listing": listing,
	})
}

func (h *ListingHandler) Delete(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, ok := h.requireOwnedListing(c, ctx, id); !ok {
		return
	}

	if _, err := h.DB.Collection(database.Listings).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		httperr.Abort(c, err)
		return
	}

	// Drop the save relations pointing at the deleted listing so the join
	// collection never references a dangling id.
	_, _ = h.DB.Collection(database.SavedListings).DeleteMany(ctx, bson.M{"listingId": id})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Listing has been deleted",
	})
}

func (h *ListingHandler) Search(c *gin.Context) {
	var filter search.ListingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listingsColl := h.DB.Collection(database.Listings)
	query := filter.Build()

	cursor, err := listingsColl.Find(ctx, query, filter.FindOptions())
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		httperr.Abort(c, err)
		return
	}

	// Total matches regardless of pagination, same filter.
	total, err := listingsColl.CountDocuments(ctx, query)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"total":    total,
		"listings": listings,
	})
}

// requireOwnedListing loads the listing and enforces that the session
// identity owns it.
func (h *ListingHandler) requireOwnedListing(c *gin.Context, ctx context.Context, id primitive.ObjectID) (*models.Listing, bool) {
	var listing models.Listing
	err := h.DB.Collection(database.Listings).FindOne(ctx, bson.M{"_id": id}).Decode(&listing)
	if err == mongo.ErrNoDocuments {
		httperr.Abort(c, httperr.NotFound("Listing not found"))
		return nil, false
	}
	if err != nil {
		httperr.Abort(c, err)
		return nil, false
	}

	if listing.UserRef != c.GetString(middleware.CtxUserID) {
		httperr.Abort(c, httperr.Forbidden("You can only manage your own listings"))
		return nil, false
	}
	return &listing, true
}
