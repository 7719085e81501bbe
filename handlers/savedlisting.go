package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kejafiti/database"
	"kejafiti/httperr"
	"kejafiti/models"
)

// SavedListingHandler maintains the save relation between users and listings
// together with the denormalized savedCount on each listing. The relation
// lives in its own join collection; a unique (userId, listingId) index makes
// duplicate saves a Conflict instead of a silent double count.
type SavedListingHandler struct {
	DB *mongo.Database
}

func NewSavedListingHandler(db *mongo.Database) *SavedListingHandler {
	return &SavedListingHandler{DB: db}
}

func (h *SavedListingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/listing/save/:id", h.Save)
	rg.DELETE("/listing/save/:id", h.Unsave)
	rg.GET("/user/saved", h.Saved)
}

func (h *SavedListingHandler) Save(c *gin.Context) {
	listingID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !h.exists(c, ctx, database.Listings, listingID, "Listing not found") {
		return
	}
	if !h.exists(c, ctx, database.Users, userID, "User not found") {
		return
	}

	saved := models.SavedListing{
		ID:        primitive.NewObjectID(),
		ListingID: listingID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := h.DB.Collection(database.SavedListings).InsertOne(ctx, saved); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			httperr.Abort(c, httperr.Conflict("Listing already saved"))
			return
		}
		httperr.Abort(c, err)
		return
	}

	count, err := h.adjustCount(ctx, listingID, 1)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Listing saved successfully",
		"savedCount": count,
	})
}

func (h *SavedListingHandler) Unsave(c *gin.Context) {
	listingID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var listing models.Listing
	err := h.DB.Collection(database.Listings).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err == mongo.ErrNoDocuments {
		httperr.Abort(c, httperr.NotFound("Listing not found"))
		return
	}
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	result, err := h.DB.Collection(database.SavedListings).DeleteOne(ctx, bson.M{
		"userId":    userID,
		"listingId": listingID,
	})
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	// Removing a save that does not exist is a no-op, not an error, and must
	// leave the counter alone.
	count := listing.SavedCount
	if result.DeletedCount > 0 {
		count, err = h.adjustCount(ctx, listingID, -1)
		if err != nil {
			httperr.Abort(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Listing removed from saved listings",
		"savedCount": count,
	})
}

func (h *SavedListingHandler) Saved(c *gin.Context) {
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: userID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.Listings},
			{Key: "localField", Value: "listingId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "listing"},
		}}},
		{{Key: "$unwind", Value: "$listing"}},
	}

	cursor, err := h.DB.Collection(database.SavedListings).Aggregate(ctx, pipeline)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	defer cursor.Close(ctx)

	var rows []struct {
		models.SavedListing `bson:",inline"`
		Listing             models.Listing `bson:"listing"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		httperr.Abort(c, err)
		return
	}

	listings := make([]models.Listing, len(rows))
	for i, row := range rows {
		listings[i] = row.Listing
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"savedListings": listings,
	})
}

// adjustCount moves savedCount by delta and returns the new value. The
// update runs as an aggregation pipeline so the decrement floors at zero
// inside the database, even under concurrent unsaves.
func (h *SavedListingHandler) adjustCount(ctx context.Context, listingID primitive.ObjectID, delta int64) (int64, error) {
	update := bson.A{bson.M{
		"$set": bson.M{
			"savedCount": bson.M{
				"$max": bson.A{
					bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$savedCount", 0}}, delta}},
					0,
				},
			},
		},
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing models.Listing
	err := h.DB.Collection(database.Listings).
		FindOneAndUpdate(ctx, bson.M{"_id": listingID}, update, opts).
		Decode(&listing)
	if err != nil {
		return 0, err
	}
	return listing.SavedCount, nil
}

// exists reports whether a document with the given id is present in coll.
func (h *SavedListingHandler) exists(c *gin.Context, ctx context.Context, coll string, id primitive.ObjectID, missing string) bool {
	count, err := h.DB.Collection(coll).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		httperr.Abort(c, err)
		return false
	}
	if count == 0 {
		httperr.Abort(c, httperr.NotFound(missing))
		return false
	}
	return true
}
