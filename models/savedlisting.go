package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SavedListing is the join record behind the save/bookmark feature. The
// unique (userId, listingId) index keeps it to at most one save per pair.
type SavedListing struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ListingID primitive.ObjectID `bson:"listingId" json:"listingId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
