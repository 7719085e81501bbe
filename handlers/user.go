package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"kejafiti/database"
	"kejafiti/httperr"
	"kejafiti/middleware"
	"kejafiti/models"
)

type UserHandler struct {
	DB *mongo.Database
}

func NewUserHandler(db *mongo.Database) *UserHandler {
	return &UserHandler{DB: db}
}

func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/update/:id", h.Update)
	rg.DELETE("/delete/:id", h.Delete)
}

type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	Avatar   *string `json:"avatar"`
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if id.Hex() != c.GetString(middleware.CtxUserID) {
		httperr.Abort(c, httperr.Forbidden("You can only update your own account"))
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Username != nil {
		set["username"] = *req.Username
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Avatar != nil {
		set["avatar"] = *req.Avatar
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			httperr.Abort(c, httperr.Internal("Failed to hash password"))
			return
		}
		set["password"] = string(hashed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	err := h.DB.Collection(database.Users).
		FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, findOneAndUpdateAfter()).
		Decode(&user)
	if err == mongo.ErrNoDocuments {
		httperr.Abort(c, httperr.NotFound("User not found"))
		return
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			httperr.Abort(c, httperr.Conflict("Email already in use"))
			return
		}
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// Delete removes the account and its outbound save relations, decrementing
// each affected listing's counter so the denormalized counts stay true.
// Listings and posts the user owns are intentionally left in place.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if id.Hex() != c.GetString(middleware.CtxUserID) {
		httperr.Abort(c, httperr.Forbidden("You can only delete your own account"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.DB.Collection(database.Users).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if result.DeletedCount == 0 {
		httperr.Abort(c, httperr.NotFound("User not found"))
		return
	}

	if err := h.removeSaves(ctx, id); err != nil {
		httperr.Abort(c, err)
		return
	}

	c.SetCookie(middleware.CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Account has been deleted",
	})
}

func (h *UserHandler) removeSaves(ctx context.Context, userID primitive.ObjectID) error {
	saves := h.DB.Collection(database.SavedListings)

	cursor, err := saves.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var rows []models.SavedListing
	if err := cursor.All(ctx, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	if _, err := saves.DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		return err
	}

	// Each (user, listing) pair is unique, so every touched listing loses
	// exactly one save.
	listingIDs := make(bson.A, len(rows))
	for i, row := range rows {
		listingIDs[i] = row.ListingID
	}

	decrement := bson.A{bson.M{
		"$set": bson.M{
			"savedCount": bson.M{
				"$max": bson.A{
					bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$savedCount", 0}}, -1}},
					0,
				},
			},
		},
	}}

	_, err = h.DB.Collection(database.Listings).
		UpdateMany(ctx, bson.M{"_id": bson.M{"$in": listingIDs}}, decrement)
	return err
}
