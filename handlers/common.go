// Package handlers holds the gin handlers for the HTTP surface. Each entity
// gets a handler struct with its database handle injected; routes are wired
// in the routes package.
package handlers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kejafiti/httperr"
	"kejafiti/middleware"
)

// optionsFindNewestFirst sorts query results by creation time descending,
// the default ordering everywhere listings or posts are browsed.
func optionsFindNewestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

func findOneAndUpdateAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// sessionUserID returns the authenticated caller's id as an ObjectID. The
// session guard has already run on every route that calls this; a missing or
// malformed id means the token was minted with garbage.
func sessionUserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		httperr.Abort(c, httperr.Unauthorized("Invalid token"))
		return primitive.NilObjectID, false
	}
	return id, true
}

// objectIDParam parses the :id route parameter.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		httperr.Abort(c, httperr.BadRequest("Invalid id"))
		return primitive.NilObjectID, false
	}
	return id, true
}
