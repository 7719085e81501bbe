package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kejafiti/database"
	"kejafiti/httperr"
	"kejafiti/middleware"
	"kejafiti/models"
)

type PostHandler struct {
	DB *mongo.Database
}

func NewPostHandler(db *mongo.Database) *PostHandler {
	return &PostHandler{DB: db}
}

func (h *PostHandler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.POST("/create", guard, h.Create)
	rg.GET("/all", h.All)
	rg.GET("/my", guard, h.My)
}

type CreatePostRequest struct {
	Title    string `json:"title" binding:"required,min=3"`
	Content  string `json:"content"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

func (h *PostHandler) Create(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	title := strings.TrimSpace(req.Title)
	if len(title) < 3 {
		httperr.Abort(c, httperr.BadRequest("Title must be at least 3 characters long"))
		return
	}

	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	post := models.Post{
		ID:       primitive.NewObjectID(),
		UserID:   userID.Hex(),
		Author:   c.GetString(middleware.CtxUsername),
		Title:    title,
		Content:  req.Content,
		Image:    req.Image,
		Category: req.Category,
		Slug:     models.Slugify(title),
	}
	if post.Image == "" {
		post.Image = models.DefaultPostImage
	}
	if post.Category == "" {
		post.Category = "uncategorized"
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.DB.Collection(database.Posts).InsertOne(ctx, post); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			httperr.Abort(c, httperr.Conflict("A post with this title already exists"))
			return
		}
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Post created successfully",
		"post":    post,
	})
}

func (h *PostHandler) All(c *gin.Context) {
	h.list(c, bson.M{})
}

func (h *PostHandler) My(c *gin.Context) {
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}
	h.list(c, bson.M{"userId": userID.Hex()})
}

func (h *PostHandler) list(c *gin.Context, filter bson.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.DB.Collection(database.Posts).Find(ctx, filter, optionsFindNewestFirst())
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts})
}
