package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gin-gonic/gin"

	"kejafiti/config"
	"kejafiti/httperr"
)

// UploadHandler pushes listing and post images to Cloudinary and hands the
// client back a hosted URL to reference in imageUrls.
type UploadHandler struct {
	Cfg *config.Config
}

func NewUploadHandler(cfg *config.Config) *UploadHandler {
	return &UploadHandler{Cfg: cfg}
}

func (h *UploadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.UploadImage)
}

func (h *UploadHandler) UploadImage(c *gin.Context) {
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	if h.Cfg.CloudinaryURL == "" {
		httperr.Abort(c, httperr.New(http.StatusServiceUnavailable, "Image upload not configured"))
		return
	}

	if err := c.Request.ParseMultipartForm(10 << 20); err != nil {
		httperr.Abort(c, httperr.BadRequest("Failed to parse form data"))
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		httperr.Abort(c, httperr.BadRequest("No image file provided"))
		return
	}
	defer file.Close()

	cld, err := cloudinary.NewFromURL(h.Cfg.CloudinaryURL)
	if err != nil {
		httperr.Abort(c, httperr.Internal("Image upload configuration error"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         "kejafiti/listings",
		PublicID:       userID.Hex() + "_" + time.Now().Format("20060102150405"),
		Transformation: "c_limit,w_1200,h_1200,q_auto",
	})
	if err != nil {
		httperr.Abort(c, httperr.Internal("Failed to upload image"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     result.SecureURL,
	})
}
