package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"kejafiti/config"
	"kejafiti/handlers"
	"kejafiti/httperr"
	"kejafiti/middleware"
)

// SetupRouter assembles the full HTTP surface: CORS, the error responder,
// health checks, and every handler group with the session guard on the
// protected routes.
func SetupRouter(db *mongo.Database, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Set-Cookie"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(httperr.Responder())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "Kejafiti API running",
			"service": "healthy",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	guard := middleware.SessionGuard(cfg.JWTSecret)
	api := router.Group("/api")

	handlers.NewAuthHandler(db, cfg).RegisterRoutes(api.Group("/auth"))
	handlers.NewUserHandler(db).RegisterRoutes(api.Group("/user", guard))
	handlers.NewListingHandler(db).RegisterRoutes(api.Group("/listing"), guard)
	handlers.NewSavedListingHandler(db).RegisterRoutes(api.Group("/savedListing", guard))
	handlers.NewPostHandler(db).RegisterRoutes(api.Group("/post"), guard)
	handlers.NewUploadHandler(cfg).RegisterRoutes(api.Group("", guard))

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"success":    false,
				"statusCode": http.StatusNotFound,
				"message":    "Endpoint not found",
			})
			return
		}
		c.Next()
	})

	return router
}
