package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"kejafiti/config"
	"kejafiti/database"
	"kejafiti/routes"
)

func main() {
	log.Println("Starting Kejafiti API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration error: ", err)
	}

	log.Println("Connecting to MongoDB...")

	var client *mongo.Client
	var dbErr error
	for i := 1; i <= 3; i++ {
		client, dbErr = database.Connect(context.Background(), cfg.MongoURI)
		if dbErr == nil {
			break
		}
		log.Printf("MongoDB connection attempt %d failed: %v", i, dbErr)
		time.Sleep(2 * time.Second)
	}
	if dbErr != nil {
		log.Fatal("failed to connect to MongoDB: ", dbErr)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Println("MongoDB disconnect: ", err)
		}
	}()

	log.Println("MongoDB connected")

	db := client.Database(database.Name)
	if err := database.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatal("failed to create indexes: ", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := routes.SetupRouter(db, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("forced shutdown: ", err)
	}

	log.Println("Server stopped")
}
