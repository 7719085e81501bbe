package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config collects every environment-backed setting the server needs. It is
// loaded once in main and handed to the packages that use it instead of
// reading os.Getenv at call sites.
type Config struct {
	Port               string
	MongoURI           string
	JWTSecret          string
	AllowedOrigins     []string
	CloudinaryURL      string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// Load reads .env if present, then the process environment. JWT_SECRET and
// MONGODB_URI have no sane defaults and are required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		MongoURI:           os.Getenv("MONGODB_URI"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CloudinaryURL:      os.Getenv("CLOUDINARY_URL"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
	}

	if cfg.JWTSecret == "" || cfg.MongoURI == "" {
		return nil, errors.New("JWT_SECRET and MONGODB_URI must be set")
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:3000",
			"https://kejafiti-2.onrender.com",
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
