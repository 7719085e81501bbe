package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"kejafiti/config"
	"kejafiti/database"
	"kejafiti/httperr"
	"kejafiti/middleware"
	"kejafiti/models"
)

const sessionTTL = 24 * time.Hour

type AuthHandler struct {
	DB    *mongo.Database
	Cfg   *config.Config
	oauth *oauth2.Config
}

func NewAuthHandler(db *mongo.Database, cfg *config.Config) *AuthHandler {
	h := &AuthHandler{DB: db, Cfg: cfg}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		h.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}
	return h
}

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/signup", h.Signup)
	rg.POST("/signin", h.Signin)
	rg.POST("/google", h.Google)
	rg.GET("/google/url", h.GoogleAuthURL)
	rg.GET("/google/callback", h.GoogleCallback)
	rg.POST("/signout", h.Signout)
}

type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := h.DB.Collection(database.Users)

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httperr.Abort(c, httperr.Internal("Failed to hash password"))
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		Avatar:    models.FallbackAvatar,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			httperr.Abort(c, httperr.Conflict("Email already in use"))
			return
		}
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User created successfully",
	})
}

func (h *AuthHandler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	err := h.DB.Collection(database.Users).FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		httperr.Abort(c, httperr.Unauthorized("Invalid email or password"))
		return
	}
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httperr.Abort(c, httperr.Unauthorized("Invalid email or password"))
		return
	}

	if err := h.startSession(c, &user); err != nil {
		httperr.Abort(c, httperr.Internal("Failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

type GoogleRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Photo string `json:"photo"`
}

// Google signs a user in from a Google profile the SPA obtained client-side.
// Unknown emails get an account with a generated username and a random
// password, so the credential flow stays uniform.
func (h *AuthHandler) Google(c *gin.Context) {
	var req GoogleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, httperr.BadRequest(err.Error()))
		return
	}

	h.googleSignin(c, req.Name, req.Email, req.Photo)
}

// GoogleAuthURL hands the SPA the consent-screen URL for the server-side
// OAuth flow.
func (h *AuthHandler) GoogleAuthURL(c *gin.Context) {
	if h.oauth == nil {
		httperr.Abort(c, httperr.New(http.StatusServiceUnavailable, "Google OAuth not configured"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     h.oauth.AuthCodeURL("state", oauth2.AccessTypeOnline),
	})
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleCallback exchanges the authorization code, fetches the Google
// profile, and signs the user in.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauth == nil {
		httperr.Abort(c, httperr.New(http.StatusServiceUnavailable, "Google OAuth not configured"))
		return
	}

	code := c.Query("code")
	if code == "" {
		httperr.Abort(c, httperr.BadRequest("Authorization code missing"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		httperr.Abort(c, httperr.BadRequest("Failed to exchange authorization code"))
		return
	}

	resp, err := h.oauth.Client(ctx, token).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		httperr.Abort(c, httperr.Internal("Failed to fetch Google user info"))
		return
	}
	defer resp.Body.Close()

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Email == "" {
		httperr.Abort(c, httperr.Internal("Failed to parse Google user info"))
		return
	}

	h.googleSignin(c, info.Name, info.Email, info.Picture)
}

func (h *AuthHandler) googleSignin(c *gin.Context, name, email, photo string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := h.DB.Collection(database.Users)

	var user models.User
	err := users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	switch {
	case err == mongo.ErrNoDocuments:
		// Random password: google accounts never sign in with one, but the
		// field is required and must not be guessable.
		password := make([]byte, 16)
		if _, err := rand.Read(password); err != nil {
			httperr.Abort(c, httperr.Internal("Failed to create user"))
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(password)), bcrypt.DefaultCost)
		if err != nil {
			httperr.Abort(c, httperr.Internal("Failed to create user"))
			return
		}

		avatar := photo
		if avatar == "" {
			avatar = models.FallbackAvatar
		}

		now := time.Now().UTC()
		user = models.User{
			ID:        primitive.NewObjectID(),
			Username:  generateUsername(name),
			Email:     email,
			Password:  string(hashed),
			Avatar:    avatar,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := users.InsertOne(ctx, user); err != nil {
			httperr.Abort(c, err)
			return
		}
	case err != nil:
		httperr.Abort(c, err)
		return
	default:
		if (user.Avatar == "" || user.Avatar == models.FallbackAvatar) && photo != "" {
			user.Avatar = photo
			_, _ = users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{"avatar": photo}})
		}
	}

	if err := h.startSession(c, &user); err != nil {
		httperr.Abort(c, httperr.Internal("Failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

func (h *AuthHandler) Signout(c *gin.Context) {
	c.SetCookie(middleware.CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Signed out successfully",
	})
}

// startSession issues the signed session token and sets the HTTP-only cookie.
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) error {
	claims := &middleware.Claims{
		ID:       user.ID.Hex(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.Cfg.JWTSecret))
	if err != nil {
		return err
	}

	c.SetCookie(middleware.CookieName, token, int(sessionTTL.Seconds()), "/", "", false, true)
	return nil
}

// generateUsername derives a unique-ish username from a display name.
func generateUsername(name string) string {
	base := strings.ToLower(strings.Join(strings.Fields(name), ""))
	if base == "" {
		base = "user"
	}
	return base + "_" + primitive.NewObjectID().Hex()[:4]
}
