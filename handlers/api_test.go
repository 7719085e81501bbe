package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kejafiti/config"
	"kejafiti/database"
	"kejafiti/middleware"
	"kejafiti/models"
	"kejafiti/routes"
)

const testJWTSecret = "testsecret"

// setup spins the full router against a throwaway database. Tests are
// skipped when no MongoDB is available.
func setup(t *testing.T) (*gin.Engine, *mongo.Database) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping test - MONGODB_URI not set")
	}

	gin.SetMode(gin.TestMode)

	client, err := database.Connect(context.Background(), uri)
	require.NoError(t, err)

	db := client.Database("kejafiti_test_" + primitive.NewObjectID().Hex()[:12])
	require.NoError(t, database.EnsureIndexes(context.Background(), db))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	cfg := &config.Config{
		Port:           "0",
		JWTSecret:      testJWTSecret,
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	return routes.SetupRouter(db, cfg), db
}

func sessionCookie(t *testing.T, user models.User) *http.Cookie {
	t.Helper()
	claims := &middleware.Claims{
		ID:       user.ID.Hex(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.CookieName, Value: token}
}

func seedUser(t *testing.T, db *mongo.Database, username string) models.User {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Email:     username + "@example.com",
		Password:  "hashed",
		Avatar:    models.FallbackAvatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.Collection(database.Users).InsertOne(context.Background(), user)
	require.NoError(t, err)
	return user
}

func seedListing(t *testing.T, db *mongo.Database, owner models.User, name, listingType string, price float64, createdAt time.Time) models.Listing {
	t.Helper()
	listing := models.Listing{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: "desc",
		PhoneNumber: "0700000000",
		Price:       price,
		Bedrooms:    "2",
		Type:        listingType,
		ImageURLs:   []string{"https://img.example.com/1.jpg"},
		UserRef:     owner.ID.Hex(),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if models.IsServiceType(listingType) {
		listing.Bedrooms = ""
	}
	_, err := db.Collection(database.Listings).InsertOne(context.Background(), listing)
	require.NoError(t, err)
	return listing
}

func doJSON(router *gin.Engine, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func TestSaveToggleCounter(t *testing.T) {
	router, db := setup(t)

	owner := seedUser(t, db, "owner")
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	listing := seedListing(t, db, owner, "Two bed in Kilimani", models.TypeRentals, 45000, time.Now().UTC())

	savePath := "/api/savedListing/listing/save/" + listing.ID.Hex()

	// First save: counter 1.
	w := doJSON(router, http.MethodPost, savePath, nil, sessionCookie(t, alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["savedCount"])

	// Duplicate save by the same user is a Conflict, counter untouched.
	w = doJSON(router, http.MethodPost, savePath, nil, sessionCookie(t, alice))
	assert.Equal(t, http.StatusConflict, w.Code)

	// A second user pushes it to 2.
	w = doJSON(router, http.MethodPost, savePath, nil, sessionCookie(t, bob))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["savedCount"])

	// Unsave drops it back.
	w = doJSON(router, http.MethodDelete, savePath, nil, sessionCookie(t, alice))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["savedCount"])

	// Unsaving again is an idempotent no-op.
	w = doJSON(router, http.MethodDelete, savePath, nil, sessionCookie(t, alice))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["savedCount"])

	w = doJSON(router, http.MethodDelete, savePath, nil, sessionCookie(t, bob))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["savedCount"])

	// Counter floors at zero.
	w = doJSON(router, http.MethodDelete, savePath, nil, sessionCookie(t, bob))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["savedCount"])
}

func TestSaveUnknownListing(t *testing.T) {
	router, db := setup(t)
	alice := seedUser(t, db, "alice")

	path := "/api/savedListing/listing/save/" + primitive.NewObjectID().Hex()
	w := doJSON(router, http.MethodPost, path, nil, sessionCookie(t, alice))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSavedListingsNewestSavedFirst(t *testing.T) {
	router, db := setup(t)

	owner := seedUser(t, db, "owner")
	alice := seedUser(t, db, "alice")
	first := seedListing(t, db, owner, "First", models.TypeRentals, 10000, time.Now().UTC())
	second := seedListing(t, db, owner, "Second", models.TypeForSale, 20000, time.Now().UTC())

	cookie := sessionCookie(t, alice)
	w := doJSON(router, http.MethodPost, "/api/savedListing/listing/save/"+first.ID.Hex(), nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	// Force distinct save timestamps.
	time.Sleep(10 * time.Millisecond)
	w = doJSON(router, http.MethodPost, "/api/savedListing/listing/save/"+second.ID.Hex(), nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/savedListing/user/saved", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	saved, ok := decode(t, w)["savedListings"].([]interface{})
	require.True(t, ok)
	require.Len(t, saved, 2)
	assert.Equal(t, "Second", saved[0].(map[string]interface{})["name"])
	assert.Equal(t, "First", saved[1].(map[string]interface{})["name"])
}

func TestSearchFilters(t *testing.T) {
	router, db := setup(t)
	owner := seedUser(t, db, "owner")

	base := time.Now().UTC().Add(-time.Hour)
	seedListing(t, db, owner, "Cheap rental", models.TypeRentals, 8000, base)
	inRange := seedListing(t, db, owner, "Mid rental", models.TypeRentals, 15000, base.Add(time.Minute))
	seedListing(t, db, owner, "Pricey rental", models.TypeRentals, 30000, base.Add(2*time.Minute))
	seedListing(t, db, owner, "Mid sale", models.TypeForSale, 15000, base.Add(3*time.Minute))

	w := doJSON(router, http.MethodGet, "/api/listing/search?type=rentals&minPrice=10000&maxPrice=20000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	listings := body["listings"].([]interface{})
	require.Len(t, listings, 1)
	assert.Equal(t, inRange.ID.Hex(), listings[0].(map[string]interface{})["id"])
}

func TestSearchNoFiltersNewestFirst(t *testing.T) {
	router, db := setup(t)
	owner := seedUser(t, db, "owner")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedListing(t, db, owner, fmt.Sprintf("Listing %d", i), models.TypeRentals, 10000, base.Add(time.Duration(i)*time.Minute))
	}

	w := doJSON(router, http.MethodGet, "/api/listing/search", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(3), body["total"])
	listings := body["listings"].([]interface{})
	require.Len(t, listings, 3)
	assert.Equal(t, "Listing 2", listings[0].(map[string]interface{})["name"])
	assert.Equal(t, "Listing 0", listings[2].(map[string]interface{})["name"])
}

func TestListingOwnership(t *testing.T) {
	router, db := setup(t)

	owner := seedUser(t, db, "owner")
	intruder := seedUser(t, db, "intruder")
	listing := seedListing(t, db, owner, "Guarded", models.TypeRentals, 10000, time.Now().UTC())

	update := map[string]interface{}{"name": "Renamed"}
	updatePath := "/api/listing/update/" + listing.ID.Hex()

	// No session at all.
	w := doJSON(router, http.MethodPost, updatePath, update, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Authenticated but not the owner.
	w = doJSON(router, http.MethodPost, updatePath, update, sessionCookie(t, intruder))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/listing/delete/"+listing.ID.Hex(), nil, sessionCookie(t, intruder))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The owner succeeds.
	w = doJSON(router, http.MethodPost, updatePath, update, sessionCookie(t, owner))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodDelete, "/api/listing/delete/"+listing.ID.Hex(), nil, sessionCookie(t, owner))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteListingCleansSaveRelations(t *testing.T) {
	router, db := setup(t)

	owner := seedUser(t, db, "owner")
	alice := seedUser(t, db, "alice")
	listing := seedListing(t, db, owner, "Doomed", models.TypeRentals, 10000, time.Now().UTC())

	w := doJSON(router, http.MethodPost, "/api/savedListing/listing/save/"+listing.ID.Hex(), nil, sessionCookie(t, alice))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/listing/delete/"+listing.ID.Hex(), nil, sessionCookie(t, owner))
	require.Equal(t, http.StatusOK, w.Code)

	count, err := db.Collection(database.SavedListings).
		CountDocuments(context.Background(), bson.M{"listingId": listing.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCreateListingLocationParsing(t *testing.T) {
	router, db := setup(t)
	owner := seedUser(t, db, "owner")

	payload := map[string]interface{}{
		"name":        "Geo listing",
		"description": "desc",
		"phoneNumber": "0700000000",
		"price":       12000,
		"bedrooms":    "2",
		"type":        "rentals",
		"imageUrls":   []string{"https://img.example.com/1.jpg"},
		"location":    "-1.29,36.82",
	}

	w := doJSON(router, http.MethodPost, "/api/listing/create", payload, sessionCookie(t, owner))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var listing models.Listing
	err := db.Collection(database.Listings).
		FindOne(context.Background(), bson.M{"name": "Geo listing"}).Decode(&listing)
	require.NoError(t, err)
	require.NotNil(t, listing.Location)
	assert.Equal(t, []float64{36.82, -1.29}, listing.Location.Coordinates)
}

func TestCreateListingBedroomsInvariant(t *testing.T) {
	router, db := setup(t)
	owner := seedUser(t, db, "owner")
	cookie := sessionCookie(t, owner)

	property := map[string]interface{}{
		"name":        "No bedrooms",
		"description": "desc",
		"phoneNumber": "0700000000",
		"price":       12000,
		"type":        "rentals",
		"imageUrls":   []string{"https://img.example.com/1.jpg"},
	}
	w := doJSON(router, http.MethodPost, "/api/listing/create", property, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	service := map[string]interface{}{
		"name":        "Architect service",
		"description": "desc",
		"phoneNumber": "0700000000",
		"price":       5000,
		"bedrooms":    "3",
		"type":        "architects",
		"imageUrls":   []string{"https://img.example.com/1.jpg"},
	}
	w = doJSON(router, http.MethodPost, "/api/listing/create", service, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var listing models.Listing
	err := db.Collection(database.Listings).
		FindOne(context.Background(), bson.M{"name": "Architect service"}).Decode(&listing)
	require.NoError(t, err)
	assert.Empty(t, listing.Bedrooms)
}

func TestCreatePostSlugAndUniqueness(t *testing.T) {
	router, db := setup(t)
	author := seedUser(t, db, "author")
	cookie := sessionCookie(t, author)

	w := doJSON(router, http.MethodPost, "/api/post/create", map[string]interface{}{"title": "Hello World!"}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	post := decode(t, w)["post"].(map[string]interface{})
	assert.Equal(t, "hello-world", post["slug"])
	assert.Equal(t, "author", post["author"])
	assert.Equal(t, "uncategorized", post["category"])
	assert.Equal(t, models.DefaultPostImage, post["image"])

	// Same title again is a Conflict.
	w = doJSON(router, http.MethodPost, "/api/post/create", map[string]interface{}{"title": "Hello World!"}, cookie)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthFlow(t *testing.T) {
	router, _ := setup(t)

	creds := map[string]interface{}{
		"username": "jane",
		"email":    "jane@example.com",
		"password": "secret123",
	}

	w := doJSON(router, http.MethodPost, "/api/auth/signup", creds, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Same email again conflicts.
	w = doJSON(router, http.MethodPost, "/api/auth/signup", creds, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/api/auth/signin", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "wrong-pass",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/auth/signin", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sessionSet bool
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == middleware.CookieName && cookie.Value != "" {
			sessionSet = true
			assert.True(t, cookie.HttpOnly)
		}
	}
	assert.True(t, sessionSet, "signin must set the session cookie")

	// The password hash never leaves the server.
	assert.NotContains(t, w.Body.String(), "password")
}

func TestAccountDeletionDecrementsCounters(t *testing.T) {
	router, db := setup(t)

	owner := seedUser(t, db, "owner")
	alice := seedUser(t, db, "alice")
	listing := seedListing(t, db, owner, "Kept listing", models.TypeRentals, 10000, time.Now().UTC())

	w := doJSON(router, http.MethodPost, "/api/savedListing/listing/save/"+listing.ID.Hex(), nil, sessionCookie(t, alice))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/user/delete/"+alice.ID.Hex(), nil, sessionCookie(t, alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var after models.Listing
	err := db.Collection(database.Listings).
		FindOne(context.Background(), bson.M{"_id": listing.ID}).Decode(&after)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.SavedCount)

	count, err := db.Collection(database.SavedListings).
		CountDocuments(context.Background(), bson.M{"userId": alice.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
