package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"kejafiti/httperr"
)

// CookieName is the HTTP-only cookie the session token travels in.
const CookieName = "access_token"

// Context keys set by SessionGuard for downstream handlers.
const (
	CtxUserID   = "userId"
	CtxUsername = "username"
)

type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionGuard validates the signed session token and attaches the caller's
// identity to the request context. The token is read from the access_token
// cookie; a bearer Authorization header is accepted as a fallback for
// non-browser clients.
func SessionGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		tokenString, err := c.Cookie(CookieName)
		if err != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if tokenString == "" {
			httperr.Abort(c, httperr.Unauthorized("No token found"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			httperr.Abort(c, httperr.Unauthorized("Invalid token"))
			return
		}

		c.Set(CtxUserID, claims.ID)
		c.Set(CtxUsername, claims.Username)
		c.Next()
	}
}
