package middlewares

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// TokenMaker issues and validates the JWT tokens used by the API.
type TokenMaker struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenMaker builds a maker from the configured secret.
func NewTokenMaker(secret string, lifetime time.Duration) *TokenMaker {
	if lifetime <= 0 {
		lifetime = 12 * time.Hour
	}
	return &TokenMaker{secret: []byte(secret), lifetime: lifetime}
}

// CreateToken issues a signed token for the user.
func (m *TokenMaker) CreateToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"authorized": true,
		"user_id":    userID,
		"exp":        time.Now().Add(m.lifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ExtractUserID validates the request's bearer token and returns the subject.
func (m *TokenMaker) ExtractUserID(c *gin.Context) (string, error) {
	tokenString := extractToken(c)
	if tokenString == "" {
		return "", errors.New("missing token")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid token subject")
	}
	return userID, nil
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	bearer := c.Request.Header.Get("Authorization")
	parts := strings.Split(bearer, " ")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}
