package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posescope/models"
)

const userKey = "current_user"

// JwtAuthMiddleware rejects requests without a valid token and loads the
// authenticated user into the context.
func JwtAuthMiddleware(maker *TokenMaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := maker.ExtractUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		var user models.User
		if err := models.DB.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Set(userKey, &user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by JwtAuthMiddleware.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// RequireAnnotator blocks users that may not annotate.
func RequireAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.CanAnnotate() {
			c.JSON(http.StatusForbidden, gin.H{"error": "annotator role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireVerifier blocks users that may not verify.
func RequireVerifier() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.CanVerify() {
			c.JSON(http.StatusForbidden, gin.H{"error": "verifier role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin blocks non-admin users.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != models.RoleAdmin || !user.IsApproved {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
