package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"posescope/middlewares"
	"posescope/models"
)

type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// Register creates a new account. Accounts start unapproved; an admin
// approves them before they can take work.
func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.RoleAnnotator
	if input.Role != "" {
		parsed, ok := models.ParseRole(input.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot hash password"})
		return
	}

	user := models.User{
		ID:                   uuid.NewString(),
		Username:             input.Username,
		Email:                input.Email,
		PasswordHash:         string(hash),
		Role:                 role,
		MaxConcurrentBatches: 2,
	}
	if err := models.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email already taken"})
		return
	}
	log.Info("Registered user ", user.Username)

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and issues a JWT token.
func Login(maker *middlewares.TokenMaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := models.DB.First(&user, "username = ?", input.Username).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if !user.IsApproved {
			c.JSON(http.StatusForbidden, gin.H{"error": "account awaiting approval"})
			return
		}

		token, err := maker.CreateToken(user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "data": user})
	}
}

// Me returns the authenticated user.
func Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": middlewares.CurrentUser(c)})
}
