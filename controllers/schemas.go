package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"posescope/middlewares"
	"posescope/models"
)

type CreateSchemaInput struct {
	Name                   string         `json:"name" binding:"required"`
	Version                string         `json:"version" binding:"required"`
	Description            string         `json:"description"`
	Definition             datatypes.JSON `json:"definition" binding:"required"`
	MinConfidenceThreshold float64        `json:"min_confidence_threshold"`
	MaxMissingKeypoints    int            `json:"max_missing_keypoints"`
}

// CreateSchema registers a new keypoint schema version.
func CreateSchema(c *gin.Context) {
	var input CreateSchemaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schema := models.KeypointSchema{
		ID:                     uuid.NewString(),
		Name:                   input.Name,
		Version:                input.Version,
		Description:            input.Description,
		Definition:             input.Definition,
		MinConfidenceThreshold: input.MinConfidenceThreshold,
		MaxMissingKeypoints:    input.MaxMissingKeypoints,
		IsActive:               true,
		CreatedBy:              middlewares.CurrentUser(c).ID,
	}
	def, err := schema.DecodeDefinition()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schema definition"})
		return
	}
	schema.TotalKeypoints = len(def.Keypoints)
	if schema.TotalKeypoints == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schema defines no keypoints"})
		return
	}

	if err := models.DB.Create(&schema).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schema name/version already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": schema})
}

// FindSchemas lists active keypoint schemas.
func FindSchemas(c *gin.Context) {
	var schemas []models.KeypointSchema
	if err := models.DB.Where("is_active = ?", true).Order("created_at DESC").Find(&schemas).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": schemas})
}
