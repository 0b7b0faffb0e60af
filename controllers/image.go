package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posescope/models"
	"posescope/workflow"
)

// FindImages lists images filtered by batch and/or status. The status
// index backs the scheduler's "ready work" query.
func FindImages(c *gin.Context) {
	query := models.DB.Order("created_at")
	if batchID := c.Query("batch"); batchID != "" {
		query = query.Where("batch_id = ?", batchID)
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseImageStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown image status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	var images []models.Image
	if err := query.Find(&images).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": images})
}

// FindImage returns one image.
func FindImage(c *gin.Context) {
	var image models.Image
	if err := models.DB.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": image})
}

// RetryDetection moves a DETECTION_FAILED image back into the pool.
func RetryDetection(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RetryDetection(c.Param("id")); err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
}
