package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"posescope/middlewares"
	"posescope/models"
	"posescope/workflow"
)

type SubmitAnnotationInput struct {
	AssignmentID string `json:"assignment_id" binding:"required"`
	ImageID      string `json:"image_id" binding:"required"`

	Keypoints  datatypes.JSON `json:"keypoints" binding:"required"`
	Confidence datatypes.JSON `json:"confidence"`
	Visibility datatypes.JSON `json:"visibility"`
	Notes      datatypes.JSON `json:"notes"`

	QualityScore      float64 `json:"quality_score"`
	DifficultyRating  string  `json:"difficulty_rating"`
	KeypointsModified int     `json:"keypoints_modified"`
	GeneralNotes      string  `json:"general_notes"`
	RevisionReason    string  `json:"revision_reason"`
	TimeSpentSeconds  int     `json:"time_spent_seconds"`
}

// SubmitAnnotation records a new annotation version for an image.
func SubmitAnnotation(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input SubmitAnnotationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		annotation, err := svc.SubmitAnnotation(workflow.SubmitInput{
			AssignmentID:      input.AssignmentID,
			ImageID:           input.ImageID,
			AnnotatorID:       middlewares.CurrentUser(c).ID,
			Keypoints:         input.Keypoints,
			Confidence:        input.Confidence,
			Visibility:        input.Visibility,
			Notes:             input.Notes,
			QualityScore:      input.QualityScore,
			DifficultyRating:  models.DifficultyRating(input.DifficultyRating),
			KeypointsModified: input.KeypointsModified,
			GeneralNotes:      input.GeneralNotes,
			RevisionReason:    input.RevisionReason,
			TimeSpentSeconds:  input.TimeSpentSeconds,
		})
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": annotation})
	}
}

// ImageAnnotations returns the full version lineage for an image.
func ImageAnnotations(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		annotations, err := svc.AnnotationLineage(c.Param("id"))
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": annotations})
	}
}
