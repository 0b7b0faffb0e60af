package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"posescope/middlewares"
	"posescope/models"
	"posescope/workflow"
)

type CreateVerificationInput struct {
	AnnotationID string `json:"annotation_id" binding:"required"`
	Decision     string `json:"decision" binding:"required"`

	CorrectedKeypoints  datatypes.JSON `json:"corrected_keypoints"`
	CorrectionSummary   string         `json:"correction_summary"`
	FeedbackToAnnotator string         `json:"feedback_to_annotator"`

	OverallQualityScore int `json:"overall_quality_score" binding:"required,min=1,max=10"`
	AnatomicalAccuracy  int `json:"anatomical_accuracy"`
	TechnicalPrecision  int `json:"technical_precision"`
	CompletenessScore   int `json:"completeness_score"`
	CertaintyLevel      int `json:"certainty_level"`

	RejectionReason  string `json:"rejection_reason"`
	RejectionDetails string `json:"rejection_details"`
	CanBeReannotated *bool  `json:"can_be_reannotated"`

	RequiresSecondOpinion   bool `json:"requires_second_opinion"`
	VerificationTimeSeconds int  `json:"verification_time_seconds"`
}

// CreateVerification applies a verifier's decision to an annotation.
func CreateVerification(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateVerificationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		decision, ok := models.ParseVerificationDecision(input.Decision)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown decision"})
			return
		}

		// Rejections default to re-annotatable, matching verifier workflow
		// expectations; an explicit false makes the rejection terminal.
		canBeReannotated := true
		if input.CanBeReannotated != nil {
			canBeReannotated = *input.CanBeReannotated
		}

		verification, err := svc.Decide(input.AnnotationID, middlewares.CurrentUser(c).ID, workflow.DecideInput{
			Decision:                decision,
			CorrectedKeypoints:      input.CorrectedKeypoints,
			CorrectionSummary:       input.CorrectionSummary,
			FeedbackToAnnotator:     input.FeedbackToAnnotator,
			OverallQualityScore:     input.OverallQualityScore,
			AnatomicalAccuracy:      input.AnatomicalAccuracy,
			TechnicalPrecision:      input.TechnicalPrecision,
			CompletenessScore:       input.CompletenessScore,
			CertaintyLevel:          input.CertaintyLevel,
			RejectionReason:         models.RejectionReason(input.RejectionReason),
			RejectionDetails:        input.RejectionDetails,
			CanBeReannotated:        canBeReannotated,
			RequiresSecondOpinion:   input.RequiresSecondOpinion,
			VerificationTimeSeconds: input.VerificationTimeSeconds,
		})
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": verification})
	}
}

// FindVerification returns one verification.
func FindVerification(c *gin.Context) {
	var verification models.Verification
	if err := models.DB.First(&verification, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "verification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": verification})
}
