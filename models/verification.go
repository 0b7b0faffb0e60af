package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// VerificationDecision is the verifier's judgment of an annotation.
type VerificationDecision string

const (
	DecisionApproved                VerificationDecision = "APPROVED"
	DecisionApprovedWithCorrections VerificationDecision = "APPROVED_WITH_CORRECTIONS"
	DecisionMinorRevisionNeeded     VerificationDecision = "MINOR_REVISION_NEEDED"
	DecisionMajorRevisionNeeded     VerificationDecision = "MAJOR_REVISION_NEEDED"
	DecisionRejected                VerificationDecision = "REJECTED"
)

// ParseVerificationDecision converts a string into a known decision.
func ParseVerificationDecision(value string) (VerificationDecision, bool) {
	normalized := VerificationDecision(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case DecisionApproved, DecisionApprovedWithCorrections,
		DecisionMinorRevisionNeeded, DecisionMajorRevisionNeeded, DecisionRejected:
		return normalized, true
	}
	return "", false
}

// IsApproved reports whether the decision accepts the annotation.
func (d VerificationDecision) IsApproved() bool {
	return d == DecisionApproved || d == DecisionApprovedWithCorrections
}

// NeedsRevision reports whether the decision sends the image back to annotation.
func (d VerificationDecision) NeedsRevision() bool {
	return d == DecisionMinorRevisionNeeded || d == DecisionMajorRevisionNeeded
}

// RejectionReason is the taxonomy used when an annotation is rejected.
type RejectionReason string

const (
	RejectionPoorImageQuality     RejectionReason = "POOR_IMAGE_QUALITY"
	RejectionIncorrectKeypoints   RejectionReason = "INCORRECT_KEYPOINTS"
	RejectionAnatomicalErrors     RejectionReason = "ANATOMICAL_ERRORS"
	RejectionIncompleteAnnotation RejectionReason = "INCOMPLETE_ANNOTATION"
	RejectionTechnicalIssues      RejectionReason = "TECHNICAL_ISSUES"
	RejectionGuidelinesViolation  RejectionReason = "GUIDELINES_VIOLATION"
	RejectionOther                RejectionReason = "OTHER"
)

// Verification records one immutable judgment of one annotation.
// Re-verification never updates a row; it happens on a new annotation version.
type Verification struct {
	ID           string      `json:"id" gorm:"primaryKey;size:36"`
	AnnotationID string      `json:"annotation_id" gorm:"size:36;uniqueIndex"`
	Annotation   *Annotation `json:"-" gorm:"foreignKey:AnnotationID;constraint:OnDelete:CASCADE"`
	VerifierID   string      `json:"verifier_id" gorm:"size:36;index"`

	Decision VerificationDecision `json:"decision" gorm:"size:30;index"`

	CorrectedKeypoints  datatypes.JSON `json:"corrected_keypoints,omitempty"`
	CorrectionSummary   string         `json:"correction_summary,omitempty"`
	FeedbackToAnnotator string         `json:"feedback_to_annotator,omitempty"`

	OverallQualityScore int `json:"overall_quality_score"`
	AnatomicalAccuracy  int `json:"anatomical_accuracy,omitempty"`
	TechnicalPrecision  int `json:"technical_precision,omitempty"`
	CompletenessScore   int `json:"completeness_score,omitempty"`
	CertaintyLevel      int `json:"certainty_level,omitempty"`

	RejectionReason  RejectionReason `json:"rejection_reason,omitempty" gorm:"size:30"`
	RejectionDetails string          `json:"rejection_details,omitempty"`
	CanBeReannotated bool            `json:"can_be_reannotated" gorm:"default:true"`

	RequiresSecondOpinion   bool `json:"requires_second_opinion" gorm:"default:false;index"`
	VerificationTimeSeconds int  `json:"verification_time_seconds" gorm:"default:0"`

	VerifiedAt time.Time `json:"verified_at" gorm:"autoCreateTime"`
}
