package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// AnnotationStatus is the lifecycle of one annotation version.
type AnnotationStatus string

const (
	AnnotationDraft             AnnotationStatus = "DRAFT"
	AnnotationCompleted         AnnotationStatus = "COMPLETED"
	AnnotationSubmitted         AnnotationStatus = "SUBMITTED"
	AnnotationUnderReview       AnnotationStatus = "UNDER_REVIEW"
	AnnotationApproved          AnnotationStatus = "APPROVED"
	AnnotationRevisionRequested AnnotationStatus = "REVISION_REQUESTED"
)

// ActiveAnnotationStatuses are statuses that make an annotation the image's
// single live annotation. At most one per image may hold one of these.
var ActiveAnnotationStatuses = []AnnotationStatus{
	AnnotationDraft,
	AnnotationCompleted,
	AnnotationSubmitted,
	AnnotationUnderReview,
}

// ParseAnnotationStatus converts a string into a known AnnotationStatus.
func ParseAnnotationStatus(value string) (AnnotationStatus, bool) {
	normalized := AnnotationStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case AnnotationDraft, AnnotationCompleted, AnnotationSubmitted,
		AnnotationUnderReview, AnnotationApproved, AnnotationRevisionRequested:
		return normalized, true
	}
	return "", false
}

// IsActive reports whether the annotation blocks new submissions for its image.
func (s AnnotationStatus) IsActive() bool {
	switch s {
	case AnnotationDraft, AnnotationCompleted, AnnotationSubmitted, AnnotationUnderReview:
		return true
	}
	return false
}

// DifficultyRating is the annotator's self-reported difficulty.
type DifficultyRating string

const (
	DifficultyEasy     DifficultyRating = "EASY"
	DifficultyMedium   DifficultyRating = "MEDIUM"
	DifficultyHard     DifficultyRating = "HARD"
	DifficultyVeryHard DifficultyRating = "VERY_HARD"
)

// Annotation is one refined keypoint set for an image. Revisions never
// overwrite an earlier version; a new row supersedes it. Every revision
// points at the version-1 root so lineage lookups stay a single query.
type Annotation struct {
	ID           string      `json:"id" gorm:"primaryKey;size:36"`
	ImageID      string      `json:"image_id" gorm:"size:36;index"`
	Image        *Image      `json:"-" gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
	AssignmentID string      `json:"assignment_id" gorm:"size:36;index"`
	Assignment   *Assignment `json:"-" gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE"`

	RefinedKeypoints   datatypes.JSON `json:"refined_keypoints"`
	KeypointConfidence datatypes.JSON `json:"keypoint_confidence,omitempty"`
	KeypointVisibility datatypes.JSON `json:"keypoint_visibility,omitempty"`
	KeypointNotes      datatypes.JSON `json:"keypoint_notes,omitempty"`

	QualityScore      float64          `json:"quality_score" gorm:"default:0"`
	DifficultyRating  DifficultyRating `json:"difficulty_rating,omitempty" gorm:"size:10"`
	DifficultyReasons datatypes.JSON   `json:"difficulty_reasons,omitempty"`

	KeypointsModified    int    `json:"keypoints_modified" gorm:"default:0"`
	MajorCorrectionsMade bool   `json:"major_corrections_made" gorm:"default:false"`
	GeneralNotes         string `json:"general_notes,omitempty"`

	Version              int     `json:"version" gorm:"default:1"`
	IsRevision           bool    `json:"is_revision" gorm:"default:false"`
	OriginalAnnotationID *string `json:"original_annotation_id,omitempty" gorm:"size:36;index"`
	RevisionReason       string  `json:"revision_reason,omitempty"`

	TimeSpentSeconds int `json:"time_spent_seconds" gorm:"default:0"`

	Status      AnnotationStatus `json:"status" gorm:"size:20;index;default:DRAFT"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}
