package models

import (
	"strings"
	"time"
)

// AssignmentType classifies why a group of images was handed out.
type AssignmentType string

const (
	AssignmentInitial       AssignmentType = "INITIAL"
	AssignmentRevision      AssignmentType = "REVISION"
	AssignmentQualityCheck  AssignmentType = "QUALITY_CHECK"
	AssignmentSecondOpinion AssignmentType = "SECOND_OPINION"
)

// ParseAssignmentType converts a string into a known AssignmentType.
func ParseAssignmentType(value string) (AssignmentType, bool) {
	normalized := AssignmentType(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case AssignmentInitial, AssignmentRevision, AssignmentQualityCheck, AssignmentSecondOpinion:
		return normalized, true
	}
	return "", false
}

// AssignmentStatus is the lifecycle of one assignment.
type AssignmentStatus string

const (
	AssignmentAssigned     AssignmentStatus = "ASSIGNED"
	AssignmentAcknowledged AssignmentStatus = "ACKNOWLEDGED"
	AssignmentInProgress   AssignmentStatus = "IN_PROGRESS"
	AssignmentSubmitted    AssignmentStatus = "SUBMITTED"
	AssignmentCancelled    AssignmentStatus = "CANCELLED"
)

// ActiveAssignmentStatuses count against an annotator's concurrency budget.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentAssigned,
	AssignmentAcknowledged,
	AssignmentInProgress,
}

// ParseAssignmentStatus converts a string into a known AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, bool) {
	normalized := AssignmentStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case AssignmentAssigned, AssignmentAcknowledged, AssignmentInProgress,
		AssignmentSubmitted, AssignmentCancelled:
		return normalized, true
	}
	return "", false
}

// IsTerminal reports whether the assignment is finished.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentSubmitted || s == AssignmentCancelled
}

// IsActive reports whether the assignment still holds images for work.
func (s AssignmentStatus) IsActive() bool {
	switch s {
	case AssignmentAssigned, AssignmentAcknowledged, AssignmentInProgress:
		return true
	}
	return false
}

// Assignment hands a group of batch images to one annotator.
type Assignment struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	BatchID string `json:"batch_id" gorm:"size:36;index"`
	Batch   *Batch `json:"-" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`

	AnnotatorID  string `json:"annotator_id" gorm:"size:36;index:idx_assignments_annotator_status"`
	AssignedByID string `json:"assigned_by_id" gorm:"size:36"`

	Type     AssignmentType `json:"type" gorm:"size:20;default:INITIAL"`
	Priority int            `json:"priority" gorm:"default:5"`

	SpecialInstructions string `json:"special_instructions,omitempty"`

	Status             AssignmentStatus `json:"status" gorm:"size:20;index:idx_assignments_annotator_status;default:ASSIGNED"`
	ProgressPercentage float64          `json:"progress_percentage" gorm:"default:0"`
	ImagesCompleted    int              `json:"images_completed" gorm:"default:0"`
	ImagesTotal        int              `json:"images_total"`

	AssignedAt     time.Time  `json:"assigned_at" gorm:"autoCreateTime"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty" gorm:"index"`

	TotalTimeSpentMinutes int `json:"total_time_spent_minutes" gorm:"default:0"`
}

// IsOverdue reports whether the assignment has passed its due date and is
// still open. Computed, never stored, so it cannot go stale.
func (a *Assignment) IsOverdue(now time.Time) bool {
	return a.DueDate != nil && now.After(*a.DueDate) && !a.Status.IsTerminal()
}
