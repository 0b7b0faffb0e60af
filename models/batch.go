package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// BatchStatus represents the lifecycle of an upload batch.
type BatchStatus string

const (
	BatchUploaded           BatchStatus = "UPLOADED"
	BatchDetecting          BatchStatus = "DETECTING"
	BatchDetected           BatchStatus = "DETECTED"
	BatchReadyForAnnotation BatchStatus = "READY_FOR_ANNOTATION"
	BatchAssigned           BatchStatus = "ASSIGNED"
	BatchInProgress         BatchStatus = "IN_PROGRESS"
	BatchCompleted          BatchStatus = "COMPLETED"
	BatchArchived           BatchStatus = "ARCHIVED"
	BatchCancelled          BatchStatus = "CANCELLED"
)

var allBatchStatuses = []BatchStatus{
	BatchUploaded,
	BatchDetecting,
	BatchDetected,
	BatchReadyForAnnotation,
	BatchAssigned,
	BatchInProgress,
	BatchCompleted,
	BatchArchived,
	BatchCancelled,
}

// ParseBatchStatus converts a string into a known BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, bool) {
	normalized := BatchStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allBatchStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further batch transitions are possible.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchArchived || s == BatchCancelled
}

// Batch groups images uploaded in one session. All counter fields are
// derived from child image states; only the progress tracker writes them.
type Batch struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	Name        string `json:"name" gorm:"size:255"`
	Description string `json:"description,omitempty"`

	KeypointSchemaID string          `json:"keypoint_schema_id" gorm:"size:36;index"`
	KeypointSchema   *KeypointSchema `json:"keypoint_schema,omitempty" gorm:"foreignKey:KeypointSchemaID"`

	TotalImages int         `json:"total_images"`
	Status      BatchStatus `json:"status" gorm:"size:30;index;default:UPLOADED"`

	// Derived counters, recomputed from child image states.
	AssignedCount  int `json:"assigned_count" gorm:"default:0"`
	CompletedCount int `json:"completed_count" gorm:"default:0"`
	ApprovedCount  int `json:"approved_count" gorm:"default:0"`
	RejectedCount  int `json:"rejected_count" gorm:"default:0"`
	FailedCount    int `json:"failed_count" gorm:"default:0"`

	Priority            int     `json:"priority" gorm:"default:5"`
	MinQualityScore     float64 `json:"min_quality_score" gorm:"default:7.0"`
	QualityCheckPassed  bool    `json:"quality_check_passed" gorm:"default:false"`
	DetectorModel       string  `json:"detector_model,omitempty" gorm:"size:50"`
	AvgDetectConfidence float64 `json:"avg_detect_confidence" gorm:"default:0"`

	// Set when a verifier flags an annotation for a mandatory second opinion.
	RequiresSecondOpinion bool `json:"requires_second_opinion" gorm:"default:false"`

	UploadMetadata datatypes.JSON `json:"upload_metadata,omitempty"`

	UploadedBy string     `json:"uploaded_by" gorm:"size:36;index"`
	UploadedAt time.Time  `json:"uploaded_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DetectedAt *time.Time `json:"detected_at,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// ProgressPercentage reports batch completion from the derived counters.
func (b *Batch) ProgressPercentage() float64 {
	if b.TotalImages == 0 {
		return 0
	}
	return float64(b.CompletedCount) / float64(b.TotalImages) * 100
}
