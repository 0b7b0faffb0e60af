package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ImageStatus is the per-image workflow state.
type ImageStatus string

const (
	ImageUploaded         ImageStatus = "UPLOADED"
	ImageDetected         ImageStatus = "DETECTED"
	ImageDetectionFailed  ImageStatus = "DETECTION_FAILED"
	ImageAssigned         ImageStatus = "ASSIGNED"
	ImageInProgress       ImageStatus = "IN_PROGRESS"
	ImageAnnotated        ImageStatus = "ANNOTATED"
	ImageSubmitted        ImageStatus = "SUBMITTED"
	ImageUnderReview      ImageStatus = "UNDER_REVIEW"
	ImageApproved         ImageStatus = "APPROVED"
	ImageRejected         ImageStatus = "REJECTED"
	ImageRequiresRevision ImageStatus = "REQUIRES_REVISION"
	ImageCancelled        ImageStatus = "CANCELLED"
)

var allImageStatuses = []ImageStatus{
	ImageUploaded,
	ImageDetected,
	ImageDetectionFailed,
	ImageAssigned,
	ImageInProgress,
	ImageAnnotated,
	ImageSubmitted,
	ImageUnderReview,
	ImageApproved,
	ImageRejected,
	ImageRequiresRevision,
	ImageCancelled,
}

// ParseImageStatus converts a string into a known ImageStatus.
func ParseImageStatus(value string) (ImageStatus, bool) {
	normalized := ImageStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allImageStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the image can never change state again.
func (s ImageStatus) IsTerminal() bool {
	return s == ImageApproved || s == ImageRejected || s == ImageCancelled
}

// InAnnotationPipeline reports whether the image counts as assigned work.
func (s ImageStatus) InAnnotationPipeline() bool {
	switch s {
	case ImageAssigned, ImageInProgress, ImageAnnotated, ImageSubmitted, ImageUnderReview:
		return true
	}
	return false
}

// Image is a single photograph inside a batch. The batch owns it
// exclusively; deleting the batch cascades to its images.
type Image struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	BatchID string `json:"batch_id" gorm:"size:36;index:idx_images_batch_status"`
	Batch   *Batch `json:"-" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`

	Filename         string `json:"filename" gorm:"size:255"`
	OriginalFilename string `json:"original_filename" gorm:"size:255"`
	StoragePath      string `json:"storage_path" gorm:"size:500"`
	ThumbnailPath    string `json:"thumbnail_path,omitempty" gorm:"size:500"`

	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
	Format   string `json:"format" gorm:"size:10"`

	// Detector output, nil until the image has been processed.
	DetectedKeypoints    datatypes.JSON `json:"detected_keypoints,omitempty"`
	DetectConfidence     float64        `json:"detect_confidence" gorm:"default:0"`
	DetectModelVersion   string         `json:"detect_model_version,omitempty" gorm:"size:50"`
	DetectTimeMillis     int64          `json:"detect_time_ms" gorm:"default:0"`
	DetectRetryCount     int            `json:"detect_retry_count" gorm:"default:0"`
	DetectFailureMessage string         `json:"detect_failure_message,omitempty"`

	Status ImageStatus `json:"status" gorm:"size:20;index;index:idx_images_batch_status;default:UPLOADED"`

	// Weak user references: deleting a user nulls these, never the image.
	CurrentAnnotatorID *string `json:"current_annotator_id,omitempty" gorm:"size:36;index"`
	CurrentVerifierID  *string `json:"current_verifier_id,omitempty" gorm:"size:36;index"`

	IsDifficultCase          bool           `json:"is_difficult_case" gorm:"default:false"`
	RequiresSpecialistReview bool           `json:"requires_specialist_review" gorm:"default:false"`
	QualityIssues            datatypes.JSON `json:"quality_issues,omitempty"`

	CreatedAt        time.Time `json:"created_at"`
	LastStatusChange time.Time `json:"last_status_change"`
}

// CanBeAssigned reports whether the scheduler may hand the image to an annotator.
func (i *Image) CanBeAssigned() bool {
	return i.Status == ImageDetected || i.Status == ImageRequiresRevision
}
