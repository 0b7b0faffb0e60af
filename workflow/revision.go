package workflow

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"posescope/models"
)

// SubmitInput is the payload of one annotation submission.
type SubmitInput struct {
	AssignmentID string
	ImageID      string
	AnnotatorID  string

	Keypoints  datatypes.JSON
	Confidence datatypes.JSON
	Visibility datatypes.JSON
	Notes      datatypes.JSON

	QualityScore      float64
	DifficultyRating  models.DifficultyRating
	KeypointsModified int
	GeneralNotes      string
	RevisionReason    string
	TimeSpentSeconds  int
}

// SubmitAnnotation records one annotation version for an image and moves
// the image to SUBMITTED. Version numbers are dense per image; every
// revision points back at the version-1 root so lineage lookups stay one
// indexed query. An existing active annotation for the image fails the
// call with ErrDuplicateSubmission.
func (s *Service) SubmitAnnotation(in SubmitInput) (*models.Annotation, error) {
	assignment, err := s.loadAssignment(in.AssignmentID)
	if err != nil {
		return nil, err
	}
	if in.AnnotatorID != "" && assignment.AnnotatorID != in.AnnotatorID {
		return nil, constraintf("assignment %s does not belong to user %s", assignment.ID, in.AnnotatorID)
	}

	img, err := s.loadImage(in.ImageID)
	if err != nil {
		return nil, err
	}
	if img.BatchID != assignment.BatchID {
		return nil, constraintf("image %s is not part of batch %s", img.ID, assignment.BatchID)
	}

	// The duplicate check comes before the assignment gate: once an image
	// carries a live annotation the answer is ErrDuplicateSubmission no
	// matter what state its assignment has moved to since.
	var activeCount int64
	if err := s.db.Model(&models.Annotation{}).
		Where("image_id = ? AND status IN ?", img.ID, models.ActiveAnnotationStatuses).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	if activeCount > 0 {
		return nil, ErrDuplicateSubmission
	}

	if !assignment.Status.IsActive() {
		return nil, constraintf("assignment %s is not active", assignment.ID)
	}

	var prior []models.Annotation
	if err := s.db.Where("image_id = ?", img.ID).Order("version").Find(&prior).Error; err != nil {
		return nil, err
	}
	version := 1
	var rootID *string
	if len(prior) > 0 {
		version = prior[len(prior)-1].Version + 1
		// Chain to the root, not the immediate predecessor.
		root := prior[0]
		if root.OriginalAnnotationID != nil {
			rootID = root.OriginalAnnotationID
		} else {
			id := root.ID
			rootID = &id
		}
	}

	now := time.Now().UTC()
	annotation := &models.Annotation{
		ID:                   uuid.NewString(),
		ImageID:              img.ID,
		AssignmentID:         assignment.ID,
		RefinedKeypoints:     in.Keypoints,
		KeypointConfidence:   in.Confidence,
		KeypointVisibility:   in.Visibility,
		KeypointNotes:        in.Notes,
		QualityScore:         in.QualityScore,
		DifficultyRating:     in.DifficultyRating,
		KeypointsModified:    in.KeypointsModified,
		GeneralNotes:         in.GeneralNotes,
		Version:              version,
		IsRevision:           version > 1,
		OriginalAnnotationID: rootID,
		RevisionReason:       in.RevisionReason,
		TimeSpentSeconds:     in.TimeSpentSeconds,
		Status:               models.AnnotationSubmitted,
		SubmittedAt:          &now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if assignment.Status == models.AssignmentAssigned || assignment.Status == models.AssignmentAcknowledged {
			if err := tx.Model(&models.Assignment{}).
				Where("id = ? AND status = ?", assignment.ID, assignment.Status).
				Updates(map[string]interface{}{"status": models.AssignmentInProgress, "started_at": now}).Error; err != nil {
				return err
			}
			assignment.Status = models.AssignmentInProgress
		}
		if err := advanceImage(tx, img,
			models.ImageInProgress, models.ImageAnnotated, models.ImageSubmitted); err != nil {
			return err
		}
		if err := tx.Create(annotation).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", assignment.AnnotatorID).
			Update("total_annotations_completed", gorm.Expr("total_annotations_completed + 1")).Error; err != nil {
			return err
		}
		return refreshAssignmentProgress(tx, assignment)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"annotation": annotation.ID,
		"image":      img.ID,
		"version":    version,
	}).Info("Annotation submitted")

	if _, err := s.RecomputeProgress(img.BatchID); err != nil {
		return nil, err
	}
	return annotation, nil
}

// AnnotationLineage returns every version recorded for an image, oldest
// first. Thanks to the root pointer this needs no chain walking.
func (s *Service) AnnotationLineage(imageID string) ([]models.Annotation, error) {
	if _, err := s.loadImage(imageID); err != nil {
		return nil, err
	}
	var annotations []models.Annotation
	err := s.db.Where("image_id = ?", imageID).Order("version").Find(&annotations).Error
	return annotations, err
}
