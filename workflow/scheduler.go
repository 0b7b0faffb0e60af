package workflow

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"posescope/models"
)

// AssignInput describes one scheduling request: a group of images from one
// batch handed to one annotator.
type AssignInput struct {
	BatchID      string
	ImageIDs     []string
	AnnotatorID  string
	AssignedByID string
	Type         models.AssignmentType
	Priority     int
	DueDate      *time.Time
	Instructions string
}

// Assign creates an assignment covering the requested images. It rejects
// with ErrCapacityExceeded when the annotator is at their concurrency
// limit and with ErrImageNotAssignable when any target image is not in
// DETECTED or REQUIRES_REVISION. The per-image status swap guarantees at
// most one active assignment per image even under racing schedulers.
func (s *Service) Assign(in AssignInput) (*models.Assignment, error) {
	if len(in.ImageIDs) == 0 {
		return nil, constraintf("assignment needs at least one image")
	}
	if in.Type == "" {
		in.Type = models.AssignmentInitial
	}
	if in.Priority == 0 {
		in.Priority = 5
	}
	if in.Priority < 1 || in.Priority > 10 {
		return nil, constraintf("priority %d outside 1-10", in.Priority)
	}

	annotator, err := s.loadUser(in.AnnotatorID)
	if err != nil {
		return nil, err
	}
	if !annotator.CanAnnotate() {
		return nil, constraintf("user %s cannot annotate", annotator.ID)
	}

	var active int64
	if err := s.db.Model(&models.Assignment{}).
		Where("annotator_id = ? AND status IN ?", annotator.ID, models.ActiveAssignmentStatuses).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if int(active) >= annotator.MaxConcurrentBatches {
		return nil, ErrCapacityExceeded
	}

	var images []models.Image
	if err := s.db.Where("id IN ? AND batch_id = ?", in.ImageIDs, in.BatchID).Find(&images).Error; err != nil {
		return nil, err
	}
	if len(images) != len(in.ImageIDs) {
		return nil, ErrNotFound
	}
	for i := range images {
		if !images[i].CanBeAssigned() {
			return nil, ErrImageNotAssignable
		}
	}

	batch, err := s.loadBatch(in.BatchID)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ID:                  uuid.NewString(),
		BatchID:             in.BatchID,
		AnnotatorID:         annotator.ID,
		AssignedByID:        in.AssignedByID,
		Type:                in.Type,
		Priority:            in.Priority,
		SpecialInstructions: in.Instructions,
		Status:              models.AssignmentAssigned,
		ImagesTotal:         len(images),
		DueDate:             in.DueDate,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(assignment).Error; err != nil {
			return err
		}
		for i := range images {
			if err := transitionImage(tx, &images[i], models.ImageAssigned, map[string]interface{}{
				"current_annotator_id": annotator.ID,
			}); err != nil {
				return err
			}
		}
		return advanceBatch(tx, batch, models.BatchAssigned)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"assignment": assignment.ID,
		"annotator":  annotator.ID,
		"images":     len(images),
	}).Info("Assignment created")

	if _, err := s.RecomputeProgress(in.BatchID); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Acknowledge records that the annotator has seen the assignment.
func (s *Service) Acknowledge(assignmentID, annotatorID string) (*models.Assignment, error) {
	assignment, err := s.loadAssignment(assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.AnnotatorID != annotatorID {
		return nil, constraintf("assignment %s does not belong to user %s", assignmentID, annotatorID)
	}
	now := time.Now().UTC()
	res := s.db.Model(&models.Assignment{}).
		Where("id = ? AND status = ?", assignment.ID, models.AssignmentAssigned).
		Updates(map[string]interface{}{"status": models.AssignmentAcknowledged, "acknowledged_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &TransitionError{Entity: "assignment " + assignment.ID, From: string(assignment.Status), To: string(models.AssignmentAcknowledged)}
	}
	assignment.Status = models.AssignmentAcknowledged
	assignment.AcknowledgedAt = &now
	return assignment, nil
}

// StartAssignment moves an acknowledged assignment into active work.
func (s *Service) StartAssignment(assignmentID, annotatorID string) (*models.Assignment, error) {
	assignment, err := s.loadAssignment(assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.AnnotatorID != annotatorID {
		return nil, constraintf("assignment %s does not belong to user %s", assignmentID, annotatorID)
	}
	now := time.Now().UTC()
	res := s.db.Model(&models.Assignment{}).
		Where("id = ? AND status = ?", assignment.ID, models.AssignmentAcknowledged).
		Updates(map[string]interface{}{"status": models.AssignmentInProgress, "started_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &TransitionError{Entity: "assignment " + assignment.ID, From: string(assignment.Status), To: string(models.AssignmentInProgress)}
	}
	assignment.Status = models.AssignmentInProgress
	assignment.StartedAt = &now
	return assignment, nil
}

// refreshAssignmentProgress recomputes the assignment's completion from the
// annotations submitted under it, and closes it once every image is done.
func refreshAssignmentProgress(tx *gorm.DB, assignment *models.Assignment) error {
	var completed int64
	if err := tx.Model(&models.Annotation{}).
		Where("assignment_id = ? AND status IN ?", assignment.ID, []models.AnnotationStatus{
			models.AnnotationSubmitted, models.AnnotationUnderReview, models.AnnotationApproved,
		}).
		Count(&completed).Error; err != nil {
		return err
	}

	progress := 0.0
	if assignment.ImagesTotal > 0 {
		progress = float64(completed) / float64(assignment.ImagesTotal) * 100
	}
	updates := map[string]interface{}{
		"images_completed":    completed,
		"progress_percentage": progress,
	}
	if int(completed) >= assignment.ImagesTotal && assignment.Status.IsActive() {
		now := time.Now().UTC()
		updates["status"] = models.AssignmentSubmitted
		updates["completed_at"] = now
		assignment.Status = models.AssignmentSubmitted
		assignment.CompletedAt = &now
	}
	if err := tx.Model(&models.Assignment{}).Where("id = ?", assignment.ID).Updates(updates).Error; err != nil {
		return err
	}
	assignment.ImagesCompleted = int(completed)
	assignment.ProgressPercentage = progress
	return nil
}

// OverdueAssignments returns open assignments whose due date has passed.
// Overdue is a pure query over due_date, never a stored flag.
func (s *Service) OverdueAssignments(now time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := s.db.
		Where("due_date IS NOT NULL AND due_date < ? AND status IN ?", now, models.ActiveAssignmentStatuses).
		Order("due_date").
		Find(&assignments).Error
	return assignments, err
}
