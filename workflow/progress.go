package workflow

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"posescope/models"
	"posescope/notify"
)

// RecomputeProgress rebuilds the batch's aggregate counters from its
// current child image states. It is idempotent and safe to re-run after a
// partial failure: nothing is accumulated, everything derives from one
// grouped query over the images table.
func (s *Service) RecomputeProgress(batchID string) (*models.Batch, error) {
	batch, err := s.loadBatch(batchID)
	if err != nil {
		return nil, err
	}

	type statusCount struct {
		Status models.ImageStatus
		N      int
	}
	var rows []statusCount
	if err := s.db.Model(&models.Image{}).
		Select("status, count(*) as n").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.ImageStatus]int, len(rows))
	total := 0
	for _, row := range rows {
		counts[row.Status] = row.N
		total += row.N
	}

	assigned := 0
	for _, status := range []models.ImageStatus{
		models.ImageAssigned, models.ImageInProgress, models.ImageAnnotated,
		models.ImageSubmitted, models.ImageUnderReview,
	} {
		assigned += counts[status]
	}
	approved := counts[models.ImageApproved]
	rejected := counts[models.ImageRejected]
	completed := approved + rejected
	failed := counts[models.ImageDetectionFailed]
	terminal := approved + rejected + counts[models.ImageCancelled]

	if err := s.db.Model(&models.Batch{}).Where("id = ?", batchID).Updates(map[string]interface{}{
		"assigned_count":  assigned,
		"completed_count": completed,
		"approved_count":  approved,
		"rejected_count":  rejected,
		"failed_count":    failed,
		"updated_at":      time.Now().UTC(),
	}).Error; err != nil {
		return nil, err
	}
	batch.AssignedCount = assigned
	batch.CompletedCount = completed
	batch.ApprovedCount = approved
	batch.RejectedCount = rejected
	batch.FailedCount = failed

	if !batch.Status.IsTerminal() {
		inFlight := counts[models.ImageInProgress] + counts[models.ImageAnnotated] +
			counts[models.ImageSubmitted] + counts[models.ImageUnderReview]
		switch {
		case total > 0 && terminal == total:
			if err := advanceBatch(s.db, batch, models.BatchCompleted); err != nil {
				return nil, err
			}
		case batch.Status == models.BatchAssigned && (inFlight > 0 || completed > 0):
			if err := advanceBatch(s.db, batch, models.BatchInProgress); err != nil {
				return nil, err
			}
		}
	}

	s.publishProgress(batch)
	return batch, nil
}

func (s *Service) publishProgress(batch *models.Batch) {
	event := notify.Event{
		Type: notify.EventProgress,
		At:   time.Now().UTC(),
		Payload: map[string]interface{}{
			"status":          string(batch.Status),
			"total_images":    batch.TotalImages,
			"assigned_count":  batch.AssignedCount,
			"completed_count": batch.CompletedCount,
			"approved_count":  batch.ApprovedCount,
			"rejected_count":  batch.RejectedCount,
			"failed_count":    batch.FailedCount,
			"percentage":      batch.ProgressPercentage(),
		},
	}
	if batch.Status == models.BatchCompleted {
		event.Type = notify.EventComplete
	}
	s.notifier.Publish(batch.ID, event)
}

// CancelBatch force-cancels the batch, all of its non-terminal images, and
// any open assignments. Irreversible.
func (s *Service) CancelBatch(batchID string) (*models.Batch, error) {
	batch, err := s.loadBatch(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status.IsTerminal() {
		return nil, &TransitionError{Entity: "batch " + batch.ID, From: string(batch.Status), To: string(models.BatchCancelled)}
	}

	now := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Batch{}).
			Where("id = ? AND status = ?", batch.ID, batch.Status).
			Updates(map[string]interface{}{"status": models.BatchCancelled, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &TransitionError{Entity: "batch " + batch.ID, From: string(batch.Status), To: string(models.BatchCancelled)}
		}

		if err := tx.Model(&models.Image{}).
			Where("batch_id = ? AND status NOT IN ?", batch.ID, []models.ImageStatus{
				models.ImageApproved, models.ImageRejected, models.ImageCancelled,
			}).
			Updates(map[string]interface{}{"status": models.ImageCancelled, "last_status_change": now}).Error; err != nil {
			return err
		}

		// Retire annotations still awaiting review so nothing in the
		// batch is considered live work after the cancel.
		if err := tx.Model(&models.Annotation{}).
			Where("image_id IN (?) AND status IN ?",
				tx.Model(&models.Image{}).Select("id").Where("batch_id = ?", batch.ID),
				models.ActiveAnnotationStatuses).
			Update("status", models.AnnotationRevisionRequested).Error; err != nil {
			return err
		}

		return tx.Model(&models.Assignment{}).
			Where("batch_id = ? AND status IN ?", batch.ID, models.ActiveAssignmentStatuses).
			Updates(map[string]interface{}{"status": models.AssignmentCancelled}).Error
	})
	if err != nil {
		return nil, err
	}
	batch.Status = models.BatchCancelled
	log.Info("Cancelled batch ", batch.ID)

	s.notifier.Publish(batch.ID, notify.Event{
		Type:    notify.EventCancelled,
		At:      now,
		Payload: map[string]interface{}{"status": string(models.BatchCancelled)},
	})
	return batch, nil
}

// ArchiveBatch moves a completed batch to its terminal ARCHIVED state.
func (s *Service) ArchiveBatch(batchID string) (*models.Batch, error) {
	batch, err := s.loadBatch(batchID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := transitionBatch(s.db, batch, models.BatchArchived, map[string]interface{}{"archived_at": now}); err != nil {
		return nil, err
	}
	return batch, nil
}
