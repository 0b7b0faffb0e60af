package workflow

import (
	"errors"
	"testing"
	"time"

	"posescope/models"
)

func TestAssign(t *testing.T) {
	svc, _ := newTestService(t, nil)
	annotator := seedUser(t, svc.db, models.RoleAnnotator)
	admin := seedUser(t, svc.db, models.RoleAdmin)
	batch, images := seedBatch(t, svc.db, 3, models.BatchReadyForAnnotation, models.ImageDetected)

	assignment, err := svc.Assign(AssignInput{
		BatchID:      batch.ID,
		ImageIDs:     imageIDs(images),
		AnnotatorID:  annotator.ID,
		AssignedByID: admin.ID,
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.Status != models.AssignmentAssigned {
		t.Errorf("assignment status = %s, want ASSIGNED", assignment.Status)
	}
	if assignment.Type != models.AssignmentInitial {
		t.Errorf("assignment type = %s, want INITIAL", assignment.Type)
	}
	if assignment.ImagesTotal != 3 {
		t.Errorf("images_total = %d, want 3", assignment.ImagesTotal)
	}

	for _, id := range imageIDs(images) {
		img := reloadImage(t, svc.db, id)
		if img.Status != models.ImageAssigned {
			t.Errorf("image %s status = %s, want ASSIGNED", id, img.Status)
		}
		if img.CurrentAnnotatorID == nil || *img.CurrentAnnotatorID != annotator.ID {
			t.Errorf("image %s current annotator not set", id)
		}
	}

	got := reloadBatch(t, svc.db, batch.ID)
	if got.Status != models.BatchAssigned {
		t.Errorf("batch status = %s, want ASSIGNED", got.Status)
	}
	if got.AssignedCount != 3 {
		t.Errorf("assigned_count = %d, want 3", got.AssignedCount)
	}
}

func TestAssignRejectsUnassignableImage(t *testing.T) {
	svc, _ := newTestService(t, nil)
	annotator := seedUser(t, svc.db, models.RoleAnnotator)
	batch, images := seedBatch(t, svc.db, 2, models.BatchDetecting, models.ImageUploaded)

	_, err := svc.Assign(AssignInput{
		BatchID:     batch.ID,
		ImageIDs:    imageIDs(images),
		AnnotatorID: annotator.ID,
	})
	if !errors.Is(err, ErrImageNotAssignable) {
		t.Fatalf("err = %v, want ErrImageNotAssignable", err)
	}
	// Nothing may be written on a rejected request.
	var count int64
	svc.db.Model(&models.Assignment{}).Count(&count)
	if count != 0 {
		t.Errorf("assignment created despite rejection")
	}
}

func TestAssignCapacity(t *testing.T) {
	svc, _ := newTestService(t, nil)
	annotator := seedUser(t, svc.db, models.RoleAnnotator)
	if err := svc.db.Model(&models.User{}).Where("id = ?", annotator.ID).
		Update("max_concurrent_batches", 1).Error; err != nil {
		t.Fatal(err)
	}
	annotator.MaxConcurrentBatches = 1

	first, firstImages := seedBatch(t, svc.db, 1, models.BatchReadyForAnnotation, models.ImageDetected)
	if _, err := svc.Assign(AssignInput{
		BatchID: first.ID, ImageIDs: imageIDs(firstImages), AnnotatorID: annotator.ID,
	}); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	second, secondImages := seedBatch(t, svc.db, 1, models.BatchReadyForAnnotation, models.ImageDetected)
	_, err := svc.Assign(AssignInput{
		BatchID: second.ID, ImageIDs: imageIDs(secondImages), AnnotatorID: annotator.ID,
	})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
}

func TestAssignValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	annotator := seedUser(t, svc.db, models.RoleAnnotator)
	verifier := seedUser(t, svc.db, models.RoleVerifier)
	batch, images := seedBatch(t, svc.db, 1, models.BatchReadyForAnnotation, models.ImageDetected)

	if _, err := svc.Assign(AssignInput{BatchID: batch.ID, AnnotatorID: annotator.ID}); !errors.Is(err, ErrConstraintViolation) {
		t.Errorf("empty image list: err = %v, want ErrConstraintViolation", err)
	}
	if _, err := svc.Assign(AssignInput{
		BatchID: batch.ID, ImageIDs: imageIDs(images), AnnotatorID: annotator.ID, Priority: 11,
	}); !errors.Is(err, ErrConstraintViolation) {
		t.Errorf("priority out of range: err = %v, want ErrConstraintViolation", err)
	}
	if _, err := svc.Assign(AssignInput{
		BatchID: batch.ID, ImageIDs: imageIDs(images), AnnotatorID: verifier.ID,
	}); !errors.Is(err, ErrConstraintViolation) {
		t.Errorf("verifier as annotator: err = %v, want ErrConstraintViolation", err)
	}
	if _, err := svc.Assign(AssignInput{
		BatchID: batch.ID, ImageIDs: []string{"no-such-image"}, AnnotatorID: annotator.ID,
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown image: err = %v, want ErrNotFound", err)
	}
}

func TestAcknowledgeAndStart(t *testing.T) {
	svc, _ := newTestService(t, nil)
	annotator := seedUser(t, svc.db, models.RoleAnnotator)
	other := seedUser(t, svc.db, models.RoleAnnotator)
	batch, images := seedBatch(t, svc.db, 1, models.BatchReadyForAnnotation, models.ImageDetected)

	assignment, err := svc.Assign(AssignInput{
		BatchID: batch.ID, ImageIDs: imageIDs(images), AnnotatorID: annotator.ID,
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := svc.Acknowledge(assignment.ID, other.ID); !errors.Is(err, ErrConstraintViolation) {
		t.Errorf("foreign acknowledge: err = %v, want ErrConstraintViolation", err)
	}
	if _, err := svc.StartAssignment(assignment.ID, annotator.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("start before acknowledge: err = %v, want ErrInvalidTransition", err)
	}

	acked, err := svc.Acknowledge(assignment.ID, annotator.ID)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.Status != models.AssignmentAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("acknowledge did not record status/timestamp")
	}
	if _, err := svc.Acknowledge(assignment.ID, annotator.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double acknowledge: err = %v, want ErrInvalidTransition", err)
	}

	started, err := svc.StartAssignment(assignment.ID, annotator.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.AssignmentInProgress || started.StartedAt == nil {
		t.Errorf("start did not record status/timestamp")
	}
}

func TestOverdueAssignments(t *testing.T) {
	svc, _ := newTestService(t, nil)
	annotator := seedUser(t, svc.db, models.RoleAnnotator)
	batch, images := seedBatch(t, svc.db, 2, models.BatchReadyForAnnotation, models.ImageDetected)

	past := time.Now().UTC().Add(-48 * time.Hour)
	late, err := svc.Assign(AssignInput{
		BatchID: batch.ID, ImageIDs: imageIDs(images[:1]), AnnotatorID: annotator.ID, DueDate: &past,
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	future := time.Now().UTC().Add(48 * time.Hour)
	if _, err := svc.Assign(AssignInput{
		BatchID: batch.ID, ImageIDs: imageIDs(images[1:]), AnnotatorID: annotator.ID, DueDate: &future,
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	overdue, err := svc.OverdueAssignments(time.Now().UTC())
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != late.ID {
		t.Fatalf("overdue = %d assignments, want exactly the late one", len(overdue))
	}
	if !overdue[0].IsOverdue(time.Now().UTC()) {
		t.Errorf("IsOverdue disagrees with the query")
	}
}
