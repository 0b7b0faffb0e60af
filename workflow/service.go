package workflow

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"posescope/detector"
	"posescope/models"
	"posescope/notify"
)

// Config tunes the detection ingestion pool.
type Config struct {
	// MaxDetectRetries bounds attempts per image before DETECTION_FAILED.
	MaxDetectRetries int
	// DetectBackoff is the base delay; attempt n waits base * 2^(n-1).
	DetectBackoff time.Duration
	// DetectWorkers bounds concurrent detector calls per batch.
	DetectWorkers int
}

// DefaultConfig returns the production ingestion settings.
func DefaultConfig() Config {
	return Config{
		MaxDetectRetries: 3,
		DetectBackoff:    time.Second,
		DetectWorkers:    4,
	}
}

// Service owns all workflow state transitions. Handlers construct one per
// process and call it from request scope; it holds no state of its own
// beyond its collaborators.
type Service struct {
	db       *gorm.DB
	notifier notify.Publisher
	det      detector.Detector
	cfg      Config
}

// NewService wires the workflow core to its collaborators.
func NewService(db *gorm.DB, notifier notify.Publisher, det detector.Detector, cfg Config) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if cfg.MaxDetectRetries <= 0 {
		cfg.MaxDetectRetries = DefaultConfig().MaxDetectRetries
	}
	if cfg.DetectWorkers <= 0 {
		cfg.DetectWorkers = DefaultConfig().DetectWorkers
	}
	if cfg.DetectBackoff <= 0 {
		cfg.DetectBackoff = DefaultConfig().DetectBackoff
	}
	return &Service{db: db, notifier: notifier, det: det, cfg: cfg}
}

// imageTransitions is the strict per-image state table. Any edge not
// listed fails with a TransitionError and leaves the row untouched.
var imageTransitions = map[models.ImageStatus][]models.ImageStatus{
	models.ImageUploaded:         {models.ImageDetected, models.ImageDetectionFailed, models.ImageCancelled},
	models.ImageDetected:         {models.ImageAssigned, models.ImageCancelled},
	models.ImageDetectionFailed:  {models.ImageUploaded, models.ImageCancelled},
	models.ImageAssigned:         {models.ImageInProgress, models.ImageCancelled},
	models.ImageInProgress:       {models.ImageAnnotated, models.ImageCancelled},
	models.ImageAnnotated:        {models.ImageSubmitted, models.ImageCancelled},
	models.ImageSubmitted:        {models.ImageUnderReview, models.ImageCancelled},
	models.ImageUnderReview:      {models.ImageApproved, models.ImageRejected, models.ImageRequiresRevision, models.ImageCancelled},
	models.ImageRequiresRevision: {models.ImageAssigned, models.ImageCancelled},
}

// ImageCanTransition reports whether the edge from -> to is allowed.
func ImageCanTransition(from, to models.ImageStatus) bool {
	for _, next := range imageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var batchTransitions = map[models.BatchStatus][]models.BatchStatus{
	models.BatchUploaded:           {models.BatchDetecting, models.BatchCancelled},
	models.BatchDetecting:          {models.BatchDetected, models.BatchCancelled},
	models.BatchDetected:           {models.BatchReadyForAnnotation, models.BatchCancelled},
	models.BatchReadyForAnnotation: {models.BatchAssigned, models.BatchCancelled},
	models.BatchAssigned:           {models.BatchInProgress, models.BatchCancelled},
	models.BatchInProgress:         {models.BatchCompleted, models.BatchCancelled},
	models.BatchCompleted:          {models.BatchArchived, models.BatchCancelled},
}

// BatchCanTransition reports whether the edge from -> to is allowed.
func BatchCanTransition(from, to models.BatchStatus) bool {
	for _, next := range batchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// batchOrder is the forward path used when a derived state change needs to
// advance a batch several steps at once.
var batchOrder = []models.BatchStatus{
	models.BatchUploaded,
	models.BatchDetecting,
	models.BatchDetected,
	models.BatchReadyForAnnotation,
	models.BatchAssigned,
	models.BatchInProgress,
	models.BatchCompleted,
}

// transitionImage applies one edge with a compare-and-swap on the current
// status. A concurrent writer that got there first makes RowsAffected zero,
// which surfaces as a TransitionError instead of a silent overwrite.
func transitionImage(db *gorm.DB, img *models.Image, to models.ImageStatus, extra map[string]interface{}) error {
	if !ImageCanTransition(img.Status, to) {
		return &TransitionError{Entity: "image " + img.ID, From: string(img.Status), To: string(to)}
	}
	updates := map[string]interface{}{
		"status":             to,
		"last_status_change": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.Model(&models.Image{}).
		Where("id = ? AND status = ?", img.ID, img.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &TransitionError{Entity: "image " + img.ID, From: string(img.Status), To: string(to)}
	}
	img.Status = to
	return nil
}

// advanceImage walks the image through consecutive edges.
func advanceImage(db *gorm.DB, img *models.Image, path ...models.ImageStatus) error {
	for _, next := range path {
		if img.Status == next {
			continue
		}
		if err := transitionImage(db, img, next, nil); err != nil {
			return err
		}
	}
	return nil
}

// transitionBatch applies one batch edge with the same CAS discipline.
func transitionBatch(db *gorm.DB, batch *models.Batch, to models.BatchStatus, extra map[string]interface{}) error {
	if !BatchCanTransition(batch.Status, to) {
		return &TransitionError{Entity: "batch " + batch.ID, From: string(batch.Status), To: string(to)}
	}
	updates := map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.Model(&models.Batch{}).
		Where("id = ? AND status = ?", batch.ID, batch.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &TransitionError{Entity: "batch " + batch.ID, From: string(batch.Status), To: string(to)}
	}
	batch.Status = to
	return nil
}

// advanceBatch moves the batch forward along the lifecycle to target.
// Already being at or past target is not an error: derived recomputes may
// race and the later writer simply has nothing to do.
func advanceBatch(db *gorm.DB, batch *models.Batch, target models.BatchStatus) error {
	cur, tgt := -1, -1
	for i, s := range batchOrder {
		if s == batch.Status {
			cur = i
		}
		if s == target {
			tgt = i
		}
	}
	if cur < 0 || tgt < 0 || cur >= tgt {
		return nil
	}
	for _, next := range batchOrder[cur+1 : tgt+1] {
		if err := transitionBatch(db, batch, next, nil); err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) loadBatch(id string) (*models.Batch, error) {
	var batch models.Batch
	if err := s.db.Preload("KeypointSchema").First(&batch, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &batch, nil
}

func (s *Service) loadImage(id string) (*models.Image, error) {
	var img models.Image
	if err := s.db.First(&img, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &img, nil
}

func (s *Service) loadUser(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Service) loadAssignment(id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := s.db.First(&assignment, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &assignment, nil
}

func (s *Service) loadAnnotation(id string) (*models.Annotation, error) {
	var ann models.Annotation
	if err := s.db.First(&ann, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &ann, nil
}
