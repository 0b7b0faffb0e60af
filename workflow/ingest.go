package workflow

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"posescope/detector"
	"posescope/models"
	"posescope/notify"
)

// IngestDetections normalizes raw detector output against the batch's
// keypoint schema and moves the image from UPLOADED to DETECTED. An empty
// detection list is valid; malformed output is rejected at this boundary.
func (s *Service) IngestDetections(imageID string, detections []detector.RawDetection, modelVersion string, elapsed time.Duration) error {
	img, err := s.loadImage(imageID)
	if err != nil {
		return err
	}
	batch, err := s.loadBatch(img.BatchID)
	if err != nil {
		return err
	}

	normalized, avgConfidence, err := normalizeDetections(detections, batch.KeypointSchema)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return constraintf("encode detections for image %s", imageID)
	}

	return transitionImage(s.db, img, models.ImageDetected, map[string]interface{}{
		"detected_keypoints":     payload,
		"detect_confidence":      avgConfidence,
		"detect_model_version":   modelVersion,
		"detect_time_millis":     elapsed.Milliseconds(),
		"detect_failure_message": "",
	})
}

// FailDetection records an exhausted detection attempt. The image parks in
// DETECTION_FAILED without touching its siblings; only an explicit retry
// moves it back to UPLOADED.
func (s *Service) FailDetection(imageID string, cause error) error {
	img, err := s.loadImage(imageID)
	if err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := transitionImage(s.db, img, models.ImageDetectionFailed, map[string]interface{}{
		"detect_failure_message": message,
		"detect_retry_count":     gorm.Expr("detect_retry_count + 1"),
	}); err != nil {
		return err
	}
	s.notifier.Publish(img.BatchID, notify.Event{
		Type: notify.EventError,
		At:   time.Now().UTC(),
		Payload: map[string]interface{}{
			"image_id": img.ID,
			"error":    message,
		},
	})
	return nil
}

// RetryDetection returns a failed image to the detection pool.
func (s *Service) RetryDetection(imageID string) error {
	img, err := s.loadImage(imageID)
	if err != nil {
		return err
	}
	return transitionImage(s.db, img, models.ImageUploaded, map[string]interface{}{
		"detect_failure_message": "",
	})
}

// ProcessBatch runs the detector over every UPLOADED image of the batch
// with a bounded worker pool. Each image is an independent transactional
// unit: one failure never rolls back or blocks its siblings. Detection
// failures retry with exponential backoff up to the configured bound.
//
// The first run carries the batch UPLOADED through DETECTING to
// READY_FOR_ANNOTATION. Later runs leave the batch status alone and only
// sweep images returned to UPLOADED by RetryDetection.
func (s *Service) ProcessBatch(ctx context.Context, batchID string) error {
	batch, err := s.loadBatch(batchID)
	if err != nil {
		return err
	}
	if batch.Status.IsTerminal() {
		return &TransitionError{Entity: "batch " + batch.ID, From: string(batch.Status), To: string(models.BatchDetecting)}
	}
	if batch.Status == models.BatchUploaded {
		if err := transitionBatch(s.db, batch, models.BatchDetecting, nil); err != nil {
			return err
		}
	}

	var pending []models.Image
	if err := s.db.Where("batch_id = ? AND status = ?", batchID, models.ImageUploaded).Find(&pending).Error; err != nil {
		return err
	}

	jobs := make(chan models.Image)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.DetectWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for img := range jobs {
				s.detectOne(ctx, img)
			}
		}()
	}
	for _, img := range pending {
		jobs <- img
	}
	close(jobs)
	wg.Wait()

	if batch.Status == models.BatchDetecting {
		now := time.Now().UTC()
		if err := transitionBatch(s.db, batch, models.BatchDetected, map[string]interface{}{
			"detected_at":    now,
			"detector_model": s.det.ModelVersion(),
		}); err != nil {
			return err
		}
		if err := transitionBatch(s.db, batch, models.BatchReadyForAnnotation, nil); err != nil {
			return err
		}
	}
	_, err = s.RecomputeProgress(batchID)
	return err
}

// detectOne runs the retry loop for a single image.
func (s *Service) detectOne(ctx context.Context, img models.Image) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxDetectRetries; attempt++ {
		start := time.Now()
		detections, err := s.det.Detect(ctx, img.StoragePath)
		if err == nil {
			if ingestErr := s.IngestDetections(img.ID, detections, s.det.ModelVersion(), time.Since(start)); ingestErr != nil {
				lastErr = ingestErr
				break
			}
			log.WithFields(log.Fields{"image": img.ID, "keypoints": len(detections)}).Info("Detection complete")
			return
		}
		lastErr = err
		if !detector.IsFailure(err) {
			break
		}
		if attempt < s.cfg.MaxDetectRetries {
			backoff := s.cfg.DetectBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = s.cfg.MaxDetectRetries
			case <-time.After(backoff):
			}
		}
	}
	log.WithFields(log.Fields{"image": img.ID}).Warn("Detection exhausted retries: ", lastErr)
	if err := s.FailDetection(img.ID, lastErr); err != nil {
		log.Warn("Could not record detection failure for image ", img.ID, ": ", err)
	}
}

// normalizeDetections validates raw output against the schema and computes
// the average keypoint confidence.
func normalizeDetections(detections []detector.RawDetection, schema *models.KeypointSchema) ([]detector.RawDetection, float64, error) {
	var labels map[string]struct{}
	if schema != nil {
		var err error
		labels, err = schema.LabelSet()
		if err != nil {
			return nil, 0, constraintf("decode keypoint schema %s", schema.ID)
		}
	}

	normalized := make([]detector.RawDetection, 0, len(detections))
	sum := 0.0
	count := 0
	for _, d := range detections {
		if d.Type == "" {
			d.Type = "keypoint"
		}
		if math.IsNaN(d.X) || math.IsInf(d.X, 0) || math.IsNaN(d.Y) || math.IsInf(d.Y, 0) || d.X < 0 || d.Y < 0 {
			return nil, 0, constraintf("detection %q has invalid coordinates", d.Label)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return nil, 0, constraintf("detection %q has confidence outside [0,1]", d.Label)
		}
		if d.Type == "keypoint" && len(labels) > 0 {
			if _, ok := labels[d.Label]; !ok {
				return nil, 0, constraintf("detection label %q not in schema", d.Label)
			}
			sum += d.Confidence
			count++
		}
		normalized = append(normalized, d)
	}

	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}
	return normalized, avg, nil
}
