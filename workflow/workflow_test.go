package workflow

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"posescope/detector"
	"posescope/models"
	"posescope/notify"
)

const testSchemaDefinition = `{"keypoints":[{"name":"nose","required":true},{"name":"left_eye"},{"name":"right_eye"},{"name":"left_shoulder"},{"name":"right_shoulder"}]}`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open("sqlite", filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, det detector.Detector) (*Service, *notify.Recorder) {
	t.Helper()
	recorder := &notify.Recorder{}
	cfg := Config{MaxDetectRetries: 3, DetectBackoff: time.Millisecond, DetectWorkers: 2}
	return NewService(newTestDB(t), recorder, det, cfg), recorder
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		ID:                   uuid.NewString(),
		Username:             fmt.Sprintf("user-%s", uuid.NewString()[:8]),
		Email:                fmt.Sprintf("%s@example.org", uuid.NewString()[:8]),
		Role:                 role,
		IsApproved:           true,
		MaxConcurrentBatches: 2,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedSchema(t *testing.T, db *gorm.DB) *models.KeypointSchema {
	t.Helper()
	schema := &models.KeypointSchema{
		ID:             uuid.NewString(),
		Name:           fmt.Sprintf("quadruped-%s", uuid.NewString()[:8]),
		Version:        "1.0",
		Definition:     datatypes.JSON(testSchemaDefinition),
		TotalKeypoints: 5,
		IsActive:       true,
	}
	if err := db.Create(schema).Error; err != nil {
		t.Fatalf("seed schema: %v", err)
	}
	return schema
}

// seedBatch creates a batch with n images, all in the given image status,
// and the batch itself in the given batch status.
func seedBatch(t *testing.T, db *gorm.DB, n int, batchStatus models.BatchStatus, imageStatus models.ImageStatus) (*models.Batch, []models.Image) {
	t.Helper()
	schema := seedSchema(t, db)
	batch := &models.Batch{
		ID:               uuid.NewString(),
		Name:             "test batch",
		KeypointSchemaID: schema.ID,
		TotalImages:      n,
		Status:           batchStatus,
		Priority:         5,
	}
	if err := db.Create(batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	images := make([]models.Image, n)
	for i := range images {
		images[i] = models.Image{
			ID:          uuid.NewString(),
			BatchID:     batch.ID,
			Filename:    fmt.Sprintf("img-%03d.jpg", i),
			StoragePath: fmt.Sprintf("batches/%s/img-%03d.jpg", batch.ID, i),
			Status:      imageStatus,
			Format:      "jpeg",
		}
		if err := db.Create(&images[i]).Error; err != nil {
			t.Fatalf("seed image: %v", err)
		}
	}
	return batch, images
}

func imageIDs(images []models.Image) []string {
	ids := make([]string, len(images))
	for i := range images {
		ids[i] = images[i].ID
	}
	return ids
}

func reloadImage(t *testing.T, db *gorm.DB, id string) *models.Image {
	t.Helper()
	var img models.Image
	if err := db.First(&img, "id = ?", id).Error; err != nil {
		t.Fatalf("reload image %s: %v", id, err)
	}
	return &img
}

func reloadBatch(t *testing.T, db *gorm.DB, id string) *models.Batch {
	t.Helper()
	var batch models.Batch
	if err := db.First(&batch, "id = ?", id).Error; err != nil {
		t.Fatalf("reload batch %s: %v", id, err)
	}
	return &batch
}

func reloadAssignment(t *testing.T, db *gorm.DB, id string) *models.Assignment {
	t.Helper()
	var assignment models.Assignment
	if err := db.First(&assignment, "id = ?", id).Error; err != nil {
		t.Fatalf("reload assignment %s: %v", id, err)
	}
	return &assignment
}
