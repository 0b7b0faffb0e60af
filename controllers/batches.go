package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"posescope/middlewares"
	"posescope/models"
	"posescope/storage"
	"posescope/utils"
	"posescope/workflow"
)

// CreateBatch accepts a multipart upload: batch metadata plus one or more
// image files. Every file is stored, measured, and registered as an
// UPLOADED image; detection runs separately via ProcessBatch.
func CreateBatch(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)

		name := c.PostForm("name")
		schemaID := c.PostForm("keypoint_schema_id")
		if name == "" || schemaID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and keypoint_schema_id are required"})
			return
		}
		var schema models.KeypointSchema
		if err := models.DB.First(&schema, "id = ? AND is_active = ?", schemaID, true).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keypoint schema not found or inactive"})
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files := form.File["images"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one image file is required"})
			return
		}

		batch := models.Batch{
			ID:               uuid.NewString(),
			Name:             name,
			Description:      c.PostForm("description"),
			KeypointSchemaID: schema.ID,
			TotalImages:      len(files),
			Status:           models.BatchUploaded,
			Priority:         5,
			UploadedBy:       user.ID,
		}
		if err := models.DB.Create(&batch).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for _, fh := range files {
			src, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			data, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			info, err := utils.DecodeInfo(data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
				return
			}

			imageID := uuid.NewString()
			ext := strings.ToLower(filepath.Ext(fh.Filename))
			storedName := filepath.Join("batches", batch.ID, imageID+ext)
			storedPath, err := store.Save(storedName, data)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}

			thumbPath := ""
			if thumb, err := utils.Thumbnail(data); err == nil {
				thumbPath, _ = store.Save(filepath.Join("thumbnails", batch.ID, imageID+".jpg"), thumb)
			} else {
				log.Warn("Thumbnail generation failed for ", fh.Filename, ": ", err)
			}

			img := models.Image{
				ID:               imageID,
				BatchID:          batch.ID,
				Filename:         imageID + ext,
				OriginalFilename: fh.Filename,
				StoragePath:      storedPath,
				ThumbnailPath:    thumbPath,
				Width:            info.Width,
				Height:           info.Height,
				FileSize:         int64(len(data)),
				Format:           info.Format,
				Status:           models.ImageUploaded,
			}
			if err := models.DB.Create(&img).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		log.WithFields(log.Fields{"batch": batch.ID, "images": len(files)}).Info("Batch uploaded")

		c.JSON(http.StatusCreated, gin.H{"data": batch})
	}
}

// FindBatches lists batches, optionally filtered by status.
func FindBatches(c *gin.Context) {
	query := models.DB.Order("uploaded_at DESC")
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseBatchStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown batch status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	var batches []models.Batch
	if err := query.Find(&batches).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batches})
}

// FindBatch returns one batch with its schema preloaded.
func FindBatch(c *gin.Context) {
	var batch models.Batch
	if err := models.DB.Preload("KeypointSchema").First(&batch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batch})
}

// BatchProgress recomputes and returns the batch's derived counters.
func BatchProgress(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		batch, err := svc.RecomputeProgress(c.Param("id"))
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"batch":      batch,
			"percentage": batch.ProgressPercentage(),
		}})
	}
}

// ProcessBatch runs detection over every pending image of the batch.
func ProcessBatch(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		batchID := c.Param("id")
		// Detection can be slow; run it off the request goroutine and let
		// clients follow progress over the WebSocket stream.
		go func() {
			if err := svc.ProcessBatch(context.Background(), batchID); err != nil {
				log.Warn("Batch processing failed for ", batchID, ": ", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"batch_id": batchID, "status": "processing"}})
	}
}

// CancelBatch force-cancels a batch and its open work.
func CancelBatch(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		batch, err := svc.CancelBatch(c.Param("id"))
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": batch})
	}
}

// ArchiveBatch moves a completed batch to ARCHIVED.
func ArchiveBatch(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		batch, err := svc.ArchiveBatch(c.Param("id"))
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": batch})
	}
}
