package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"posescope/middlewares"
	"posescope/models"
	"posescope/workflow"
)

type CreateAssignmentInput struct {
	BatchID      string     `json:"batch_id" binding:"required"`
	ImageIDs     []string   `json:"image_ids" binding:"required"`
	AnnotatorID  string     `json:"annotator_id" binding:"required"`
	Type         string     `json:"type"`
	Priority     int        `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	Instructions string     `json:"instructions"`
}

// CreateAssignment schedules a group of images onto an annotator.
func CreateAssignment(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateAssignmentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		assignmentType := models.AssignmentInitial
		if input.Type != "" {
			parsed, ok := models.ParseAssignmentType(input.Type)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown assignment type"})
				return
			}
			assignmentType = parsed
		}

		assignment, err := svc.Assign(workflow.AssignInput{
			BatchID:      input.BatchID,
			ImageIDs:     input.ImageIDs,
			AnnotatorID:  input.AnnotatorID,
			AssignedByID: middlewares.CurrentUser(c).ID,
			Type:         assignmentType,
			Priority:     input.Priority,
			DueDate:      input.DueDate,
			Instructions: input.Instructions,
		})
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": assignment})
	}
}

// FindAssignments lists the caller's assignments, flagging overdue ones.
func FindAssignments(c *gin.Context) {
	user := middlewares.CurrentUser(c)
	var assignments []models.Assignment
	if err := models.DB.Where("annotator_id = ?", user.ID).Order("assigned_at DESC").Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	type assignmentView struct {
		models.Assignment
		Overdue bool `json:"overdue"`
	}
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{Assignment: a, Overdue: a.IsOverdue(now)})
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// AcknowledgeAssignment marks the assignment as seen by its annotator.
func AcknowledgeAssignment(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		assignment, err := svc.Acknowledge(c.Param("id"), middlewares.CurrentUser(c).ID)
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": assignment})
	}
}

// StartAssignment moves an acknowledged assignment into active work.
func StartAssignment(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		assignment, err := svc.StartAssignment(c.Param("id"), middlewares.CurrentUser(c).ID)
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": assignment})
	}
}

// OverdueAssignments lists open assignments past their due date.
func OverdueAssignments(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		assignments, err := svc.OverdueAssignments(time.Now().UTC())
		if err != nil {
			abortWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": assignments})
	}
}
