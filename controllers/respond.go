package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"posescope/workflow"
)

// abortWorkflowError maps workflow error kinds to HTTP statuses.
func abortWorkflowError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrImageNotAssignable),
		errors.Is(err, workflow.ErrDuplicateSubmission),
		errors.Is(err, workflow.ErrAlreadyVerified),
		errors.Is(err, workflow.ErrSameVerifierConflict),
		errors.Is(err, workflow.ErrCapacityExceeded):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrConstraintViolation):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
