package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amitpo23/medici-web03012026-sub001/internal/worker"
)

// APIError is the wire shape of every handler failure.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

func newValidationError(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: message}
}

// AbortWithError maps domain errors to HTTP responses. Unrecognized errors
// become an opaque 500; their detail stays in the logs.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, apiErr)
		return
	}

	if errors.Is(err, worker.ErrWorkerNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, &APIError{
			Code:    "worker_not_found",
			Message: err.Error(),
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, &APIError{
		Code:    "internal_error",
		Message: "internal error",
	})
}
