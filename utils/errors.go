package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithAppError maps a typed core error to an HTTP response. Untyped
// errors become opaque 500s so no raw trace leaks to the caller.
func RespondWithAppError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		RespondWithInternalError(c, "internal error", nil)
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case KindInvalidConfiguration, KindUnknownPromptType:
		status = http.StatusBadRequest
	case KindEmbeddingUnavailable, KindGenerationFailed, KindIndexUnavailable:
		status = http.StatusServiceUnavailable
	case KindDimensionMismatch, KindMissingEmbedding:
		status = http.StatusUnprocessableEntity
	}

	RespondWithError(c, status, string(appErr.Kind), appErr.Message, nil)
}
