package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/extract"
	"legaldoc-backend/logger"
	"legaldoc-backend/service"
	"legaldoc-backend/session"
)

// respondError writes the standard error envelope
func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":           code,
			"message":        message,
			"correlation_id": logger.CorrelationID(c.Request.Context()),
		},
	})
}

// respondServiceError maps a workflow or extraction error onto a status,
// an error code and a message that is safe to show
func respondServiceError(c *gin.Context, err error) {
	status, code, message := classify(err)
	respondError(c, status, code, message)
}

func classify(err error) (int, string, string) {
	var pf *service.ProcessingFailure
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, "BAD_REQUEST", err.Error()
	case errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest, "INVALID_SESSION_ID", err.Error()
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found"

	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Only PDF and DOCX files are supported"
	case errors.Is(err, extract.ErrFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error()
	case errors.Is(err, extract.ErrExtractionTimeout):
		return http.StatusGatewayTimeout, "EXTRACTION_TIMEOUT", "Document processing timed out. Please try with a smaller file."
	case errors.Is(err, extract.ErrMissingFilename):
		return http.StatusBadRequest, "MISSING_FILENAME", "File must have a name"
	case errors.Is(err, extract.ErrEmptyFile):
		return http.StatusBadRequest, "EMPTY_FILE", "File is empty"
	case errors.Is(err, extract.ErrEmptyDocument):
		return http.StatusBadRequest, "EMPTY_DOCUMENT", "No readable text found in the document"
	case errors.Is(err, extract.ErrCorruptDocument):
		return http.StatusBadRequest, "UNREADABLE_DOCUMENT", "Failed to extract text from the document"

	case errors.As(err, &pf):
		if errors.Is(pf, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, "PROCESSING_TIMEOUT", pf.Reason
		}
		return http.StatusInternalServerError, "PROCESSING_FAILED", pf.Reason
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "PROCESSING_TIMEOUT", "the request timed out"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
}
