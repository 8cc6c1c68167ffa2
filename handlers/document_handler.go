package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/logger"
	"legaldoc-backend/storage"
)

// DocumentHandler handles HTTP requests for document analysis
type DocumentHandler struct {
	extractor TextExtractor
	workflow  AnalysisRunner
	archive   storage.Archive
	log       logger.ILogger
	maxBytes  int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(extractor TextExtractor, workflow AnalysisRunner, archive storage.Archive, log logger.ILogger, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{
		extractor: extractor,
		workflow:  workflow,
		archive:   archive,
		log:       log,
		maxBytes:  maxBytes,
	}
}

// AnalyzeDocument handles POST /analyze-document
func (h *DocumentHandler) AnalyzeDocument(c *gin.Context) {
	ctx := c.Request.Context()

	u, err := readUpload(c, "file", true, h.maxBytes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	text, err := h.extractor.Extract(ctx, u.data, u.filename)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	archiveUpload(c, h.archive, h.log, u)

	result, err := h.workflow.Run(ctx, text)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
