package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/logger"
	"legaldoc-backend/service"
	"legaldoc-backend/storage"
)

// placeholderSessionID is what API explorers send for an unset string field
const placeholderSessionID = "string"

// ChatHandler handles HTTP requests for document chat
type ChatHandler struct {
	extractor TextExtractor
	workflow  ChatRunner
	sessions  SessionStore
	archive   storage.Archive
	log       logger.ILogger
	maxBytes  int64
}

// NewChatHandler creates a new chat handler
func NewChatHandler(extractor TextExtractor, workflow ChatRunner, sessions SessionStore, archive storage.Archive, log logger.ILogger, maxBytes int64) *ChatHandler {
	return &ChatHandler{
		extractor: extractor,
		workflow:  workflow,
		sessions:  sessions,
		archive:   archive,
		log:       log,
		maxBytes:  maxBytes,
	}
}

// Chat handles POST /chat. The form carries an optional message, an
// optional session_id and an optional document file.
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	u, err := readUpload(c, "file", false, h.maxBytes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	sessionID := strings.TrimSpace(c.PostForm("session_id"))
	if sessionID == placeholderSessionID {
		sessionID = ""
	}
	req := service.ChatTurnRequest{
		SessionID: sessionID,
		Message:   c.PostForm("message"),
	}

	if u != nil {
		text, err := h.extractor.Extract(ctx, u.data, u.filename)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		req.Document = &text
		req.DocumentArchive = archiveUpload(c, h.archive, h.log, u)
	}

	result, err := h.workflow.Run(ctx, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetSession handles GET /chat/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	s, release, err := h.sessions.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	snapshot := s.Snapshot()
	release()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
	})
}

// GetSessionDocument handles GET /chat/sessions/:id/document and streams
// the archived original of the session's current document
func (h *ChatHandler) GetSessionDocument(c *gin.Context) {
	ctx := c.Request.Context()
	s, release, err := h.sessions.Lookup(ctx, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	archivePath := s.DocumentArchive()
	release()

	if archivePath == "" || h.archive == nil {
		respondError(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "No archived document for this session")
		return
	}

	rc, err := h.archive.Open(ctx, archivePath)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "No archived document for this session")
		return
	}
	if err != nil {
		h.log.Error("http", "failed to open archived document", logger.Details(ctx, map[string]interface{}{
			"path":  archivePath,
			"error": err,
		}))
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read archived document")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, storage.ContentType(archivePath), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, path.Base(archivePath)),
	})
}

// DeleteSession handles DELETE /chat/sessions/:id. Archived originals of
// the session's documents are removed with it.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	s, err := h.sessions.Evict(ctx, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	removed := 0
	if h.archive != nil {
		for _, archivePath := range s.Archives() {
			if err := h.archive.Delete(ctx, archivePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
				h.log.Warn("http", "failed to delete archived document", logger.Details(ctx, map[string]interface{}{
					"path":  archivePath,
					"error": err,
				}))
				continue
			}
			removed++
		}
	}

	h.log.Info("http", "session evicted", logger.Details(ctx, map[string]interface{}{
		"session_id":       id,
		"archives_deleted": removed,
	}))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"session_id": id,
			"deleted":    true,
		},
	})
}
