package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/extract"
	"legaldoc-backend/logger"
	"legaldoc-backend/service"
	"legaldoc-backend/storage"
)

var errMissingFile = fmt.Errorf("%w: file is required", service.ErrBadRequest)

type upload struct {
	filename string
	data     []byte
}

// readUpload reads the multipart file field. A missing optional file
// returns nil without error.
func readUpload(c *gin.Context, field string, required bool, maxBytes int64) (*upload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, fmt.Errorf("%w: request body exceeds %dMB", extract.ErrFileTooLarge, maxBytes>>20)
		case errors.Is(err, http.ErrMissingFile) && !required:
			return nil, nil
		case errors.Is(err, http.ErrMissingFile):
			return nil, errMissingFile
		}
		return nil, fmt.Errorf("%w: invalid multipart form: %v", service.ErrBadRequest, err)
	}

	if header.Filename == "" {
		return nil, extract.ErrMissingFilename
	}
	if header.Size > maxBytes {
		return nil, fmt.Errorf("%w: %.1fMB exceeds %dMB", extract.ErrFileTooLarge,
			float64(header.Size)/(1<<20), maxBytes>>20)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, extract.ErrFileTooLarge
	}
	return &upload{filename: header.Filename, data: data}, nil
}

// archiveUpload keeps the original bytes under the correlation id and
// returns the archive path. Failures are logged and never fail the request.
func archiveUpload(c *gin.Context, archive storage.Archive, log logger.ILogger, u *upload) string {
	if archive == nil {
		return ""
	}
	ctx := c.Request.Context()
	path, err := archive.Save(ctx, logger.CorrelationID(ctx), u.filename, bytes.NewReader(u.data))
	if err != nil {
		log.Warn("http", "failed to archive upload", logger.Details(ctx, map[string]interface{}{
			"filename": u.filename,
			"error":    err,
		}))
		return ""
	}
	if path != "" {
		log.Debug("http", "upload archived", logger.Details(ctx, map[string]interface{}{
			"path": path,
		}))
	}
	return path
}
