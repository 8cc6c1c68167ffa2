package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotFound = errors.New("archived file not found")

// Archive keeps the original bytes of uploaded documents
type Archive interface {
	// Save stores data under key and returns the archive path
	Save(ctx context.Context, key, filename string, data io.Reader) (string, error)

	// Open retrieves a file by archive path
	Open(ctx context.Context, archivePath string) (io.ReadCloser, error)

	// Delete removes a file by archive path
	Delete(ctx context.Context, archivePath string) error
}

// Type represents the archive backend type
type Type string

const (
	TypeNone  Type = "none"
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config holds configuration for the archive
type Config struct {
	Type         Type
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// New creates an archive for cfg. An empty type means no archiving.
func New(ctx context.Context, cfg Config) (Archive, error) {
	switch cfg.Type {
	case TypeNone, "":
		return Noop{}, nil
	case TypeLocal:
		return NewLocalArchive(cfg.LocalPath)
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3 bucket is required for S3 storage")
		}
		return NewS3Archive(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Noop discards everything
type Noop struct{}

func (Noop) Save(ctx context.Context, key, filename string, data io.Reader) (string, error) {
	return "", nil
}

func (Noop) Open(ctx context.Context, archivePath string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}

func (Noop) Delete(ctx context.Context, archivePath string) error { return nil }

// archivePath builds "YYYY/MM/DD/<key>/<name>" with a sanitized file name
func archivePath(key, filename string, at time.Time) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}

	key = strings.Trim(strings.ReplaceAll(key, "/", "_"), ".")
	if key == "" {
		key = "unkeyed"
	}
	return path.Join(at.UTC().Format("2006/01/02"), key, name+strings.ToLower(ext))
}

// ContentType determines content type from filename
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
