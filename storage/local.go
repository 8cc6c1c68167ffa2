package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalArchive implements Archive on the local filesystem
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

// NewLocalArchive creates a new local archive rooted at basePath
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalArchive{
		basePath: basePath,
		now:      time.Now,
	}, nil
}

// Save stores a file locally
func (s *LocalArchive) Save(ctx context.Context, key, filename string, data io.Reader) (string, error) {
	archived := archivePath(key, filename, s.now())
	fullPath, err := s.resolve(archived)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return archived, nil
}

// Open retrieves a file from the local archive
func (s *LocalArchive) Open(ctx context.Context, archivePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(archivePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, archivePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a file from the local archive
func (s *LocalArchive) Delete(ctx context.Context, archivePath string) error {
	fullPath, err := s.resolve(archivePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve keeps archive paths inside basePath
func (s *LocalArchive) resolve(archivePath string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(archivePath))
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive path: %s", archivePath)
	}
	return fullPath, nil
}
