package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"legaldoc-backend/logger"
)

const (
	DefaultMaxBytes    = 10 << 20
	DefaultPDFTimeout  = 30 * time.Second
	DefaultDOCXTimeout = 20 * time.Second
)

var (
	ErrUnsupportedFormat = errors.New("only PDF and DOCX files are supported")
	ErrExtractionTimeout = errors.New("document extraction timed out")
	ErrEmptyDocument     = errors.New("no readable text found in document")
	ErrEmptyFile         = errors.New("file is empty")
	ErrFileTooLarge      = errors.New("file exceeds the maximum allowed size")
	ErrMissingFilename   = errors.New("file must have a name")
	ErrCorruptDocument   = errors.New("failed to read document")
)

// Format is a supported upload format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "txt"
)

// DetectFormat picks the format from the file extension
func DetectFormat(filename string) (Format, error) {
	if strings.TrimSpace(filename) == "" {
		return "", ErrMissingFilename
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(filename))
}

// Extractor turns uploaded bytes into plain text
type Extractor struct {
	maxBytes    int64
	pdfTimeout  time.Duration
	docxTimeout time.Duration
	log         logger.ILogger
}

// Option is a functional option for Extractor
type Option func(*Extractor)

// WithMaxBytes sets the upload size limit
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithTimeouts sets per-format extraction deadlines
func WithTimeouts(pdf, docx time.Duration) Option {
	return func(e *Extractor) {
		if pdf > 0 {
			e.pdfTimeout = pdf
		}
		if docx > 0 {
			e.docxTimeout = docx
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.ILogger) Option {
	return func(e *Extractor) {
		e.log = l
	}
}

// New creates a new extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		maxBytes:    DefaultMaxBytes,
		pdfTimeout:  DefaultPDFTimeout,
		docxTimeout: DefaultDOCXTimeout,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxBytes returns the upload size limit
func (e *Extractor) MaxBytes() int64 { return e.maxBytes }

// Extract returns the trimmed text of data. The format comes from filename.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > e.maxBytes {
		return "", fmt.Errorf("%w: %.1fMB exceeds %dMB", ErrFileTooLarge,
			float64(len(data))/(1<<20), e.maxBytes>>20)
	}

	details := logger.Details(ctx, map[string]interface{}{
		"filename": filepath.Base(filename),
		"format":   string(format),
		"bytes":    len(data),
	})
	e.log.Info("extract", "processing file", details)

	var text string
	switch format {
	case FormatPDF:
		text, err = runWithTimeout(ctx, e.pdfTimeout, func() (string, error) { return extractPDF(data) })
	case FormatDOCX:
		text, err = runWithTimeout(ctx, e.docxTimeout, func() (string, error) { return extractDOCX(data) })
	case FormatText:
		text, err = extractPlain(data)
	}
	if err != nil {
		e.log.Error("extract", "text extraction failed", logger.Details(ctx, map[string]interface{}{
			"format": string(format),
			"error":  err,
		}))
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}

	e.log.Info("extract", "text extracted", logger.Details(ctx, map[string]interface{}{
		"format":     string(format),
		"characters": utf8.RuneCountInString(text),
	}))
	return text, nil
}

// ExtractFile reads path and extracts it
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > e.maxBytes {
		return "", ErrFileTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return e.Extract(ctx, data, path)
}

type extraction struct {
	text string
	err  error
}

// runWithTimeout runs fn on its own goroutine. The parsers cannot be
// interrupted, so on timeout the goroutine finishes in the background.
func runWithTimeout(ctx context.Context, timeout time.Duration, fn func() (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan extraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: fmt.Errorf("%w: %v", ErrCorruptDocument, r)}
			}
		}()
		text, err := fn()
		done <- extraction{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrExtractionTimeout, timeout)
		}
		return "", ctx.Err()
	}
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", ErrCorruptDocument)
	}
	return string(data), nil
}
