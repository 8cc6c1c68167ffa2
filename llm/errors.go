package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

var (
	ErrEmptyResponse = errors.New("model returned empty content")
	ErrBlocked       = errors.New("model blocked the prompt")
)

// RetryableError marks a transient failure such as a rate limit, a timeout
// or a 5xx from the model service. RetryAfter is a server hint and may be zero.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// Fatal wraps err as a FatalError
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// IsRetryable reports whether err or anything it wraps is a RetryableError
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsRateLimited reports whether err came from an HTTP 429 / ResourceExhausted
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// StatusError carries the HTTP status returned by a model or embedding service
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %d", e.Code)
	}
	return fmt.Sprintf("API error: %d - %s", e.Code, e.Message)
}

// ClassifyStatus turns an HTTP status into a retryable or fatal error.
// 429 and 5xx are retried; everything else (400, 401, 403, 404...) is not.
func ClassifyStatus(code int, message string) error {
	se := &StatusError{Code: code, Message: message}
	if code == http.StatusTooManyRequests || code >= 500 {
		return Retryable(se)
	}
	return Fatal(se)
}

// Classify inspects an error returned by a client library and tags it as
// retryable or fatal. Context cancellation is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var re *RetryableError
	var fe *FatalError
	if errors.As(err, &re) || errors.As(err, &fe) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return ClassifyStatus(gerr.Code, gerr.Message)
	}

	var aerr *apierror.APIError
	if errors.As(err, &aerr) {
		if code := aerr.HTTPCode(); code > 0 {
			return ClassifyStatus(code, aerr.Error())
		}
		switch aerr.GRPCStatus().Code() {
		case codes.ResourceExhausted:
			return Retryable(&StatusError{Code: http.StatusTooManyRequests, Message: aerr.Error()})
		case codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
			return Retryable(&StatusError{Code: http.StatusServiceUnavailable, Message: aerr.Error()})
		default:
			return Fatal(err)
		}
	}

	// Network and transport failures may clear up on their own
	var nerr net.Error
	if errors.As(err, &nerr) {
		return Retryable(err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return Retryable(err)
	}

	return Fatal(err)
}
