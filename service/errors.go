package service

import (
	"context"
	"errors"
	"fmt"

	"legaldoc-backend/llm"
	"legaldoc-backend/logger"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrParse           = errors.New("failed to parse model output")
	ErrAnalysisFailure = errors.New("document analysis failed")

	errNoVerdict = errors.New("validator returned no verdict")
	errNoResult  = fmt.Errorf("%w: analyzer returned no result", ErrAnalysisFailure)
)

// Stage names the workflow step in which a failure happened
type Stage string

const (
	StageValidating Stage = "validating"
	StageAnalyzing  Stage = "analyzing"
	StageSession    Stage = "resolving_session"
	StageIngesting  Stage = "ingesting"
	StageResponding Stage = "responding"
)

// ProcessingFailure is returned when a workflow cannot produce a result.
// It is never used for a rejected document.
type ProcessingFailure struct {
	Stage         Stage
	Reason        string // safe to show to the caller
	CorrelationID string
	Err           error
}

func (e *ProcessingFailure) Error() string {
	return fmt.Sprintf("%s failed: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *ProcessingFailure) Unwrap() error { return e.Err }

func newFailure(ctx context.Context, stage Stage, err error) *ProcessingFailure {
	return &ProcessingFailure{
		Stage:         stage,
		Reason:        failureReason(err),
		CorrelationID: logger.CorrelationID(ctx),
		Err:           err,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	case llm.IsRateLimited(err):
		return "the language model is rate limiting requests, please retry shortly"
	case errors.Is(err, ErrParse), errors.Is(err, ErrAnalysisFailure):
		return "the language model returned output that could not be understood"
	case llm.IsRetryable(err):
		return "the language model service is temporarily unavailable"
	default:
		return "the language model service returned an error"
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}
