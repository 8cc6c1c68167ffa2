package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"legaldoc-backend/logger"
	"legaldoc-backend/models"
	"legaldoc-backend/tracer"
)

// Validator decides whether a text is a legal document
type Validator interface {
	Validate(ctx context.Context, text string) (*models.ValidationResult, error)
}

// Analyzer produces the analysis of a validated legal document
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.AnalysisResult, error)
}

type analysisState int

const (
	analysisStart analysisState = iota
	analysisValidating
	analysisAnalyzing
	analysisRejected
	analysisResponding
	analysisFailed
)

func (s analysisState) String() string {
	switch s {
	case analysisStart:
		return "start"
	case analysisValidating:
		return "validating"
	case analysisAnalyzing:
		return "analyzing"
	case analysisRejected:
		return "rejected"
	case analysisResponding:
		return "responding"
	case analysisFailed:
		return "failed"
	}
	return fmt.Sprintf("analysisState(%d)", int(s))
}

// AnalysisWorkflow validates a document and, when it is legal, analyzes it.
// It holds no per-request state and is safe for concurrent use.
type AnalysisWorkflow struct {
	validator Validator
	analyzer  Analyzer
	log       logger.ILogger
}

// NewAnalysisWorkflow creates a new analysis workflow
func NewAnalysisWorkflow(validator Validator, analyzer Analyzer, log logger.ILogger) *AnalysisWorkflow {
	if log == nil {
		log = logger.NewNop()
	}
	return &AnalysisWorkflow{
		validator: validator,
		analyzer:  analyzer,
		log:       log,
	}
}

// analysisRun carries one execution through the state machine
type analysisRun struct {
	text       string
	validation *models.ValidationResult
	result     *models.AnalysisResult
	err        error
}

// Run executes the workflow. A rejected document is a normal result with
// DecisionReject; errors are *ProcessingFailure.
func (w *AnalysisWorkflow) Run(ctx context.Context, text string) (*models.AnalysisResult, error) {
	ctx, span := tracer.Tracer().Start(ctx, "AnalysisWorkflow.Run")
	defer span.End()

	run := &analysisRun{text: text}
	state := analysisStart

	for {
		switch state {
		case analysisStart:
			w.log.Info("analysis", "analysis started", logger.Details(ctx, map[string]interface{}{
				"length": len(text),
			}))
			state = analysisValidating

		case analysisValidating:
			state = w.validate(ctx, run)

		case analysisAnalyzing:
			state = w.analyze(ctx, run)

		case analysisRejected:
			reason := run.validation.Reason
			if reason == "" {
				reason = DefaultRejectionReason
			}
			result, err := models.NewRejectedResult(reason)
			if err != nil {
				run.err = newFailure(ctx, StageValidating, err)
				state = analysisFailed
				continue
			}
			run.result = result
			span.SetAttributes(attribute.String("analysis.decision", string(models.DecisionReject)))
			w.log.Info("analysis", "document rejected", logger.Details(ctx, map[string]interface{}{
				"reason": reason,
			}))
			return run.result, nil

		case analysisResponding:
			span.SetAttributes(
				attribute.String("analysis.decision", string(models.DecisionAccept)),
				attribute.String("analysis.document_type", string(run.result.DocumentType)),
			)
			return run.result, nil

		case analysisFailed:
			span.RecordError(run.err)
			span.SetStatus(codes.Error, run.err.Error())
			w.log.Error("analysis", "analysis failed", logger.Details(ctx, map[string]interface{}{
				"error": run.err,
			}))
			return nil, run.err

		default:
			return nil, fmt.Errorf("unknown analysis state %s", state)
		}
	}
}

func (w *AnalysisWorkflow) validate(ctx context.Context, run *analysisRun) analysisState {
	ctx, span := startStep(ctx, analysisValidating)
	defer span.End()

	v, err := w.validator.Validate(ctx, run.text)
	if err == nil && v == nil {
		err = errNoVerdict
	}
	if err != nil {
		run.err = newFailure(ctx, StageValidating, err)
		return analysisFailed
	}
	run.validation = v
	span.SetAttributes(attribute.Bool("validation.is_legal", v.IsLegal))
	if !v.IsLegal {
		return analysisRejected
	}
	return analysisAnalyzing
}

func (w *AnalysisWorkflow) analyze(ctx context.Context, run *analysisRun) analysisState {
	ctx, span := startStep(ctx, analysisAnalyzing)
	defer span.End()

	result, err := w.analyzer.Analyze(ctx, run.text)
	if err == nil && result == nil {
		err = errNoResult
	}
	if err != nil {
		run.err = newFailure(ctx, StageAnalyzing, err)
		return analysisFailed
	}
	run.result = result
	return analysisResponding
}

func startStep(ctx context.Context, state fmt.Stringer) (context.Context, trace.Span) {
	return tracer.Tracer().Start(ctx, "workflow."+state.String())
}
