package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"legaldoc-backend/llm"
	"legaldoc-backend/logger"
	"legaldoc-backend/models"
)

const (
	defaultAnalyzerInput = 8000
	defaultSummaryLength = 1500
	defaultAnalyzerTemp  = 0.1
	maxClauses           = 10
	truncationMarker     = "\n\n[Document truncated for analysis]"
)

// DocumentAnalyzer extracts type, summary and clause findings from a
// validated legal document
type DocumentAnalyzer struct {
	generator   llm.Generator
	log         logger.ILogger
	maxInput    int
	maxSummary  int
	temperature float32
}

// AnalyzerOption is a functional option for DocumentAnalyzer
type AnalyzerOption func(*DocumentAnalyzer)

// AnalyzerWithGenerator sets the language model
func AnalyzerWithGenerator(g llm.Generator) AnalyzerOption {
	return func(a *DocumentAnalyzer) {
		a.generator = g
	}
}

// AnalyzerWithLogger sets the logger
func AnalyzerWithLogger(l logger.ILogger) AnalyzerOption {
	return func(a *DocumentAnalyzer) {
		a.log = l
	}
}

// AnalyzerWithMaxInput sets how many runes of the document are sent
func AnalyzerWithMaxInput(n int) AnalyzerOption {
	return func(a *DocumentAnalyzer) {
		if n > 0 {
			a.maxInput = n
		}
	}
}

// AnalyzerWithTemperature sets the sampling temperature
func AnalyzerWithTemperature(t float32) AnalyzerOption {
	return func(a *DocumentAnalyzer) {
		a.temperature = t
	}
}

// NewDocumentAnalyzer creates a new document analyzer
func NewDocumentAnalyzer(opts ...AnalyzerOption) *DocumentAnalyzer {
	a := &DocumentAnalyzer{
		log:         logger.NewNop(),
		maxInput:    defaultAnalyzerInput,
		maxSummary:  defaultSummaryLength,
		temperature: defaultAnalyzerTemp,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type analyzerOutput struct {
	DocumentType     string         `json:"document_type"`
	Summary          string         `json:"summary"`
	Clauses          []clauseOutput `json:"clauses"`
	ImportantClauses []clauseOutput `json:"important_clauses"`
}

type clauseOutput struct {
	Title            string   `json:"title"`
	OriginalText     string   `json:"original_text"`
	PlainExplanation string   `json:"plain_explanation"`
	Explanation      string   `json:"explanation"`
	RiskLevel        string   `json:"risk_level"`
	KeyPoints        []string `json:"key_points"`
	Concerns         string   `json:"concerns"`
}

// Analyze returns an accepted AnalysisResult. Output that cannot be parsed
// is retried once before ErrAnalysisFailure is returned.
func (a *DocumentAnalyzer) Analyze(ctx context.Context, text string) (*models.AnalysisResult, error) {
	if a.generator == nil {
		return nil, errors.New("generator not set")
	}

	input, truncated := truncateRunes(strings.TrimSpace(text), a.maxInput)
	if truncated {
		a.log.Info("analyzer", "document truncated for analysis", logger.Details(ctx, map[string]interface{}{
			"max_runes": a.maxInput,
		}))
		input += truncationMarker
	}

	req := llm.GenerateRequest{
		Task:        "analyze",
		System:      analyzerSystemPrompt(),
		Prompt:      analyzerPrompt(input),
		JSON:        true,
		Temperature: a.temperature,
	}

	result, err := a.ask(ctx, req)
	if errors.Is(err, ErrParse) {
		a.log.Warn("analyzer", "unparseable analysis, retrying with strict instruction", logger.Details(ctx, map[string]interface{}{
			"error": err,
		}))
		req.System = analyzerSystemPrompt() + "\n\n" + strictJSONInstruction
		result, err = a.ask(ctx, req)
		if errors.Is(err, ErrParse) {
			return nil, fmt.Errorf("%w: %w", ErrAnalysisFailure, err)
		}
	}
	if err != nil {
		return nil, err
	}

	a.log.Info("analyzer", "analysis complete", logger.Details(ctx, map[string]interface{}{
		"document_type": result.DocumentType,
		"clauses":       len(result.Clauses),
	}))
	return result, nil
}

func (a *DocumentAnalyzer) ask(ctx context.Context, req llm.GenerateRequest) (*models.AnalysisResult, error) {
	raw, err := a.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze document: %w", err)
	}

	var out analyzerOutput
	if err := decodeModelJSON(raw, &out); err != nil {
		return nil, err
	}
	return a.toResult(out)
}

func (a *DocumentAnalyzer) toResult(out analyzerOutput) (*models.AnalysisResult, error) {
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrParse)
	}

	raw := out.Clauses
	if len(raw) == 0 {
		raw = out.ImportantClauses
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no clauses", ErrParse)
	}
	if len(raw) > maxClauses {
		raw = raw[:maxClauses]
	}

	clauses := make([]models.ClauseFinding, 0, len(raw))
	for i, c := range raw {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: clause %d has no title", ErrParse, i+1)
		}
		risk, ok := models.ParseRiskLevel(c.RiskLevel)
		if !ok {
			return nil, fmt.Errorf("%w: clause %d has invalid risk level %q", ErrParse, i+1, c.RiskLevel)
		}
		explanation := strings.TrimSpace(c.PlainExplanation)
		if explanation == "" {
			explanation = strings.TrimSpace(c.Explanation)
		}
		clauses = append(clauses, models.ClauseFinding{
			Title:            title,
			OriginalText:     strings.TrimSpace(c.OriginalText),
			PlainExplanation: explanation,
			RiskLevel:        risk,
			KeyPoints:        c.KeyPoints,
			Concerns:         strings.TrimSpace(c.Concerns),
		})
	}

	return models.NewAcceptedResult(
		models.NormalizeDocumentType(out.DocumentType),
		boundText(summary, a.maxSummary),
		clauses,
	)
}
