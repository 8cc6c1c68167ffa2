package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"legaldoc-backend/llm"
	"legaldoc-backend/logger"
	"legaldoc-backend/models"
)

const (
	defaultMinDocumentLength = 100
	defaultValidatorSample   = 1500
	defaultValidatorTemp     = 0.1
)

// ContentValidator decides whether a text is a legal document
type ContentValidator struct {
	generator   llm.Generator
	log         logger.ILogger
	minLength   int
	sampleSize  int
	temperature float32
}

// ValidatorOption is a functional option for ContentValidator
type ValidatorOption func(*ContentValidator)

// ValidatorWithGenerator sets the language model
func ValidatorWithGenerator(g llm.Generator) ValidatorOption {
	return func(v *ContentValidator) {
		v.generator = g
	}
}

// ValidatorWithLogger sets the logger
func ValidatorWithLogger(l logger.ILogger) ValidatorOption {
	return func(v *ContentValidator) {
		v.log = l
	}
}

// ValidatorWithMinLength rejects texts shorter than n runes without a model call
func ValidatorWithMinLength(n int) ValidatorOption {
	return func(v *ContentValidator) {
		v.minLength = n
	}
}

// ValidatorWithSampleSize sets how many leading runes the model sees
func ValidatorWithSampleSize(n int) ValidatorOption {
	return func(v *ContentValidator) {
		if n > 0 {
			v.sampleSize = n
		}
	}
}

// ValidatorWithTemperature sets the sampling temperature
func ValidatorWithTemperature(t float32) ValidatorOption {
	return func(v *ContentValidator) {
		v.temperature = t
	}
}

// NewContentValidator creates a new content validator
func NewContentValidator(opts ...ValidatorOption) *ContentValidator {
	v := &ContentValidator{
		log:         logger.NewNop(),
		minLength:   defaultMinDocumentLength,
		sampleSize:  defaultValidatorSample,
		temperature: defaultValidatorTemp,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type validatorVerdict struct {
	IsLegal *bool  `json:"is_legal"`
	Reason  string `json:"reason"`
}

// Validate returns the verdict for text. Errors are reserved for failures
// of the model call or its output; a non-legal text is a normal result.
func (v *ContentValidator) Validate(ctx context.Context, text string) (*models.ValidationResult, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < v.minLength {
		v.log.Info("validator", "document too short, rejecting", logger.Details(ctx, map[string]interface{}{
			"length": utf8.RuneCountInString(trimmed),
		}))
		return &models.ValidationResult{IsLegal: false, Reason: tooShortReason}, nil
	}
	if v.generator == nil {
		return nil, errors.New("generator not set")
	}

	sample, _ := truncateRunes(trimmed, v.sampleSize)
	req := llm.GenerateRequest{
		Task:        "validate",
		System:      validatorSystemPrompt,
		Prompt:      validatorPrompt(sample),
		JSON:        true,
		Temperature: v.temperature,
	}

	verdict, err := v.ask(ctx, req)
	if errors.Is(err, ErrParse) {
		v.log.Warn("validator", "unparseable verdict, retrying with strict instruction", logger.Details(ctx, map[string]interface{}{
			"error": err,
		}))
		req.System = validatorSystemPrompt + "\n\n" + strictJSONInstruction
		verdict, err = v.ask(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	result := &models.ValidationResult{IsLegal: *verdict.IsLegal}
	if !result.IsLegal {
		result.Reason = strings.TrimSpace(verdict.Reason)
		if result.Reason == "" {
			result.Reason = DefaultRejectionReason
		}
	}

	v.log.Info("validator", "validation complete", logger.Details(ctx, map[string]interface{}{
		"is_legal": result.IsLegal,
	}))
	return result, nil
}

func (v *ContentValidator) ask(ctx context.Context, req llm.GenerateRequest) (*validatorVerdict, error) {
	raw, err := v.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to validate document: %w", err)
	}
	var verdict validatorVerdict
	if err := decodeModelJSON(raw, &verdict); err != nil {
		return nil, err
	}
	if verdict.IsLegal == nil {
		return nil, fmt.Errorf("%w: missing is_legal", ErrParse)
	}
	return &verdict, nil
}
