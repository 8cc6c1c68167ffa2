package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/models"
)

const leaseAnalysis = `{
  "document_type": "lease",
  "summary": "A twelve month residential lease for 12 Elm Street.",
  "clauses": [
    {
      "title": "Rent",
      "original_text": "Tenant shall pay monthly rent of $1,500",
      "plain_explanation": "You pay $1,500 every month.",
      "risk_level": "low",
      "key_points": ["$1,500 monthly", "due on the 1st", "$1,500 monthly"],
      "concerns": ""
    },
    {
      "title": "Late fee",
      "original_text": "A late fee of $75 applies",
      "explanation": "Paying after the 5th costs $75.",
      "risk_level": "Moderate",
      "key_points": ["$75 fee"],
      "concerns": "Fee applies after only five days."
    }
  ]
}`

func TestDocumentAnalyzer_Analyze(t *testing.T) {
	gen := newScriptedGenerator().on("analyze", leaseAnalysis)
	a := NewDocumentAnalyzer(AnalyzerWithGenerator(gen))

	res, err := a.Analyze(context.Background(), leaseText)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionAccept, res.Decision)
	assert.Equal(t, models.DocumentTypeLease, res.DocumentType)
	assert.Equal(t, "A twelve month residential lease for 12 Elm Street.", res.Summary)
	require.Len(t, res.Clauses, 2)
	assert.Equal(t, models.RiskLow, res.Clauses[0].RiskLevel)
	assert.Equal(t, []string{"$1,500 monthly", "due on the 1st"}, res.Clauses[0].KeyPoints)
	assert.Equal(t, models.RiskMedium, res.Clauses[1].RiskLevel)
	assert.Equal(t, "Paying after the 5th costs $75.", res.Clauses[1].PlainExplanation)
	assert.Empty(t, res.Reason)
}

func TestDocumentAnalyzer_AcceptsImportantClausesKey(t *testing.T) {
	reply := `{"document_type": "Mystery Pact", "summary": "s",
		"important_clauses": [{"title": "T", "risk_level": "High", "key_points": []}]}`
	gen := newScriptedGenerator().on("analyze", reply)
	a := NewDocumentAnalyzer(AnalyzerWithGenerator(gen))

	res, err := a.Analyze(context.Background(), leaseText)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeOther, res.DocumentType)
	require.Len(t, res.Clauses, 1)
	assert.Equal(t, models.RiskHigh, res.Clauses[0].RiskLevel)
}

func TestDocumentAnalyzer_TruncatesInput(t *testing.T) {
	gen := newScriptedGenerator().on("analyze", leaseAnalysis)
	a := NewDocumentAnalyzer(AnalyzerWithGenerator(gen), AnalyzerWithMaxInput(50))

	_, err := a.Analyze(context.Background(), leaseText)
	require.NoError(t, err)

	calls := gen.calls("analyze")
	require.Len(t, calls, 1)
	assert.True(t, strings.HasSuffix(calls[0].Prompt, truncationMarker))
	assert.NotContains(t, calls[0].Prompt, "Security Deposit")
}

func TestDocumentAnalyzer_BoundsSummaryAndClauses(t *testing.T) {
	var clauses []string
	for i := 0; i < 15; i++ {
		clauses = append(clauses, `{"title": "C", "risk_level": "Low", "key_points": []}`)
	}
	reply := `{"document_type": "NDA", "summary": "` + strings.Repeat("word ", 1000) +
		`", "clauses": [` + strings.Join(clauses, ",") + `]}`
	gen := newScriptedGenerator().on("analyze", reply)
	a := NewDocumentAnalyzer(AnalyzerWithGenerator(gen))

	res, err := a.Analyze(context.Background(), leaseText)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeNDA, res.DocumentType)
	assert.LessOrEqual(t, utf8.RuneCountInString(res.Summary), defaultSummaryLength)
	assert.True(t, strings.HasSuffix(res.Summary, "..."))
	assert.Len(t, res.Clauses, maxClauses)
}

func TestDocumentAnalyzer_ParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "Here is my analysis of the lease."},
		{"missing summary", `{"document_type": "NDA", "clauses": [{"title": "T", "risk_level": "Low"}]}`},
		{"no clauses", `{"document_type": "NDA", "summary": "s", "clauses": []}`},
		{"invalid risk", `{"document_type": "NDA", "summary": "s", "clauses": [{"title": "T", "risk_level": "Severe"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newScriptedGenerator().on("analyze", tt.reply)
			a := NewDocumentAnalyzer(AnalyzerWithGenerator(gen))

			_, err := a.Analyze(context.Background(), leaseText)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAnalysisFailure)
			assert.ErrorIs(t, err, ErrParse)
			assert.Len(t, gen.calls("analyze"), 2)
		})
	}
}

func TestDocumentAnalyzer_RecoversOnRetry(t *testing.T) {
	gen := newScriptedGenerator().on("analyze", "not json at all", leaseAnalysis)
	a := NewDocumentAnalyzer(AnalyzerWithGenerator(gen))

	res, err := a.Analyze(context.Background(), leaseText)
	require.NoError(t, err)
	assert.True(t, res.Accepted())

	calls := gen.calls("analyze")
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].System, strictJSONInstruction)
}
