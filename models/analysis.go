package models

import (
	"errors"
	"strings"
)

// Decision is the outcome of the analysis workflow
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// RiskLevel grades how much a clause deserves the reader's attention
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel maps loose model output onto a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, true
	case "medium", "moderate":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	}
	return "", false
}

// DocumentType is the classification assigned to an accepted document
type DocumentType string

const (
	DocumentTypeLease           DocumentType = "Lease Agreement"
	DocumentTypeEmployment      DocumentType = "Employment Contract"
	DocumentTypeNDA             DocumentType = "Non-Disclosure Agreement"
	DocumentTypeTermsOfService  DocumentType = "Terms of Service"
	DocumentTypePrivacyPolicy   DocumentType = "Privacy Policy"
	DocumentTypeLoan            DocumentType = "Loan Agreement"
	DocumentTypeInsurance       DocumentType = "Insurance Policy"
	DocumentTypeService         DocumentType = "Service Agreement"
	DocumentTypePurchase        DocumentType = "Purchase Agreement"
	DocumentTypeLicense         DocumentType = "License Agreement"
	DocumentTypePartnership     DocumentType = "Partnership Agreement"
	DocumentTypeWill            DocumentType = "Will or Testament"
	DocumentTypePowerOfAttorney DocumentType = "Power of Attorney"
	DocumentTypeCourtFiling     DocumentType = "Court Filing"
	DocumentTypeOther           DocumentType = "Other"
)

// KnownDocumentTypes lists every classification except Other, in prompt order
var KnownDocumentTypes = []DocumentType{
	DocumentTypeLease,
	DocumentTypeEmployment,
	DocumentTypeNDA,
	DocumentTypeTermsOfService,
	DocumentTypePrivacyPolicy,
	DocumentTypeLoan,
	DocumentTypeInsurance,
	DocumentTypeService,
	DocumentTypePurchase,
	DocumentTypeLicense,
	DocumentTypePartnership,
	DocumentTypeWill,
	DocumentTypePowerOfAttorney,
	DocumentTypeCourtFiling,
}

// documentTypeAliases catches the common ways a model names a known type
var documentTypeAliases = map[string]DocumentType{
	"lease":                     DocumentTypeLease,
	"rental agreement":          DocumentTypeLease,
	"employment agreement":      DocumentTypeEmployment,
	"nda":                       DocumentTypeNDA,
	"confidentiality agreement": DocumentTypeNDA,
	"terms and conditions":      DocumentTypeTermsOfService,
	"terms of use":              DocumentTypeTermsOfService,
	"promissory note":           DocumentTypeLoan,
	"will":                      DocumentTypeWill,
	"last will and testament":   DocumentTypeWill,
	"poa":                       DocumentTypePowerOfAttorney,
	"court order":               DocumentTypeCourtFiling,
	"complaint":                 DocumentTypeCourtFiling,
	"eula":                      DocumentTypeLicense,
}

// NormalizeDocumentType folds free-form model output into the closed set.
// Anything unrecognised becomes DocumentTypeOther.
func NormalizeDocumentType(s string) DocumentType {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return DocumentTypeOther
	}
	for _, t := range KnownDocumentTypes {
		if strings.EqualFold(key, string(t)) {
			return t
		}
	}
	if t, ok := documentTypeAliases[key]; ok {
		return t
	}
	return DocumentTypeOther
}

// ValidationResult is the content validator's verdict.
// Reason is set only when IsLegal is false.
type ValidationResult struct {
	IsLegal bool   `json:"is_legal"`
	Reason  string `json:"reason,omitempty"`
}

// ClauseFinding describes one notable clause of an accepted document
type ClauseFinding struct {
	Title            string    `json:"title"`
	OriginalText     string    `json:"original_text"`
	PlainExplanation string    `json:"plain_explanation"`
	RiskLevel        RiskLevel `json:"risk_level"`
	KeyPoints        []string  `json:"key_points"`
	Concerns         string    `json:"concerns,omitempty"`
}

// AnalysisResult is the terminal output of the analysis workflow. It is
// either an acceptance carrying type, summary and clauses, or a rejection
// carrying only a reason. Build it with NewAcceptedResult or NewRejectedResult.
type AnalysisResult struct {
	Decision     Decision        `json:"decision"`
	DocumentType DocumentType    `json:"document_type,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Clauses      []ClauseFinding `json:"important_clauses,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

var (
	ErrIncompleteAnalysis = errors.New("accepted analysis requires a summary and at least one clause")
	ErrMissingReason      = errors.New("rejected analysis requires a reason")
)

// NewAcceptedResult builds an accept decision. Key points of every clause
// are de-duplicated, keeping the order of first appearance.
func NewAcceptedResult(docType DocumentType, summary string, clauses []ClauseFinding) (*AnalysisResult, error) {
	if strings.TrimSpace(summary) == "" || len(clauses) == 0 {
		return nil, ErrIncompleteAnalysis
	}
	out := make([]ClauseFinding, len(clauses))
	for i, c := range clauses {
		c.KeyPoints = dedupe(c.KeyPoints)
		out[i] = c
	}
	if docType == "" {
		docType = DocumentTypeOther
	}
	return &AnalysisResult{
		Decision:     DecisionAccept,
		DocumentType: docType,
		Summary:      summary,
		Clauses:      out,
	}, nil
}

// NewRejectedResult builds a reject decision
func NewRejectedResult(reason string) (*AnalysisResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrMissingReason
	}
	return &AnalysisResult{
		Decision: DecisionReject,
		Reason:   reason,
	}, nil
}

// Accepted reports whether the document passed validation and analysis
func (r *AnalysisResult) Accepted() bool {
	return r != nil && r.Decision == DecisionAccept
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
