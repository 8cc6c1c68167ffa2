package service

import (
	"context"
	"strings"
	"sync"

	"legaldoc-backend/llm"
	"legaldoc-backend/models"
)

const leaseText = `RESIDENTIAL LEASE AGREEMENT

This Lease Agreement is entered into between Landlord Jane Smith and Tenant John Doe for the
premises at 12 Elm Street. The term of the lease is twelve months commencing January 1.

Rent. Tenant shall pay monthly rent of $1,500 on the first day of each month. A late fee of $75
applies to payments received after the fifth day of the month.

Security Deposit. Tenant shall pay a security deposit of $3,000, refundable within 30 days after
the end of the term, less deductions for damage beyond normal wear and tear.`

const employmentText = `EMPLOYMENT CONTRACT

This Employment Contract is made between Acme Corporation (the Employer) and Maria Lopez (the
Employee). The Employee is hired as Senior Analyst starting March 1.

Compensation. The Employer shall pay the Employee an annual base salary of $85,000, payable in
bi-weekly installments, subject to applicable withholdings.

Termination. Either party may terminate this contract with thirty days written notice.`

// scriptedGenerator answers by task. Each task has a queue of replies; the
// last reply repeats once the queue is drained.
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  map[string][]string
	errs     map[string]error
	requests []llm.GenerateRequest
	answer   func(req llm.GenerateRequest) (string, error)
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		replies: make(map[string][]string),
		errs:    make(map[string]error),
	}
}

func (g *scriptedGenerator) on(task string, replies ...string) *scriptedGenerator {
	g.replies[task] = replies
	return g
}

func (g *scriptedGenerator) fail(task string, err error) *scriptedGenerator {
	g.errs[task] = err
	return g
}

func (g *scriptedGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	if err := g.errs[req.Task]; err != nil {
		g.mu.Unlock()
		return "", err
	}
	if req.Task == "chat" && g.answer != nil {
		g.mu.Unlock()
		return g.answer(req)
	}
	queue := g.replies[req.Task]
	if len(queue) == 0 {
		g.mu.Unlock()
		return "", llm.Fatal(llm.ErrEmptyResponse)
	}
	reply := queue[0]
	if len(queue) > 1 {
		g.replies[req.Task] = queue[1:]
	}
	g.mu.Unlock()
	return reply, nil
}

func (g *scriptedGenerator) calls(task string) []llm.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []llm.GenerateRequest
	for _, r := range g.requests {
		if r.Task == task {
			out = append(out, r)
		}
	}
	return out
}

// stubValidator returns a fixed verdict and counts calls
type stubValidator struct {
	mu      sync.Mutex
	verdict models.ValidationResult
	err     error
	calls   int
}

func (v *stubValidator) Validate(ctx context.Context, text string) (*models.ValidationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	out := v.verdict
	return &out, nil
}

// stubAnalyzer counts calls
type stubAnalyzer struct {
	mu     sync.Mutex
	result *models.AnalysisResult
	err    error
	calls  int
}

func (a *stubAnalyzer) Analyze(ctx context.Context, text string) (*models.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.result, a.err
}

// keywordValidator accepts texts containing "agreement" or "contract"
type keywordValidator struct{}

func (keywordValidator) Validate(ctx context.Context, text string) (*models.ValidationResult, error) {
	lower := strings.ToLower(text)
	if len(strings.TrimSpace(text)) < defaultMinDocumentLength {
		return &models.ValidationResult{Reason: tooShortReason}, nil
	}
	if strings.Contains(lower, "agreement") || strings.Contains(lower, "contract") {
		return &models.ValidationResult{IsLegal: true}, nil
	}
	return &models.ValidationResult{Reason: DefaultRejectionReason}, nil
}
