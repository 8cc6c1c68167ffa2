package handlers

import (
	"context"

	"legaldoc-backend/models"
	"legaldoc-backend/service"
	"legaldoc-backend/session"
)

// AnalysisRunner runs the document analysis workflow
type AnalysisRunner interface {
	Run(ctx context.Context, text string) (*models.AnalysisResult, error)
}

// ChatRunner runs one chat turn
type ChatRunner interface {
	Run(ctx context.Context, req service.ChatTurnRequest) (*models.ChatTurnResult, error)
}

// TextExtractor turns uploaded bytes into text
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// SessionStore reads and evicts chat sessions
type SessionStore interface {
	Lookup(ctx context.Context, id string) (*session.Session, func(), error)
	Evict(ctx context.Context, id string) (*session.Session, error)
}
