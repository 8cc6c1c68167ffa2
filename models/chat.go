package models

import "time"

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session's history
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatTurnResult is returned for every chat turn. Response is empty when
// the turn only ingested a document.
type ChatTurnResult struct {
	Response          string `json:"response"`
	SessionID         string `json:"session_id"`
	DocumentProcessed bool   `json:"document_processed"`
}

// SessionSnapshot is a read-only copy of a session's state
type SessionSnapshot struct {
	ID          string        `json:"session_id"`
	History     []ChatMessage `json:"history"`
	ChunkCount  int           `json:"chunk_count"`
	HasDocument bool          `json:"has_document"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUsedAt  time.Time     `json:"last_used_at"`
}
