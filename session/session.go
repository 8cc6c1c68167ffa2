package session

import (
	"sync/atomic"
	"time"

	"legaldoc-backend/models"
	"legaldoc-backend/vectorstore"
)

// Session is the state of one chat conversation: a vector store holding at
// most one document, and the append-only message history. Fields other
// than ID are only touched by the holder of the session lock.
type Session struct {
	ID    string
	Store *vectorstore.Store

	history   []models.ChatMessage
	archives  []string // archive paths of every ingested original
	current   string   // archive path of the document now in Store
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanos, read without the lock by eviction
	lock      chan struct{}
}

func newSession(id string, store *vectorstore.Store, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Store:     store,
		history:   make([]models.ChatMessage, 0),
		createdAt: now,
		lock:      make(chan struct{}, 1),
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// History returns a copy of the conversation so far
func (s *Session) History() []models.ChatMessage {
	return append([]models.ChatMessage(nil), s.history...)
}

// AppendTurn records a completed exchange. Both messages go in together so
// the history never holds a question without its answer.
func (s *Session) AppendTurn(question, answer string, at time.Time) {
	s.history = append(s.history,
		models.ChatMessage{Role: models.RoleUser, Content: question, CreatedAt: at},
		models.ChatMessage{Role: models.RoleAssistant, Content: answer, CreatedAt: at},
	)
}

// RecordDocument notes the archive path of a newly ingested document. An
// empty path means the original was not archived.
func (s *Session) RecordDocument(archivePath string) {
	s.current = archivePath
	if archivePath != "" {
		s.archives = append(s.archives, archivePath)
	}
}

// DocumentArchive returns the archive path of the current document
func (s *Session) DocumentArchive() string {
	return s.current
}

// Archives returns the archive paths of every document this session ingested
func (s *Session) Archives() []string {
	return append([]string(nil), s.archives...)
}

// Snapshot copies the session state for read-only use
func (s *Session) Snapshot() models.SessionSnapshot {
	n := s.Store.Len()
	return models.SessionSnapshot{
		ID:          s.ID,
		History:     s.History(),
		ChunkCount:  n,
		HasDocument: n > 0,
		CreatedAt:   s.createdAt,
		LastUsedAt:  time.Unix(0, s.lastUsed.Load()),
	}
}
