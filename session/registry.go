package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"legaldoc-backend/vectorstore"
)

const (
	DefaultMaxSessions = 1000
	maxSessionIDLength = 128
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Registry maps session ids to sessions and hands each session to one
// caller at a time. It is the only process-wide mutable state of the chat
// workflow.
type Registry struct {
	cache       *cache.Cache
	mu          sync.Mutex // serializes get-or-create and eviction
	newStore    func() *vectorstore.Store
	maxSessions int
	now         func() time.Time
}

// Option is a functional option for Registry
type Option func(*registryConfig)

type registryConfig struct {
	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time
}

// WithMaxSessions caps live sessions; the least recently used one is
// evicted to make room. n <= 0 disables the cap.
func WithMaxSessions(n int) Option {
	return func(c *registryConfig) {
		c.maxSessions = n
	}
}

// WithIdleTTL drops sessions not used for d. Zero keeps sessions until
// evicted explicitly or by the cap. d must outlast the longest turn, since
// expiry does not wait for the holder.
func WithIdleTTL(d time.Duration) Option {
	return func(c *registryConfig) {
		c.idleTTL = d
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *registryConfig) {
		c.now = now
	}
}

// NewRegistry creates an empty registry. newStore builds the vector store
// of each new session.
func NewRegistry(newStore func() *vectorstore.Store, opts ...Option) *Registry {
	cfg := registryConfig{
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	expiration := cache.NoExpiration
	var cleanup time.Duration
	if cfg.idleTTL > 0 {
		expiration = cfg.idleTTL
		cleanup = cfg.idleTTL / 2
	}

	return &Registry{
		cache:       cache.New(expiration, cleanup),
		newStore:    newStore,
		maxSessions: cfg.maxSessions,
		now:         cfg.now,
	}
}

// NewID returns a fresh 32-character alphanumeric session id
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Acquire returns the session for id, creating it when unknown. An empty id
// creates a session under a fresh id. The caller owns the session until it
// calls release; other callers for the same id wait, or give up when their
// ctx is done.
func (r *Registry) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	id = strings.TrimSpace(id)
	if len(id) > maxSessionIDLength {
		return nil, nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidSessionID, maxSessionIDLength)
	}

	for {
		s := r.getOrCreate(id)
		if err := lock(ctx, s); err != nil {
			return nil, nil, err
		}
		// The session may have been removed while we waited for it
		if !r.holds(s) {
			unlock(s)
			id = s.ID
			continue
		}
		s.lastUsed.Store(r.now().UnixNano())
		return s, r.releaser(s), nil
	}
}

func (r *Registry) getOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = NewID()
		for {
			if _, found := r.cache.Get(id); !found {
				break
			}
			id = NewID()
		}
	}

	if x, found := r.cache.Get(id); found {
		s := x.(*Session)
		// Refresh the idle deadline
		r.cache.Set(id, s, cache.DefaultExpiration)
		return s
	}

	if r.maxSessions > 0 {
		for r.cache.ItemCount() >= r.maxSessions {
			if !r.evictOldest() {
				break
			}
		}
	}

	s := newSession(id, r.newStore(), r.now())
	r.cache.Set(id, s, cache.DefaultExpiration)
	return s
}

// evictOldest removes the least recently used session nobody holds. When
// every session is held the cap is exceeded until one is released.
func (r *Registry) evictOldest() bool {
	items := r.cache.Items()
	candidates := make([]*Session, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, item.Object.(*Session))
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastUsed.Load() < candidates[j].lastUsed.Load()
	})

	for _, s := range candidates {
		if !tryLock(s) {
			continue
		}
		r.cache.Delete(s.ID)
		unlock(s)
		return true
	}
	return false
}

// holds reports whether s is still the registered session for its id
func (r *Registry) holds(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(s.ID)
	return found && x.(*Session) == s
}

func (r *Registry) releaser(s *Session) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if x, found := r.cache.Get(s.ID); found && x.(*Session) == s {
				r.cache.Set(s.ID, s, cache.DefaultExpiration)
			}
			r.mu.Unlock()
			unlock(s)
		})
	}
}

// Lookup is Acquire for an existing session only. It never creates one and
// returns ErrSessionNotFound for unknown ids.
func (r *Registry) Lookup(ctx context.Context, id string) (*Session, func(), error) {
	id = strings.TrimSpace(id)
	for {
		x, found := r.cache.Get(id)
		if !found {
			return nil, nil, ErrSessionNotFound
		}
		s := x.(*Session)
		if err := lock(ctx, s); err != nil {
			return nil, nil, err
		}
		if !r.holds(s) {
			unlock(s)
			continue
		}
		return s, r.releaser(s), nil
	}
}

// Evict removes the session and returns it. It waits for the current
// holder, so an in-flight turn finishes before the session goes away.
func (r *Registry) Evict(ctx context.Context, id string) (*Session, error) {
	s, release, err := r.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if x, found := r.cache.Get(s.ID); found && x.(*Session) == s {
		r.cache.Delete(s.ID)
	}
	r.mu.Unlock()
	release()
	return s, nil
}

func lock(ctx context.Context, s *Session) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func tryLock(s *Session) bool {
	select {
	case s.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func unlock(s *Session) { <-s.lock }

// Len returns the number of live sessions
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
