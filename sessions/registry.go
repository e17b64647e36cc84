package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/logger"
	"storefront-service/store"
)

// Session is one browser's storefront state.
type Session struct {
	ID   string
	Cart *store.Cart
	Auth *store.Session

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Registry owns the sessions of every connected browser.
type Registry struct {
	provider store.Authenticator
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(provider store.Authenticator, idleTTL time.Duration) *Registry {
	return &Registry{
		provider: provider,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session with id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Create starts a new session under a fresh id.
func (r *Registry) Create() *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Cart:     store.NewCart(),
		Auth:     store.NewSession(r.provider),
		lastSeen: r.now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes sessions unused for longer than the idle TTL, clearing
// their carts and signing them out. A session with an open cart event stream
// is in use and is kept. It returns how many were removed.
func (r *Registry) EvictIdle(ctx context.Context) int {
	now := r.now()
	cutoff := now.Add(-r.idleTTL)

	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.Cart.Subscribers() > 0 {
			s.touch(now)
			continue
		}
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Cart.Clear()
		if s.Auth.Snapshot().SignedIn() {
			s.Auth.SignOut(ctx)
		}
	}
	if len(stale) > 0 {
		logger.Info(ctx, "evicted idle sessions", zap.Int("count", len(stale)), zap.Int("remaining", r.Len()))
	}
	return len(stale)
}

// Run evicts idle sessions periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(ctx)
		}
	}
}
