// internal/domain/cart/registry.go
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrSessionRequired is returned when a cart is requested without a session
var ErrSessionRequired = errors.New("session ID required for cart")

// EngineFactory builds the engine for a new session
type EngineFactory func(sessionID string) *Engine

// Principal identifies who a session is acting as. An empty UserID is anonymous.
type Principal struct {
	UserID string
}

// Authenticated reports whether the principal is a signed-in shopper
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

type session struct {
	engine    *Engine
	principal Principal
	lastSeen  time.Time
}

// Registry owns one engine per shopper session, from the first request of a
// session until Release or idle eviction.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	group    singleflight.Group

	factory EngineFactory
	idleTTL time.Duration
	now     func() time.Time
	logger  logrus.FieldLogger
}

// NewRegistry creates a session registry
func NewRegistry(factory EngineFactory, idleTTL time.Duration, logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		sessions: make(map[string]*session),
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// Acquire returns the session's engine, creating and loading it on first use,
// and feeds it the caller's authentication state. A different signed-in user
// on the same session forces a reload.
func (r *Registry) Acquire(ctx context.Context, sessionID string, principal Principal) (*Engine, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	s := r.lookup(sessionID)
	if s == nil {
		v, _, _ := r.group.Do(sessionID, func() (interface{}, error) {
			if existing := r.lookup(sessionID); existing != nil {
				return existing, nil
			}

			engine := r.factory(sessionID)
			engine.SetAuthenticated(ctx, principal.Authenticated())

			created := &session{engine: engine, principal: principal, lastSeen: r.now()}
			r.mu.Lock()
			r.sessions[sessionID] = created
			r.mu.Unlock()

			r.logger.WithField("session_id", sessionID).Debug("Cart session started")
			return created, nil
		})
		s = v.(*session)
	}

	r.mu.Lock()
	previous := s.principal
	s.principal = principal
	s.lastSeen = r.now()
	r.mu.Unlock()

	if !s.engine.SetAuthenticated(ctx, principal.Authenticated()) &&
		previous.Authenticated() && principal.Authenticated() && previous != principal {
		s.engine.Load(ctx)
	}

	return s.engine, nil
}

// Release ends a session and drops its engine
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; ok {
		delete(r.sessions, sessionID)
		r.logger.WithField("session_id", sessionID).Debug("Cart session ended")
	}
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL and returns how many
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.idleTTL {
			delete(r.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.WithField("evicted", evicted).Info("Evicted idle cart sessions")
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			r.Sweep(t)
		}
	}
}

func (r *Registry) lookup(sessionID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}
