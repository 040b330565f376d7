// Package sessions keeps one wizard session per (user, tab) handle.
package sessions

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/firstprinciples/internal/wizard"
)

// Handle identifies a session: an anonymous user plus one browser tab.
type Handle struct {
	UserID    string
	SessionID string
}

// Factory builds the session for a new handle.
type Factory func(h Handle) *wizard.Session

// Gauge receives the number of live sessions after every change.
type Gauge interface {
	SetActiveSessions(n int)
}

type entry struct {
	session  *wizard.Session
	lastSeen time.Time
}

// Registry holds the live sessions of every user.
type Registry struct {
	factory Factory
	gauge   Gauge
	now     func() time.Time

	mu     sync.RWMutex
	active map[string]map[string]*entry
	count  int
}

// Option configures a Registry.
type Option func(*Registry)

// WithGauge reports the live session count to g.
func WithGauge(g Gauge) Option {
	return func(r *Registry) { r.gauge = g }
}

// WithClock sets the clock used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates an empty registry that builds sessions with factory.
func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory: factory,
		now:     time.Now,
		active:  make(map[string]map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns the session for h, creating it on first use, and marks
// it as seen.
func (r *Registry) Acquire(h Handle) *wizard.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.active[h.UserID]
	if !ok {
		sessions = make(map[string]*entry)
		r.active[h.UserID] = sessions
	}

	e, ok := sessions[h.SessionID]
	if !ok {
		e = &entry{session: r.factory(h)}
		sessions[h.SessionID] = e
		r.count++
		r.publish()
		slog.Info("Wizard session created", "user_id", h.UserID, "session_id", h.SessionID)
	}
	e.lastSeen = r.now()
	return e.session
}

// Get returns the session for h, or nil if none exists.
func (r *Registry) Get(h Handle) *wizard.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[h.UserID]; ok {
		if e, ok := sessions[h.SessionID]; ok {
			return e.session
		}
	}
	return nil
}

// Remove drops the session for h.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeLocked(h) {
		r.publish()
		slog.Info("Wizard session removed", "user_id", h.UserID, "session_id", h.SessionID)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// EvictIdle removes sessions not seen for longer than ttl. Sessions with a
// gateway call in flight are kept.
func (r *Registry) EvictIdle(ttl time.Duration) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	var evicted []Handle
	for userID, sessions := range r.active {
		for sessionID, e := range sessions {
			if !e.lastSeen.Before(cutoff) || e.session.Working() {
				continue
			}
			evicted = append(evicted, Handle{UserID: userID, SessionID: sessionID})
		}
	}

	for _, h := range evicted {
		r.removeLocked(h)
	}
	if len(evicted) > 0 {
		r.publish()
	}
	return evicted
}

func (r *Registry) removeLocked(h Handle) bool {
	sessions, ok := r.active[h.UserID]
	if !ok {
		return false
	}
	if _, ok := sessions[h.SessionID]; !ok {
		return false
	}
	delete(sessions, h.SessionID)
	if len(sessions) == 0 {
		delete(r.active, h.UserID)
	}
	r.count--
	return true
}

func (r *Registry) publish() {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(r.count)
	}
}
