package reconciler

import (
	"context"
	"sync"
	"time"

	"workledger/internal/application/dispatcher"
	"workledger/internal/domain/event"
)

// Registry tracks the live sessions and wires each one into the change-feed
// dispatcher. Idle sessions are evicted by the janitor worker.
type Registry struct {
	feed dispatcher.Dispatcher

	mu         sync.Mutex
	sessions   map[string]*Session
	lastAccess map[string]time.Time
}

// NewRegistry creates a session registry subscribed to the given feed.
func NewRegistry(feed dispatcher.Dispatcher) *Registry {
	return &Registry{
		feed:       feed,
		sessions:   make(map[string]*Session),
		lastAccess: make(map[string]time.Time),
	}
}

// Get returns the session for the given id, creating and subscribing it on
// first use. The second return reports whether the session was just created,
// so the caller knows to seed it with an initial load.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		r.lastAccess[sessionID] = time.Now()
		return s, false
	}

	s := NewSession()
	r.sessions[sessionID] = s
	r.lastAccess[sessionID] = time.Now()

	r.feed.SubscribeAll("session-"+sessionID, func(_ context.Context, evt *event.Event) error {
		s.Apply(evt)
		return nil
	})
	return s, true
}

// Lookup returns the live session for the given id without creating one.
// Mutation paths use it to apply their result optimistically: a session that
// does not exist yet will seed itself from the store on first read instead.
func (r *Registry) Lookup(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if ok {
		r.lastAccess[sessionID] = time.Now()
	}
	return s, ok
}

// Drop removes one session and detaches it from the feed.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	delete(r.lastAccess, sessionID)
	r.mu.Unlock()

	r.feed.Unsubscribe("session-" + sessionID)
}

// EvictIdle drops sessions not touched within ttl and returns how many were
// evicted.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	r.mu.Lock()
	var stale []string
	for id, last := range r.lastAccess {
		if time.Since(last) > ttl {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(r.sessions, id)
		delete(r.lastAccess, id)
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.feed.Unsubscribe("session-" + id)
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
