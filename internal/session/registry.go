package session

import (
	"fmt"
	"sync"
)

// Registry is a simple in-memory index from session ID to live session, so
// the submit request issued by the page can find the session created on page
// entry. Sessions are page-visit scoped, so there is nothing to persist;
// terminal sessions are removed by the owning orchestrator.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put indexes a session by its ID.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get fetches a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: not found for ID: %s", id)
	}
	return s, nil
}

// Remove drops a session from the index and closes its lifetime scope.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Close()
		delete(r.sessions, id)
	}
}

// Len returns the number of live sessions, for tests and monitoring.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
