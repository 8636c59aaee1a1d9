package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the live sessions. All sessions share the same Deps.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Orchestrator)}
}

// Create starts a new Idle session.
func (r *Registry) Create() *Orchestrator {
	o := New(uuid.NewString(), r.deps)
	r.mu.Lock()
	r.sessions[o.ID()] = o
	r.mu.Unlock()
	return o
}

func (r *Registry) Get(id string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[id]
	return o, ok
}

// Remove cancels and forgets the session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	o, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		o.Cancel()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CancelAll cancels every session, e.g. on shutdown.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	sessions := make([]*Orchestrator, 0, len(r.sessions))
	for _, o := range r.sessions {
		sessions = append(sessions, o)
	}
	r.mu.RUnlock()
	for _, o := range sessions {
		o.Cancel()
	}
}
