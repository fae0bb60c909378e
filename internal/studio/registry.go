package studio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"renovationAi/internal/renovation"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("studio: session not found")
	// ErrRegistryFull is returned when every slot holds a busy session.
	ErrRegistryFull = errors.New("studio: too many active sessions")
)

const defaultMaxSessions = 200

type entry struct {
	mu      sync.Mutex
	session renovation.Session
}

// Registry keeps sessions in process memory. Each session is only ever
// changed through Apply, which serializes events per session.
type Registry struct {
	mu      sync.Mutex
	max     int
	entries map[string]*entry
}

// NewRegistry returns a registry holding at most max sessions.
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = defaultMaxSessions
	}
	return &Registry{max: max, entries: make(map[string]*entry)}
}

// Create starts a new idle session, evicting the least recently updated idle
// session when the registry is full.
func (r *Registry) Create() (renovation.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.max && !r.evictLocked() {
		return renovation.Session{}, ErrRegistryFull
	}

	session := renovation.NewSession(uuid.NewString())
	r.entries[session.ID] = &entry{session: session}
	return session, nil
}

func (r *Registry) evictLocked() bool {
	var (
		victim string
		oldest time.Time
	)
	for id, e := range r.entries {
		e.mu.Lock()
		busy, updated := e.session.State.Busy(), e.session.UpdatedAt
		e.mu.Unlock()
		if busy {
			continue
		}
		if victim == "" || updated.Before(oldest) {
			victim, oldest = id, updated
		}
	}
	if victim == "" {
		return false
	}
	delete(r.entries, victim)
	return true
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (renovation.Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return renovation.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, nil
}

// Delete drops the session. In-flight completions for it become no-ops.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.entries, id)
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Apply reduces evt into the stored session. On error the stored session is unchanged.
func (r *Registry) Apply(id string, evt renovation.Event) (renovation.Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return renovation.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := renovation.Reduce(e.session, evt)
	if err != nil {
		return e.session, err
	}
	e.session = next
	return next, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
