package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"renovationAi/internal/renovation"
)

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	projects []Project
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{projects: make([]Project, 0)}
}

// SaveProject prepends a project, keeping the most recent ones only.
func (s *InMemoryStore) SaveProject(_ context.Context, input Project) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now().UTC()
	}
	input.Materials = append([]renovation.MaterialSuggestion{}, input.Materials...)

	s.projects = append([]Project{input}, s.projects...)
	if len(s.projects) > defaultListLimit {
		s.projects = s.projects[:defaultListLimit]
	}

	return input, nil
}

// GetProject returns a single project by id.
func (s *InMemoryStore) GetProject(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return Project{}, ErrNotFound
}

// ListProjects returns a snapshot of stored projects, newest first.
func (s *InMemoryStore) ListProjects(_ context.Context, limit int) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	if limit > len(s.projects) {
		limit = len(s.projects)
	}
	snapshot := make([]Project, limit)
	copy(snapshot, s.projects[:limit])
	return snapshot, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() {}
