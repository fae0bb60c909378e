package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"renovationAi/internal/renovation"
)

// ErrNotFound indicates that a project could not be located in the backing store.
var ErrNotFound = errors.New("project not found")

// Artifact is one uploaded file belonging to an archived project.
type Artifact struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// Project is an archived renovation report together with its uploaded artifacts.
type Project struct {
	ID          string                          `json:"id"`
	SessionID   string                          `json:"session_id"`
	Room        string                          `json:"room"`
	Update      string                          `json:"update"`
	Description string                          `json:"description,omitempty"`
	Summary     string                          `json:"summary"`
	Rationale   string                          `json:"rationale,omitempty"`
	Materials   []renovation.MaterialSuggestion `json:"materials"`
	Refinements int                             `json:"refinements"`
	ReportETag  string                          `json:"report_etag"`
	Report      Artifact                        `json:"report"`
	Before      Artifact                        `json:"before"`
	After       Artifact                        `json:"after"`
	CreatedAt   time.Time                       `json:"created_at"`
}

// Store persists archived projects.
type Store interface {
	SaveProject(ctx context.Context, project Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, limit int) ([]Project, error)
	Close()
}

const defaultListLimit = 50

// NewStore returns a PostgreSQL store when databaseURL is set, otherwise an in-memory one.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS projects (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        room TEXT NOT NULL,
        update_category TEXT NOT NULL,
        description TEXT,
        summary TEXT NOT NULL,
        rationale TEXT,
        materials JSONB DEFAULT '[]'::jsonb,
        refinements INTEGER NOT NULL DEFAULT 0,
        report_etag TEXT,
        report JSONB DEFAULT '{}'::jsonb,
        before_image JSONB DEFAULT '{}'::jsonb,
        after_image JSONB DEFAULT '{}'::jsonb,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create projects table: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS projects_created_at_idx ON projects (created_at DESC)`); err != nil {
		return fmt.Errorf("index projects table: %w", err)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}
