package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists archived projects in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const projectColumns = `id, session_id, room, update_category, description, summary, rationale, materials,
        refinements, report_etag, report, before_image, after_image, created_at`

// SaveProject stores the provided project in PostgreSQL.
func (s *PostgresStore) SaveProject(ctx context.Context, input Project) (Project, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now().UTC()
	}

	materials, err := json.Marshal(input.Materials)
	if err != nil {
		return Project{}, fmt.Errorf("encode materials: %w", err)
	}
	report, _ := json.Marshal(input.Report)
	before, _ := json.Marshal(input.Before)
	after, _ := json.Marshal(input.After)

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		input.ID, input.SessionID, input.Room, input.Update, input.Description, input.Summary, input.Rationale, materials,
		input.Refinements, input.ReportETag, report, before, after, input.CreatedAt); err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}

	return input, nil
}

// GetProject loads a single project.
func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	project, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns the most recent projects.
func (s *PostgresStore) ListProjects(ctx context.Context, limit int) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		item, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

func scanProject(row pgx.Row) (Project, error) {
	var (
		item                             Project
		description, rationale, etag     *string
		materials, report, before, after []byte
	)
	if err := row.Scan(&item.ID, &item.SessionID, &item.Room, &item.Update, &description, &item.Summary, &rationale,
		&materials, &item.Refinements, &etag, &report, &before, &after, &item.CreatedAt); err != nil {
		return Project{}, err
	}
	if description != nil {
		item.Description = *description
	}
	if rationale != nil {
		item.Rationale = *rationale
	}
	if etag != nil {
		item.ReportETag = *etag
	}
	for _, field := range []struct {
		raw    []byte
		target any
	}{
		{materials, &item.Materials},
		{report, &item.Report},
		{before, &item.Before},
		{after, &item.After},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.target); err != nil {
			return Project{}, fmt.Errorf("decode project column: %w", err)
		}
	}
	return item, nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
