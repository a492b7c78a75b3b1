package templatestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore is a pgvector-backed Store for deployments where templates
// are shared between machines. Insertion order is kept via a serial position
// column so matching stays deterministic across reloads.
type PostgresStore struct {
	db  *sql.DB
	dim int

	mu        sync.RWMutex
	templates []Template
}

// NewPostgresStore connects to PostgreSQL, runs migrations and loads the
// current template set.
func NewPostgresStore(ctx context.Context, url string, dim int) (*PostgresStore, error) {
	if url == "" {
		return nil, errors.New("postgres URL is required")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db, dim: dim}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS templates (
			position      BIGSERIAL,
			id            VARCHAR(255) PRIMARY KEY,
			name          VARCHAR(255) NOT NULL,
			embedding     vector(%d) NOT NULL,
			num_samples   INTEGER NOT NULL,
			quality_score DOUBLE PRECISION NOT NULL,
			model         VARCHAR(255) NOT NULL DEFAULT '',
			created_date  VARCHAR(32) NOT NULL
		)
	`, s.dim)
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create templates table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, embedding, num_samples, quality_score, model, created_date
		FROM templates
		ORDER BY position ASC
	`)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		var vec pgvector.Vector
		if err := rows.Scan(&t.ID, &t.Name, &vec, &t.NumSamples, &t.QualityScore, &t.Model, &t.CreatedDate); err != nil {
			return fmt.Errorf("scanning template: %w", err)
		}
		t.Embedding = vec.Slice()
		renormalize(t.Embedding)
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating templates: %w", err)
	}

	s.mu.Lock()
	s.templates = templates
	s.mu.Unlock()
	return nil
}

func (s *PostgresStore) Templates() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Template, len(s.templates))
	copy(out, s.templates)
	return out
}

func (s *PostgresStore) Get(id string) *Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.templates {
		if s.templates[i].ID == id {
			t := s.templates[i]
			return &t
		}
	}
	return nil
}

func (s *PostgresStore) FindByName(name string) []Template {
	query := NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Template
	for i := range s.templates {
		if NormalizeName(s.templates[i].Name) == query {
			out = append(out, s.templates[i])
		}
	}
	return out
}

func (s *PostgresStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

func (s *PostgresStore) Upsert(ctx context.Context, t Template) error {
	if t.CreatedDate == "" {
		t.CreatedDate = time.Now().Format(createdDateLayout)
	}

	// created_date is written only on insert; re-enrollment keeps the original.
	query := `
		INSERT INTO templates (id, name, embedding, num_samples, quality_score, model, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			num_samples = EXCLUDED.num_samples,
			quality_score = EXCLUDED.quality_score,
			model = EXCLUDED.model
	`
	vec := pgvector.NewVector(t.Embedding)
	if _, err := s.db.ExecContext(ctx, query, t.ID, t.Name, vec, t.NumSamples, t.QualityScore, t.Model, t.CreatedDate); err != nil {
		return fmt.Errorf("upserting template %s: %w", t.ID, err)
	}
	return s.Reload(ctx)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("deleting template %s: %w", id, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	return true, s.Reload(ctx)
}
