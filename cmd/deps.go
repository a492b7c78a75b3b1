package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

// openStore opens the configured template backend: PostgreSQL with pgvector
// when TEMPLATE_POSTGRES_URL is set, otherwise the JSON file store.
func openStore(ctx context.Context, cfg *config.Config) (templatestore.Store, error) {
	if cfg.Templates.PostgresURL != "" {
		store, err := templatestore.NewPostgresStore(ctx, cfg.Templates.PostgresURL, cfg.Embedding.Dim)
		if err != nil {
			return nil, fmt.Errorf("opening postgres template store: %w", err)
		}
		return store, nil
	}

	store, err := templatestore.NewFileStore(cfg.Templates.Path)
	if err != nil {
		return nil, fmt.Errorf("opening template store %s: %w", cfg.Templates.Path, err)
	}
	return store, nil
}

// newDetector creates the embedding service client from config.
func newDetector(cfg *config.Config) *faceapi.Client {
	return faceapi.NewClient(cfg.Embedding.URL)
}
