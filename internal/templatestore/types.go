package templatestore

import "context"

// Template is the single persisted embedding representing one enrolled identity.
type Template struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Embedding    []float32 `json:"embedding"`
	NumSamples   int       `json:"num_samples"`
	QualityScore float64   `json:"quality_score"`
	Model        string    `json:"model,omitempty"`
	CreatedDate  string    `json:"created_date"`
}

// document is the on-disk container for the file store. The version tag
// guards against silently reading an incompatible format.
type document struct {
	Version   int        `json:"version"`
	Templates []Template `json:"templates"`
}

const currentVersion = 1

// Store is the persistent repository of templates, one per identity.
// Insertion order is preserved across load/upsert so that matching stays
// deterministic. Mutations do not invalidate other in-process consumers;
// callers must trigger Reload on every dependent view (e.g. a Matcher)
// after Upsert or Delete.
type Store interface {
	// Reload forces a fresh read from the underlying storage.
	Reload(ctx context.Context) error
	// Templates returns the in-memory view in insertion order.
	Templates() []Template
	// Get returns the template for an identity, or nil if not enrolled.
	Get(id string) *Template
	// FindByName returns templates whose normalized name matches the query.
	FindByName(name string) []Template
	// Upsert inserts a new template or replaces the embedding, sample count
	// and quality score of an existing one, preserving its created date.
	Upsert(ctx context.Context, t Template) error
	// Delete removes a template. Returns false if the id was not enrolled.
	Delete(ctx context.Context, id string) (bool, error)
	// Count returns the number of enrolled identities.
	Count() int
}
