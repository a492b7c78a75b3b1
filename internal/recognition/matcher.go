package recognition

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

// Result is the outcome of matching one query embedding against the
// template set. Similarity is populated even when no template passed the
// threshold, so callers can log near-misses.
type Result struct {
	StudentID  string
	Name       string
	Similarity float64
	Matched    bool
}

// Matcher performs nearest-neighbor search of a query embedding against the
// template store by cosine similarity. It holds a read-only snapshot of the
// store's templates; the store performs no invalidation, so every caller of
// a mutating store operation must call Reload on live matchers afterwards
// or matching silently uses a stale template set.
//
// A linear scan over the insertion-ordered snapshot keeps tie-breaking
// deterministic (lowest index wins).
type Matcher struct {
	store templatestore.Store

	ids        []string
	names      []string
	embeddings [][]float32
}

// NewMatcher builds a matcher over the store's current templates.
func NewMatcher(store templatestore.Store) *Matcher {
	m := &Matcher{store: store}
	m.rebuild()
	return m
}

// rebuild snapshots the store's in-memory view.
func (m *Matcher) rebuild() {
	templates := m.store.Templates()
	m.ids = make([]string, len(templates))
	m.names = make([]string, len(templates))
	m.embeddings = make([][]float32, len(templates))
	for i, t := range templates {
		m.ids[i] = t.ID
		m.names[i] = t.Name
		m.embeddings[i] = t.Embedding
	}
}

// Reload forces a fresh read of the store and rebuilds the snapshot.
// Must be called after any template mutation elsewhere in the process.
func (m *Matcher) Reload(ctx context.Context) error {
	if err := m.store.Reload(ctx); err != nil {
		return err
	}
	m.rebuild()
	return nil
}

// Count returns the number of templates in the current snapshot.
func (m *Matcher) Count() int {
	return len(m.ids)
}

// Match finds the stored template most similar to the query embedding.
// The query is normalized defensively; stored templates are unit-norm by
// the store's load contract, so similarity is a plain dot product. The
// winning identity is returned only when its similarity reaches the
// threshold; the best similarity is returned either way.
func (m *Matcher) Match(query []float32, threshold float64) Result {
	if len(m.embeddings) == 0 {
		return Result{Similarity: 0.0}
	}

	q := Normalize(query)

	bestIdx := 0
	bestSim := dot(m.embeddings[0], q)
	for i := 1; i < len(m.embeddings); i++ {
		// Strictly greater keeps the lowest index on ties.
		if sim := dot(m.embeddings[i], q); sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}

	if bestSim >= threshold {
		return Result{
			StudentID:  m.ids[bestIdx],
			Name:       m.names[bestIdx],
			Similarity: bestSim,
			Matched:    true,
		}
	}
	return Result{Similarity: bestSim}
}
