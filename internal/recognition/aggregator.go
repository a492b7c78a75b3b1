package recognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

// ErrNoSamples is returned when finalization is attempted without any
// accepted samples.
var ErrNoSamples = errors.New("no samples to aggregate")

// minSamplesForOutlierRemoval is the robustness floor: below this many
// samples there is too little data to judge outliers, and removal must
// never leave fewer survivors than this.
const minSamplesForOutlierRemoval = 5

// AggregatorConfig holds the aggregation knobs.
type AggregatorConfig struct {
	// MaxOutlierDistance is the cosine distance from the normalized sample
	// mean above which a sample is dropped.
	MaxOutlierDistance float64
	// QualityReference scales the mean sample spread into a [0,1] score.
	QualityReference float64
	// Model names the embedding model the templates were built with.
	Model string
}

// Aggregator turns a completed sample set into a single stored template.
type Aggregator struct {
	store templatestore.Store
	cfg   AggregatorConfig
}

// NewAggregator creates an aggregator persisting through the given store.
func NewAggregator(store templatestore.Store, cfg AggregatorConfig) *Aggregator {
	return &Aggregator{store: store, cfg: cfg}
}

// Finalize aggregates the collector's samples into a template and upserts it.
// On persistence failure the collector's samples are left untouched so the
// save can be retried; on success the collector is reset.
func (a *Aggregator) Finalize(ctx context.Context, collector *Collector, id, name string) (templatestore.Template, error) {
	samples := collector.Samples()
	if len(samples) == 0 {
		return templatestore.Template{}, ErrNoSamples
	}

	survivors := a.removeOutliers(samples)
	quality := a.qualityScore(survivors)

	template := templatestore.Template{
		ID:           id,
		Name:         name,
		Embedding:    Normalize(Mean(survivors)),
		NumSamples:   len(survivors),
		QualityScore: quality,
		Model:        a.cfg.Model,
	}

	if err := a.store.Upsert(ctx, template); err != nil {
		return templatestore.Template{}, fmt.Errorf("persisting template for %s: %w", id, err)
	}

	collector.Reset()
	return template, nil
}

// removeOutliers drops samples too far from the normalized mean. Skipped
// entirely for small sets, and aborted (full set kept) when dropping would
// leave fewer samples than the floor.
func (a *Aggregator) removeOutliers(samples [][]float32) [][]float32 {
	if len(samples) < minSamplesForOutlierRemoval {
		return samples
	}

	mean := Normalize(Mean(samples))

	var kept [][]float32
	for _, s := range samples {
		if 1.0-dot(s, mean) <= a.cfg.MaxOutlierDistance {
			kept = append(kept, s)
		}
	}

	if len(kept) < minSamplesForOutlierRemoval {
		return samples
	}
	return kept
}

// qualityScore measures the spread of the sample set: the mean cosine
// distance to the sample mean, scaled by the reference and clamped to [0,1].
// Higher spread means more pose/lighting diversity. Undefined (0.0) below
// two samples.
func (a *Aggregator) qualityScore(samples [][]float32) float64 {
	if len(samples) < 2 {
		return 0.0
	}

	// The mean is deliberately not renormalized here; the score tracks the
	// raw spread around the centroid.
	mean := Mean(samples)
	var total float64
	for _, s := range samples {
		total += 1.0 - dot(s, mean)
	}
	avg := total / float64(len(samples))

	score := avg / a.cfg.QualityReference
	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}
