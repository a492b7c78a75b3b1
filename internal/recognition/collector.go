package recognition

import "errors"

// Sample rejection reasons. These are expected denials, not failures: the
// caller reports them and keeps collecting.
var (
	ErrNoFace        = errors.New("no face detected in frame")
	ErrMultipleFaces = errors.New("more than one face detected in frame")
	ErrNoEmbedding   = errors.New("no embedding extracted for face")
	ErrLowConfidence = errors.New("detection confidence below minimum")
	ErrTooSimilar    = errors.New("sample too similar to the previous one")
)

// Candidate is one face candidate from a single frame, as produced by the
// external embedding service.
type Candidate struct {
	Embedding []float32
	DetScore  float64
}

// Collector accumulates enrollment samples for one identity. Samples are
// gated on detection confidence and on diversity against the most recently
// accepted sample, which forces pose and lighting variation. Purely
// in-memory; nothing is persisted until the aggregator finalizes.
type Collector struct {
	maxSamples          int
	minConfidence       float64
	minSampleSimilarity float64

	samples [][]float32
	last    []float32
}

// NewCollector creates a collector for one in-progress enrollment.
func NewCollector(maxSamples int, minConfidence, minSampleSimilarity float64) *Collector {
	if maxSamples <= 0 {
		maxSamples = 15
	}
	return &Collector{
		maxSamples:          maxSamples,
		minConfidence:       minConfidence,
		minSampleSimilarity: minSampleSimilarity,
	}
}

// AddFrame feeds all face candidates of a single frame into the collector.
// Enrollment requires exactly one face per frame; anything else is rejected.
func (c *Collector) AddFrame(candidates []Candidate) (bool, error) {
	if len(candidates) == 0 {
		return false, ErrNoFace
	}
	if len(candidates) > 1 {
		return false, ErrMultipleFaces
	}
	return c.AddSample(candidates[0].Embedding, candidates[0].DetScore)
}

// AddSample applies the confidence and diversity gates and, on acceptance,
// appends the embedding to the sample set in order.
func (c *Collector) AddSample(embedding []float32, detScore float64) (bool, error) {
	if len(embedding) == 0 {
		return false, ErrNoEmbedding
	}
	if detScore < c.minConfidence {
		return false, ErrLowConfidence
	}

	emb := Normalize(embedding)

	if c.last != nil {
		if sim := dot(emb, c.last); sim > c.minSampleSimilarity {
			return false, ErrTooSimilar
		}
	}

	c.samples = append(c.samples, emb)
	c.last = emb
	return true, nil
}

// Count returns the number of accepted samples.
func (c *Collector) Count() int {
	return len(c.samples)
}

// Progress returns count/max as a value in [0, 1].
func (c *Collector) Progress() float64 {
	return float64(len(c.samples)) / float64(c.maxSamples)
}

// IsComplete reports whether enough samples have been accepted.
func (c *Collector) IsComplete() bool {
	return len(c.samples) >= c.maxSamples
}

// Samples returns a copy of the accepted samples in acceptance order.
func (c *Collector) Samples() [][]float32 {
	out := make([][]float32, len(c.samples))
	copy(out, c.samples)
	return out
}

// Reset discards all accumulated samples. Used on cancel and after a
// successful save.
func (c *Collector) Reset() {
	c.samples = nil
	c.last = nil
}
