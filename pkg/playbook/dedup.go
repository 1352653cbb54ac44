package playbook

import (
	"context"
	"math"
	"sync"

	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

// Embedder supplies vector embeddings for deduplication. It is an injected
// capability: the playbook never probes for a provider on its own, and a
// nil or failing embedder simply disables the check.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// DedupConfig controls the similarity-based ADD pre-check.
type DedupConfig struct {
	Enabled             bool    `json:"enabled" yaml:"enabled"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	WithinSectionOnly   bool    `json:"within_section_only" yaml:"within_section_only"`
}

// DefaultDedupConfig returns the deduplication defaults: disabled, 0.80
// threshold, same-section comparison only.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Enabled:             false,
		SimilarityThreshold: 0.80,
		WithinSectionOnly:   true,
	}
}

// Deduplicator detects near-duplicate bullets before an ADD commits, so
// repeated learning rounds do not bloat the playbook with rephrasings of
// the same strategy. Embeddings of existing bullets are cached by bullet
// id and invalidated when a bullet's content changes.
type Deduplicator struct {
	config   DedupConfig
	embedder Embedder

	mu    sync.Mutex
	cache map[string][]float64
}

// NewDeduplicator creates a deduplicator with the given config and
// embedding capability.
func NewDeduplicator(config DedupConfig, embedder Embedder) *Deduplicator {
	return &Deduplicator{
		config:   config,
		embedder: embedder,
		cache:    make(map[string][]float64),
	}
}

// match returns the existing bullet the candidate content should merge
// into, or nil when the content is novel enough to add. Among bullets
// whose similarity exceeds the threshold, the highest-similarity one wins;
// exact ties go to the lowest (oldest) bullet id. Any embedding failure
// degrades to "no match" so deduplication never fails a batch.
func (d *Deduplicator) match(ctx context.Context, candidates []*Bullet, content string) *Bullet {
	if !d.config.Enabled || d.embedder == nil || len(candidates) == 0 {
		return nil
	}

	log := logging.GetLogger()

	vec, err := d.embedder.Embed(ctx, content)
	if err != nil || len(vec) == 0 {
		log.Debug(ctx, "dedup skipped: embedding unavailable: %v", err)
		return nil
	}

	var best *Bullet
	bestSim := d.config.SimilarityThreshold
	for _, b := range candidates {
		existing, err := d.embeddingFor(ctx, b)
		if err != nil || len(existing) == 0 {
			continue
		}
		sim := cosineSimilarity(vec, existing)
		if sim > bestSim || (best != nil && sim == bestSim && b.ID < best.ID) {
			best = b
			bestSim = sim
		}
	}
	if best != nil {
		log.Debug(ctx, "dedup merge into %s (similarity %.3f)", best.ID, bestSim)
	}
	return best
}

// embeddingFor returns the cached embedding for a bullet, computing and
// caching it on first use.
func (d *Deduplicator) embeddingFor(ctx context.Context, b *Bullet) ([]float64, error) {
	d.mu.Lock()
	vec, ok := d.cache[b.ID]
	d.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := d.embedder.Embed(ctx, b.Content)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cache[b.ID] = vec
	d.mu.Unlock()
	return vec, nil
}

// invalidate drops the cached embedding for a bullet whose content changed
// or which was removed.
func (d *Deduplicator) invalidate(bulletID string) {
	d.mu.Lock()
	delete(d.cache, bulletID)
	d.mu.Unlock()
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
