package playbook

import (
	"context"
	"testing"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns fixed vectors per text, or a fixed error.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[text], nil
}

func enabledConfig(threshold float64) DedupConfig {
	cfg := DefaultDedupConfig()
	cfg.Enabled = true
	cfg.SimilarityThreshold = threshold
	return cfg
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestDedup(t *testing.T) {
	ctx := context.Background()

	t.Run("similar add merges instead of creating", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float64{
			"Verify inputs before use": {1, 0, 0},
			"Always verify the inputs": {0.95, 0.3122, 0}, // cos sim ~0.95
		}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		r1, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "Verify inputs before use")},
		})
		require.NoError(t, err)
		require.Len(t, r1.Created, 1)

		r2, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "Always verify the inputs")},
		})
		require.NoError(t, err)

		assert.Empty(t, r2.Created)
		assert.Equal(t, []string{"general-00001"}, r2.Merged)
		assert.Equal(t, 1, p.Len())

		survivor, err := p.Get("general-00001")
		require.NoError(t, err)
		assert.Equal(t, 1, survivor.HelpfulCount)
		assert.Equal(t, 2, survivor.Metadata["occurrences"])
	})

	t.Run("dissimilar add creates a new bullet", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float64{
			"a": {1, 0},
			"b": {0, 1},
		}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		for _, content := range []string{"a", "b"} {
			_, err := p.ApplyDelta(ctx, &DeltaBatch{
				Operations: []DeltaOperation{AddOp("general", content)},
			})
			require.NoError(t, err)
		}
		assert.Equal(t, 2, p.Len())
	})

	t.Run("within section only ignores other sections", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float64{
			"same idea": {1, 0},
		}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		_, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "same idea")},
		})
		require.NoError(t, err)

		// Identical content in a different section still adds.
		_, err = p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("math", "same idea")},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, p.Len())
	})

	t.Run("merges into highest similarity match", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float64{
			"close":     {0.9, 0.4359, 0},
			"closer":    {0.99, 0.1411, 0},
			"candidate": {1, 0, 0},
		}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		_, err := p.AddBullet("general", "close", nil)
		require.NoError(t, err)
		_, err = p.AddBullet("general", "closer", nil)
		require.NoError(t, err)

		result, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "candidate")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"general-00002"}, result.Merged)
	})

	t.Run("similarity tie goes to oldest id", func(t *testing.T) {
		// Both existing bullets share the same embedding.
		embedder := &stubEmbedder{vectors: map[string][]float64{
			"twin one":  {1, 0},
			"twin two":  {1, 0},
			"candidate": {1, 0},
		}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		_, err := p.AddBullet("general", "twin one", nil)
		require.NoError(t, err)
		_, err = p.AddBullet("general", "twin two", nil)
		require.NoError(t, err)

		result, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "candidate")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"general-00001"}, result.Merged)
	})

	t.Run("embedder failure degrades to plain add", func(t *testing.T) {
		embedder := &stubEmbedder{err: errors.New(errors.Timeout, "embedding timed out")}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		_, err := p.AddBullet("general", "existing", nil)
		require.NoError(t, err)

		result, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "existing")},
		})
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		assert.Equal(t, 2, p.Len())
	})

	t.Run("disabled config never matches", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float64{"x": {1, 0}}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(DefaultDedupConfig(), embedder))

		for i := 0; i < 2; i++ {
			_, err := p.ApplyDelta(ctx, &DeltaBatch{
				Operations: []DeltaOperation{AddOp("general", "x")},
			})
			require.NoError(t, err)
		}
		assert.Equal(t, 2, p.Len())
	})

	t.Run("update invalidates cached embedding", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float64{
			"original":  {1, 0},
			"rewritten": {0, 1},
			"candidate": {0, 1},
		}}

		p := New()
		p.SetDeduplicator(NewDeduplicator(enabledConfig(0.80), embedder))

		b, err := p.AddBullet("general", "original", nil)
		require.NoError(t, err)

		// Prime the cache with the original embedding.
		_, err = p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "candidate")},
		})
		require.NoError(t, err)
		require.Equal(t, 2, p.Len())

		require.NoError(t, p.UpdateBullet(b.ID, "rewritten", nil))

		// The candidate now matches the rewritten content too, and the
		// tie goes to the older bullet. A stale cache would still hold
		// the original embedding and miss it.
		result, err := p.ApplyDelta(ctx, &DeltaBatch{
			Operations: []DeltaOperation{AddOp("general", "candidate")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID}, result.Merged)
	})
}
