package playbook

import (
	"encoding/json"
	"testing"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBullet(t *testing.T) {
	t.Run("record feedback accumulates", func(t *testing.T) {
		b := &Bullet{ID: "general-00001", Section: "general", Content: "x"}

		require.NoError(t, b.RecordFeedback(TagHelpful))
		require.NoError(t, b.RecordFeedback(TagHelpful))
		require.NoError(t, b.RecordFeedback(TagHarmful))

		assert.Equal(t, 2, b.HelpfulCount)
		assert.Equal(t, 1, b.HarmfulCount)
		assert.Equal(t, 3, b.TotalUses())
	})

	t.Run("unknown tag rejected", func(t *testing.T) {
		b := &Bullet{ID: "general-00001"}
		err := b.RecordFeedback(Tag("neutral"))
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))
		assert.Equal(t, 0, b.TotalUses())
	})

	t.Run("success rate defaults to half", func(t *testing.T) {
		b := &Bullet{}
		assert.Equal(t, 0.5, b.SuccessRate())

		b.HelpfulCount = 3
		b.HarmfulCount = 1
		assert.Equal(t, 0.75, b.SuccessRate())
	})

	t.Run("render includes id and counts", func(t *testing.T) {
		b := &Bullet{ID: "math-00002", Content: "Show your work", HelpfulCount: 2}
		assert.Equal(t, "[math-00002] Show your work (+2/-0)", b.Render())
	})
}

func TestPlaybookAddBullet(t *testing.T) {
	t.Run("ids are section scoped and zero padded", func(t *testing.T) {
		p := New()

		b1, err := p.AddBullet("general", "first", nil)
		require.NoError(t, err)
		b2, err := p.AddBullet("general", "second", nil)
		require.NoError(t, err)
		b3, err := p.AddBullet("math", "third", nil)
		require.NoError(t, err)

		assert.Equal(t, "general-00001", b1.ID)
		assert.Equal(t, "general-00002", b2.ID)
		assert.Equal(t, "math-00001", b3.ID)
	})

	t.Run("empty section or content rejected", func(t *testing.T) {
		p := New()

		_, err := p.AddBullet("", "content", nil)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))

		_, err = p.AddBullet("general", "   ", nil)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))

		assert.Equal(t, 0, p.Len())
	})

	t.Run("ids never reused after removal", func(t *testing.T) {
		p := New()

		b1, err := p.AddBullet("general", "first", nil)
		require.NoError(t, err)
		require.NoError(t, p.Remove(b1.ID))

		b2, err := p.AddBullet("general", "second", nil)
		require.NoError(t, err)
		assert.Equal(t, "general-00002", b2.ID)
	})

	t.Run("metadata stored on add", func(t *testing.T) {
		p := New()
		b, err := p.AddBullet("general", "first", map[string]any{"source": "seed"})
		require.NoError(t, err)
		assert.Equal(t, "seed", b.Metadata["source"])
	})
}

func TestPlaybookAccess(t *testing.T) {
	t.Run("get unknown id fails with not found", func(t *testing.T) {
		p := New()
		_, err := p.Get("general-00099")
		assert.Equal(t, errors.ResourceNotFound, errors.Code(err))
	})

	t.Run("remove unknown id fails with not found", func(t *testing.T) {
		p := New()
		err := p.Remove("general-00099")
		assert.Equal(t, errors.ResourceNotFound, errors.Code(err))
	})

	t.Run("returned bullets are defensive copies", func(t *testing.T) {
		p := New()
		b, err := p.AddBullet("general", "original", map[string]any{"k": "v"})
		require.NoError(t, err)

		b.Content = "mutated"
		b.Metadata["k"] = "mutated"

		got, err := p.Get(b.ID)
		require.NoError(t, err)
		assert.Equal(t, "original", got.Content)
		assert.Equal(t, "v", got.Metadata["k"])

		all := p.Bullets()
		require.Len(t, all, 1)
		all[0].Content = "mutated again"

		got, err = p.Get(b.ID)
		require.NoError(t, err)
		assert.Equal(t, "original", got.Content)
	})

	t.Run("tag bullet uses the validated codepath", func(t *testing.T) {
		p := New()
		b, err := p.AddBullet("general", "x", nil)
		require.NoError(t, err)

		require.NoError(t, p.TagBullet(b.ID, TagHelpful))
		err = p.TagBullet(b.ID, Tag("bogus"))
		assert.Equal(t, errors.InvalidInput, errors.Code(err))

		got, err := p.Get(b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.HelpfulCount)
	})

	t.Run("update replaces content and merges metadata", func(t *testing.T) {
		p := New()
		b, err := p.AddBullet("general", "old", map[string]any{"a": 1})
		require.NoError(t, err)

		require.NoError(t, p.UpdateBullet(b.ID, "new", map[string]any{"b": 2}))

		got, err := p.Get(b.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Content)
		assert.Equal(t, 1, got.Metadata["a"])
		assert.Equal(t, 2, got.Metadata["b"])
	})
}

func TestPlaybookAsPrompt(t *testing.T) {
	t.Run("empty playbook renders empty string", func(t *testing.T) {
		assert.Equal(t, "", New().AsPrompt())
	})

	t.Run("sections in first seen order, bullets in add order", func(t *testing.T) {
		p := New()
		_, err := p.AddBullet("general", "verify inputs", nil)
		require.NoError(t, err)
		_, err = p.AddBullet("math", "show work", nil)
		require.NoError(t, err)
		_, err = p.AddBullet("general", "cite sources", nil)
		require.NoError(t, err)

		want := "## general\n" +
			"[general-00001] verify inputs (+0/-0)\n" +
			"[general-00002] cite sources (+0/-0)\n" +
			"\n## math\n" +
			"[math-00001] show work (+0/-0)\n"
		assert.Equal(t, want, p.AsPrompt())
	})

	t.Run("rendering is deterministic", func(t *testing.T) {
		p := New()
		for _, section := range []string{"b", "a", "c"} {
			_, err := p.AddBullet(section, "content for "+section, nil)
			require.NoError(t, err)
		}
		assert.Equal(t, p.AsPrompt(), p.AsPrompt())
	})

	t.Run("fully removed section drops its header", func(t *testing.T) {
		p := New()
		b, err := p.AddBullet("general", "x", nil)
		require.NoError(t, err)
		_, err = p.AddBullet("math", "y", nil)
		require.NoError(t, err)
		require.NoError(t, p.Remove(b.ID))

		prompt := p.AsPrompt()
		assert.NotContains(t, prompt, "## general")
		assert.Contains(t, prompt, "## math")
	})
}

func TestPlaybookRoundTrip(t *testing.T) {
	t.Run("state round trip preserves bullets and counters", func(t *testing.T) {
		p := New()
		b1, err := p.AddBullet("general", "keep me", map[string]any{"k": "v"})
		require.NoError(t, err)
		require.NoError(t, p.TagBullet(b1.ID, TagHelpful))
		b2, err := p.AddBullet("general", "remove me", nil)
		require.NoError(t, err)
		require.NoError(t, p.Remove(b2.ID))

		restored, err := FromState(p.Snapshot())
		require.NoError(t, err)

		assert.Equal(t, p.AsPrompt(), restored.AsPrompt())

		// Counters survived: the next id must not collide with the
		// removed bullet's id.
		b3, err := restored.AddBullet("general", "fresh", nil)
		require.NoError(t, err)
		assert.Equal(t, "general-00003", b3.ID)
	})

	t.Run("json round trip", func(t *testing.T) {
		p := New()
		_, err := p.AddBullet("general", "a strategy", nil)
		require.NoError(t, err)

		data, err := json.Marshal(p)
		require.NoError(t, err)

		restored := New()
		require.NoError(t, json.Unmarshal(data, restored))
		assert.Equal(t, p.AsPrompt(), restored.AsPrompt())
	})

	t.Run("duplicate ids in state rejected", func(t *testing.T) {
		s := &State{
			Bullets: []Bullet{
				{ID: "general-00001", Section: "general", Content: "a"},
				{ID: "general-00001", Section: "general", Content: "b"},
			},
			SectionCounters: map[string]int{"general": 1},
		}
		_, err := FromState(s)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))
	})

	t.Run("stale counters are raised to max seen sequence", func(t *testing.T) {
		s := &State{
			Bullets: []Bullet{
				{ID: "general-00007", Section: "general", Content: "a"},
			},
			SectionCounters: map[string]int{"general": 2},
		}
		p, err := FromState(s)
		require.NoError(t, err)

		b, err := p.AddBullet("general", "next", nil)
		require.NoError(t, err)
		assert.Equal(t, "general-00008", b.ID)
	})
}
