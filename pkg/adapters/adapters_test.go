package adapters

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
	"github.com/XiaoConstantine/ace-go/pkg/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roleClient answers by role, keyed off the prompt preamble, so concurrent
// samples cannot scramble a scripted response order.
type roleClient struct {
	generatorResp string
	reflectorResp string
	curatorResp   func(call int64) string

	curatorCalls atomic.Int64
}

func (c *roleClient) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "You are solving a task"):
		return c.generatorResp, nil
	case strings.Contains(prompt, "You are reviewing an attempt"):
		return c.reflectorResp, nil
	case strings.Contains(prompt, "You maintain a playbook"):
		return c.curatorResp(c.curatorCalls.Add(1)), nil
	}
	return "", fmt.Errorf("unrecognized prompt: %.40s", prompt)
}

func newRoleClient() *roleClient {
	return &roleClient{
		generatorResp: `{"reasoning": "direct computation", "answer": "42"}`,
		reflectorResp: `{"error_identification": "none", "root_cause": "none", "insight": "show your work"}`,
		curatorResp: func(call int64) string {
			return fmt.Sprintf(
				`{"reasoning": "record the lesson", "operations": [{"type": "ADD", "section": "general", "content": "strategy %03d"}]}`,
				call)
		},
	}
}

// matchEnv marks an answer correct when it equals the ground truth.
type matchEnv struct {
	failQuestion string
}

func (e *matchEnv) Evaluate(_ context.Context, sample Sample, answer *roles.GeneratorOutput) (*EnvironmentResult, error) {
	if e.failQuestion != "" && sample.Question == e.failQuestion {
		return nil, fmt.Errorf("environment unavailable")
	}
	if answer.Answer == sample.GroundTruth {
		return &EnvironmentResult{Correct: true, Score: 1, Feedback: "correct"}, nil
	}
	return &EnvironmentResult{Correct: false, Feedback: "expected " + sample.GroundTruth}, nil
}

func TestNewSample(t *testing.T) {
	a := NewSample("q1", "a1")
	b := NewSample("q1", "a1")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "q1", a.Question)
	assert.Equal(t, "a1", a.GroundTruth)
}

func TestOfflineAdapterRun(t *testing.T) {
	ctx := context.Background()

	t.Run("runs all samples for all epochs", func(t *testing.T) {
		pb := playbook.New()
		adapter := NewOfflineAdapter(newRoleClient(), pb, WithMaxConcurrency(2))

		samples := []Sample{
			NewSample("six times seven?", "42"),
			NewSample("two plus two?", "4"),
			NewSample("the answer?", "42"),
		}

		result, err := adapter.Run(ctx, samples, &matchEnv{}, 2)
		require.NoError(t, err)
		assert.NotEmpty(t, result.RunID)
		assert.Equal(t, int64(6), result.Stats.Samples)
		assert.Equal(t, int64(4), result.Stats.Correct)
		assert.Equal(t, int64(0), result.Stats.Failed)
		assert.Equal(t, int64(6), result.Stats.OpsApplied)

		// Every sample contributed exactly one ADD.
		assert.Equal(t, 6, pb.Len())
	})

	t.Run("concurrent applies never lose an ADD", func(t *testing.T) {
		pb := playbook.New()
		adapter := NewOfflineAdapter(newRoleClient(), pb, WithMaxConcurrency(8))

		samples := make([]Sample, 8)
		for i := range samples {
			samples[i] = NewSample(fmt.Sprintf("question %d?", i), "42")
		}

		result, err := adapter.Run(ctx, samples, &matchEnv{}, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(8), result.Stats.OpsApplied)

		bullets := pb.Bullets()
		require.Len(t, bullets, 8)
		seen := make(map[string]bool, len(bullets))
		for _, b := range bullets {
			assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
			seen[b.ID] = true
		}
	})

	t.Run("per-sample failure does not stop the run", func(t *testing.T) {
		pb := playbook.New()
		adapter := NewOfflineAdapter(newRoleClient(), pb, WithMaxConcurrency(1))

		samples := []Sample{
			NewSample("fine", "42"),
			NewSample("broken", "42"),
			NewSample("also fine", "42"),
		}

		result, err := adapter.Run(ctx, samples, &matchEnv{failQuestion: "broken"}, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Stats.Failed)
		assert.Equal(t, int64(2), result.Stats.Correct)
		assert.Equal(t, 2, pb.Len())

		require.Len(t, result.Steps, 3)
		assert.Error(t, result.Steps[1].Err)
		assert.NoError(t, result.Steps[0].Err)
		assert.NoError(t, result.Steps[2].Err)
	})

	t.Run("canceled context aborts between epochs", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		adapter := NewOfflineAdapter(newRoleClient(), playbook.New())
		result, err := adapter.Run(canceled, []Sample{NewSample("q", "42")}, &matchEnv{}, 3)
		require.Error(t, err)
		assert.Equal(t, errors.Canceled, errors.Code(err))
		require.NotNil(t, result)
		assert.Equal(t, int64(0), result.Stats.Samples)
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		adapter := NewOfflineAdapter(newRoleClient(), playbook.New())

		_, err := adapter.Run(ctx, nil, &matchEnv{}, 1)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))

		_, err = adapter.Run(ctx, []Sample{NewSample("q", "a")}, nil, 1)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))
	})
}

func TestOnlineAdapterStep(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the delta immediately", func(t *testing.T) {
		pb := playbook.New()
		adapter := NewOnlineAdapter(newRoleClient(), pb)

		step, err := adapter.Step(ctx, NewSample("six times seven?", "42"), &matchEnv{})
		require.NoError(t, err)
		require.NotNil(t, step.Evaluation)
		assert.True(t, step.Evaluation.Correct)
		require.NotNil(t, step.Apply)
		assert.Len(t, step.Apply.Created, 1)
		assert.Equal(t, 1, pb.Len())
		assert.Same(t, pb, adapter.Playbook())
	})

	t.Run("surfaces step failure", func(t *testing.T) {
		adapter := NewOnlineAdapter(newRoleClient(), playbook.New())

		step, err := adapter.Step(ctx, NewSample("broken", "42"), &matchEnv{failQuestion: "broken"})
		require.Error(t, err)
		require.NotNil(t, step)
		assert.Error(t, step.Err)
		assert.NotNil(t, step.Generation)
		assert.Nil(t, step.Evaluation)
	})

	t.Run("nil environment rejected", func(t *testing.T) {
		adapter := NewOnlineAdapter(newRoleClient(), playbook.New())
		_, err := adapter.Step(ctx, NewSample("q", "a"), nil)
		assert.Equal(t, errors.InvalidInput, errors.Code(err))
	})
}
