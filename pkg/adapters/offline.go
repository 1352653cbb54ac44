package adapters

import (
	"context"
	"sync/atomic"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
	"github.com/XiaoConstantine/ace-go/pkg/roles"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

const defaultMaxConcurrency = 4

// OfflineAdapter grows a playbook from a labeled sample set. Samples
// within an epoch run concurrently up to MaxConcurrency; epochs run in
// order so later epochs see what earlier ones learned.
type OfflineAdapter struct {
	pipe           *pipeline
	maxConcurrency int
	curatorOpts    []roles.CuratorOption
}

// OfflineOption configures an OfflineAdapter.
type OfflineOption func(*OfflineAdapter)

// WithMaxConcurrency bounds how many samples run in flight at once.
func WithMaxConcurrency(n int) OfflineOption {
	return func(a *OfflineAdapter) {
		if n > 0 {
			a.maxConcurrency = n
		}
	}
}

// WithCuratorOptions forwards options to the underlying curator.
func WithCuratorOptions(opts ...roles.CuratorOption) OfflineOption {
	return func(a *OfflineAdapter) {
		a.curatorOpts = append(a.curatorOpts, opts...)
	}
}

// NewOfflineAdapter creates an adapter that mutates pb in place.
func NewOfflineAdapter(client llm.Client, pb *playbook.Playbook, opts ...OfflineOption) *OfflineAdapter {
	a := &OfflineAdapter{maxConcurrency: defaultMaxConcurrency}
	for _, opt := range opts {
		opt(a)
	}
	a.pipe = newPipeline(client, pb, a.curatorOpts...)
	return a
}

// Run processes every sample for the given number of epochs. Per-sample
// failures are recorded on their StepResult and counted in Stats.Failed;
// only context cancellation aborts the run early, returning the partial
// result alongside the error.
func (a *OfflineAdapter) Run(ctx context.Context, samples []Sample, env TaskEnvironment, epochs int) (*RunResult, error) {
	if len(samples) == 0 {
		return nil, errors.New(errors.InvalidInput, "no samples to run")
	}
	if env == nil {
		return nil, errors.New(errors.InvalidInput, "environment cannot be nil")
	}
	if epochs < 1 {
		epochs = 1
	}

	log := logging.GetLogger()
	result := &RunResult{
		RunID: uuid.NewString(),
		Steps: make([]StepResult, 0, len(samples)*epochs),
	}
	var correct, failed, opsApplied, opsSkipped atomic.Int64

	for epoch := 0; epoch < epochs; epoch++ {
		if err := errors.CheckContext(ctx, "offline run"); err != nil {
			a.finalize(result, &correct, &failed, &opsApplied, &opsSkipped)
			return result, err
		}

		log.Info(ctx, "offline epoch %d/%d: %d samples, concurrency %d",
			epoch+1, epochs, len(samples), a.maxConcurrency)

		steps := make([]*StepResult, len(samples))
		p := pool.New().WithMaxGoroutines(a.maxConcurrency)
		for i, sample := range samples {
			i, sample := i, sample
			p.Go(func() {
				if err := errors.CheckContext(ctx, "offline sample"); err != nil {
					steps[i] = &StepResult{Sample: sample, Epoch: epoch, Err: err}
					return
				}
				steps[i] = a.pipe.step(ctx, sample, env, epoch)
			})
		}
		p.Wait()

		for _, step := range steps {
			result.Steps = append(result.Steps, *step)
			if step.Err != nil {
				failed.Add(1)
				log.Warn(ctx, "sample %s failed: %v", step.Sample.ID, step.Err)
				continue
			}
			if step.Evaluation.Correct {
				correct.Add(1)
			}
			opsApplied.Add(int64(step.Apply.Applied))
			opsSkipped.Add(int64(len(step.Apply.Skipped)))
		}
	}

	a.finalize(result, &correct, &failed, &opsApplied, &opsSkipped)
	log.Info(ctx, "offline run %s done: %d/%d correct, %d failed, %d ops applied",
		result.RunID, result.Stats.Correct, result.Stats.Samples, result.Stats.Failed, result.Stats.OpsApplied)
	return result, nil
}

// Playbook returns the playbook the adapter mutates.
func (a *OfflineAdapter) Playbook() *playbook.Playbook {
	return a.pipe.playbook
}

func (a *OfflineAdapter) finalize(result *RunResult, correct, failed, opsApplied, opsSkipped *atomic.Int64) {
	result.Stats = RunStats{
		Samples:    int64(len(result.Steps)),
		Correct:    correct.Load(),
		Failed:     failed.Load(),
		OpsApplied: opsApplied.Load(),
		OpsSkipped: opsSkipped.Load(),
	}
}
