package adapters

import (
	"context"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
	"github.com/XiaoConstantine/ace-go/pkg/roles"
)

// OnlineAdapter folds samples into the playbook one at a time, applying
// each sample's delta before the next sample is seen. Use it at serving
// time where the playbook should keep learning from live feedback.
type OnlineAdapter struct {
	pipe *pipeline
}

// NewOnlineAdapter creates an adapter that mutates pb in place.
func NewOnlineAdapter(client llm.Client, pb *playbook.Playbook, curatorOpts ...roles.CuratorOption) *OnlineAdapter {
	return &OnlineAdapter{pipe: newPipeline(client, pb, curatorOpts...)}
}

// Step runs one sample through the full loop. The returned StepResult
// always reports how far the sample got; err mirrors StepResult.Err.
func (a *OnlineAdapter) Step(ctx context.Context, sample Sample, env TaskEnvironment) (*StepResult, error) {
	if env == nil {
		return nil, errors.New(errors.InvalidInput, "environment cannot be nil")
	}
	if err := errors.CheckContext(ctx, "online step"); err != nil {
		return nil, err
	}

	result := a.pipe.step(ctx, sample, env, 0)
	return result, result.Err
}

// Playbook returns the playbook the adapter mutates.
func (a *OnlineAdapter) Playbook() *playbook.Playbook {
	return a.pipe.playbook
}
