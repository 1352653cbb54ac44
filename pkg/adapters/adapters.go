// Package adapters connects the generator/reflector/curator roles to task
// environments. The offline adapter grows a playbook from a labeled sample
// set across epochs; the online adapter folds one sample at a time into the
// playbook at serving time.
package adapters

import (
	"context"

	"github.com/XiaoConstantine/ace-go/pkg/playbook"
	"github.com/XiaoConstantine/ace-go/pkg/roles"
	"github.com/google/uuid"
)

// Sample is one task instance to learn from.
type Sample struct {
	ID          string         `json:"id"`
	Question    string         `json:"question"`
	GroundTruth string         `json:"ground_truth,omitempty"`
	Context     string         `json:"context,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewSample creates a sample with a fresh id.
func NewSample(question, groundTruth string) Sample {
	return Sample{
		ID:          uuid.NewString(),
		Question:    question,
		GroundTruth: groundTruth,
	}
}

// EnvironmentResult is the environment's verdict on one answer.
type EnvironmentResult struct {
	Correct  bool
	Score    float64
	Feedback string
}

// TaskEnvironment scores generator answers. Implementations must be safe
// for concurrent use; the offline adapter evaluates samples in parallel.
type TaskEnvironment interface {
	Evaluate(ctx context.Context, sample Sample, answer *roles.GeneratorOutput) (*EnvironmentResult, error)
}

// StepResult captures everything that happened for one sample in one epoch.
// Err is set when the sample failed partway; the surviving fields tell how
// far it got.
type StepResult struct {
	Sample     Sample
	Epoch      int
	Generation *roles.GeneratorOutput
	Evaluation *EnvironmentResult
	Reflection *roles.ReflectorOutput
	Apply      *playbook.ApplyResult
	Err        error
}

// RunStats aggregates counters across a run.
type RunStats struct {
	Samples    int64
	Correct    int64
	Failed     int64
	OpsApplied int64
	OpsSkipped int64
}

// RunResult is the outcome of an offline run.
type RunResult struct {
	RunID string
	Steps []StepResult
	Stats RunStats
}
