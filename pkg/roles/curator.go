package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

const defaultMaxOpsPerBatch = 10

// Curator turns a reflection into a delta batch for the playbook engine.
type Curator struct {
	client llm.Client
	maxOps int
}

// CuratorOption configures a Curator.
type CuratorOption func(*Curator)

// WithMaxOpsPerBatch caps the number of operations kept per batch.
func WithMaxOpsPerBatch(n int) CuratorOption {
	return func(c *Curator) {
		if n > 0 {
			c.maxOps = n
		}
	}
}

// NewCurator creates a curator backed by the given client.
func NewCurator(client llm.Client, opts ...CuratorOption) *Curator {
	c := &Curator{client: client, maxOps: defaultMaxOpsPerBatch}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rawBatch decodes operations individually so one malformed entry does not
// discard the rest of an otherwise usable batch.
type rawBatch struct {
	Reasoning  string            `json:"reasoning"`
	Operations []json.RawMessage `json:"operations"`
}

// Curate asks the LLM for playbook edits and builds a validated delta
// batch. Ill-formed operations in the response are dropped with a warning;
// the structural guarantees of the resulting batch come from the
// playbook package's construction-time validation.
func (c *Curator) Curate(ctx context.Context, reflection *ReflectorOutput, pb *playbook.Playbook) (*playbook.DeltaBatch, error) {
	if reflection == nil {
		return nil, errors.New(errors.InvalidInput, "reflection cannot be nil")
	}

	reflectionJSON, err := json.MarshalIndent(reflection, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to encode reflection")
	}

	current := pb.AsPrompt()
	if current == "" {
		current = "(empty)"
	}

	prompt := fmt.Sprintf(curatorPromptTemplate, string(reflectionJSON), current, c.maxOps)

	response, err := c.client.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, errors.LLMGenerationFailed, "curator call failed")
	}

	var raw rawBatch
	if err := llm.ExtractJSON(response, &raw); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "curator returned unparseable output")
	}

	log := logging.GetLogger()
	batch := &playbook.DeltaBatch{Reasoning: raw.Reasoning}
	for i, rawOp := range raw.Operations {
		if len(batch.Operations) >= c.maxOps {
			log.Warn(ctx, "curator proposed more than %d operations, truncating", c.maxOps)
			break
		}
		var op playbook.DeltaOperation
		if err := json.Unmarshal(rawOp, &op); err != nil {
			log.Warn(ctx, "dropping malformed curator operation %d: %v", i, err)
			continue
		}
		batch.Operations = append(batch.Operations, op)
	}

	return batch, nil
}
