package adapters

import (
	"context"
	"sync"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
	"github.com/XiaoConstantine/ace-go/pkg/roles"
)

// pipeline is the generate/evaluate/reflect/curate sequence shared by the
// offline and online adapters. Generation, evaluation and reflection may
// run concurrently across samples; curation and delta application are
// serialized behind applyMu so every batch is curated against the playbook
// state it will be applied to.
type pipeline struct {
	generator *roles.Generator
	reflector *roles.Reflector
	curator   *roles.Curator
	playbook  *playbook.Playbook

	applyMu sync.Mutex
}

func newPipeline(client llm.Client, pb *playbook.Playbook, curatorOpts ...roles.CuratorOption) *pipeline {
	return &pipeline{
		generator: roles.NewGenerator(client),
		reflector: roles.NewReflector(client),
		curator:   roles.NewCurator(client, curatorOpts...),
		playbook:  pb,
	}
}

// step runs one sample through the full loop and fills in the StepResult
// as far as it gets. The returned error is also recorded on the result.
func (p *pipeline) step(ctx context.Context, sample Sample, env TaskEnvironment, epoch int) *StepResult {
	result := &StepResult{Sample: sample, Epoch: epoch}

	gen, err := p.generator.Generate(ctx, sample.Question, p.playbook)
	if err != nil {
		result.Err = errors.WithFields(
			errors.Wrap(err, errors.Code(err), "generation failed"),
			errors.Fields{"sample_id": sample.ID})
		return result
	}
	result.Generation = gen

	eval, err := env.Evaluate(ctx, sample, gen)
	if err != nil {
		result.Err = errors.WithFields(
			errors.Wrap(err, errors.Code(err), "evaluation failed"),
			errors.Fields{"sample_id": sample.ID})
		return result
	}
	result.Evaluation = eval

	reflection, err := p.reflector.Reflect(ctx, &roles.ReflectionRequest{
		Question:     sample.Question,
		Answer:       gen.Answer,
		Reasoning:    gen.Reasoning,
		GroundTruth:  sample.GroundTruth,
		Feedback:     eval.Feedback,
		CitedBullets: gen.CitedBullets,
	})
	if err != nil {
		result.Err = errors.WithFields(
			errors.Wrap(err, errors.Code(err), "reflection failed"),
			errors.Fields{"sample_id": sample.ID})
		return result
	}
	result.Reflection = reflection

	// Curation reads the playbook to build its prompt, so it sits inside
	// the same critical section as the apply.
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	batch, err := p.curator.Curate(ctx, reflection, p.playbook)
	if err != nil {
		result.Err = errors.WithFields(
			errors.Wrap(err, errors.Code(err), "curation failed"),
			errors.Fields{"sample_id": sample.ID})
		return result
	}

	applied, err := p.playbook.ApplyDelta(ctx, batch)
	if err != nil {
		result.Err = errors.WithFields(
			errors.Wrap(err, errors.Code(err), "delta application failed"),
			errors.Fields{"sample_id": sample.ID})
		return result
	}
	result.Apply = applied

	if len(applied.Skipped) > 0 {
		logging.GetLogger().Debug(ctx, "sample %s: %d operations skipped during apply",
			sample.ID, len(applied.Skipped))
	}
	return result
}
