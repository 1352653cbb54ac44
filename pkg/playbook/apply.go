package playbook

import (
	"context"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

// SkippedOp records one operation that could not be applied.
type SkippedOp struct {
	Index    int    `json:"index"`
	Type     OpType `json:"type"`
	BulletID string `json:"bullet_id,omitempty"`
	Reason   string `json:"reason"`
}

// ApplyResult summarizes what a delta batch did to the playbook, enough
// for a caller to audit the outcome without re-reading the whole playbook.
type ApplyResult struct {
	Applied int         `json:"applied"`
	Skipped []SkippedOp `json:"skipped,omitempty"`
	Created []string    `json:"created,omitempty"`
	Merged  []string    `json:"merged,omitempty"`
	Removed []string    `json:"removed,omitempty"`
}

// ApplyDelta validates and applies a delta batch.
//
// Structural validation is all-or-nothing: if any operation is malformed
// the whole batch is rejected with a ValidationFailed error before any
// mutation occurs. A malformed batch indicates an upstream protocol bug
// and must never partially apply.
//
// Referential failures are expected in a system where the curator's view
// of the playbook may be slightly stale: a TAG, UPDATE or REMOVE naming a
// missing bullet is skipped, reported in the result, and the rest of the
// batch continues.
func (p *Playbook) ApplyDelta(ctx context.Context, batch *DeltaBatch) (*ApplyResult, error) {
	if batch == nil {
		return nil, errors.New(errors.InvalidInput, "delta batch cannot be nil")
	}
	if err := errors.CheckContext(ctx, "apply delta"); err != nil {
		return nil, err
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	log := logging.GetLogger()
	result := &ApplyResult{}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, op := range batch.Operations {
		switch op.Type {
		case OpAdd:
			p.applyAdd(ctx, i, op, result)

		case OpTag:
			if err := p.tagBullet(op.BulletID, op.Tag); err != nil {
				p.skip(log, ctx, result, i, op, err)
				continue
			}
			if b, err := p.get(op.BulletID); err == nil {
				b.mergeMetadata(op.Metadata)
			}
			result.Applied++

		case OpUpdate:
			if err := p.updateBullet(op.BulletID, op.Content, op.Metadata); err != nil {
				p.skip(log, ctx, result, i, op, err)
				continue
			}
			result.Applied++

		case OpRemove:
			if err := p.remove(op.BulletID); err != nil {
				p.skip(log, ctx, result, i, op, err)
				continue
			}
			result.Removed = append(result.Removed, op.BulletID)
			result.Applied++
		}
	}

	return result, nil
}

// applyAdd commits an ADD, routing through the dedup pre-check when one is
// installed. A dedup merge resolves the ADD without issuing a new id.
func (p *Playbook) applyAdd(ctx context.Context, index int, op DeltaOperation, result *ApplyResult) {
	if p.dedup != nil {
		if match := p.dedup.match(ctx, p.eligibleFor(op.Section), op.Content); match != nil {
			match.HelpfulCount++
			occurrences := 1
			// JSON reloads decode numbers as float64.
			switch n := match.Metadata["occurrences"].(type) {
			case int:
				occurrences = n
			case float64:
				occurrences = int(n)
			}
			match.mergeMetadata(map[string]any{"occurrences": occurrences + 1})
			match.mergeMetadata(op.Metadata)
			result.Merged = append(result.Merged, match.ID)
			result.Applied++
			return
		}
	}

	b, err := p.addBullet(op.Section, op.Content, op.Metadata)
	if err != nil {
		// Structural validation guarantees section and content are
		// non-empty, so this only fires on whitespace-only fields.
		result.Skipped = append(result.Skipped, SkippedOp{
			Index:  index,
			Type:   op.Type,
			Reason: err.Error(),
		})
		return
	}
	result.Created = append(result.Created, b.ID)
	result.Applied++
}

// eligibleFor returns the bullets a dedup candidate is compared against,
// in insertion order.
func (p *Playbook) eligibleFor(section string) []*Bullet {
	var out []*Bullet
	for _, id := range p.order {
		b := p.bullets[id]
		if p.dedup.config.WithinSectionOnly && b.Section != section {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (p *Playbook) skip(log *logging.Logger, ctx context.Context, result *ApplyResult, index int, op DeltaOperation, err error) {
	log.Warn(ctx, "skipping %s operation %d: %v", op.Type, index, err)
	result.Skipped = append(result.Skipped, SkippedOp{
		Index:    index,
		Type:     op.Type,
		BulletID: op.BulletID,
		Reason:   err.Error(),
	})
}
