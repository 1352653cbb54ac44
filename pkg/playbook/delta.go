package playbook

import (
	"encoding/json"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// OpType identifies a delta operation variant. The set is closed: ADD,
// TAG, UPDATE and REMOVE.
type OpType string

const (
	OpAdd    OpType = "ADD"
	OpTag    OpType = "TAG"
	OpUpdate OpType = "UPDATE"
	OpRemove OpType = "REMOVE"
)

// DeltaOperation is one proposed mutation against a playbook. The variant
// determines which fields are mandatory; construct operations through
// AddOp, TagOp, UpdateOp and RemoveOp so ill-formed values cannot be built
// by accident.
type DeltaOperation struct {
	Type     OpType         `json:"type"`
	Section  string         `json:"section,omitempty"`
	Content  string         `json:"content,omitempty"`
	BulletID string         `json:"bullet_id,omitempty"`
	Tag      Tag            `json:"tag,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddOp creates an operation that adds a new bullet to section.
func AddOp(section, content string) DeltaOperation {
	return DeltaOperation{Type: OpAdd, Section: section, Content: content}
}

// TagOp creates an operation that records feedback on an existing bullet.
func TagOp(bulletID string, tag Tag) DeltaOperation {
	return DeltaOperation{Type: OpTag, BulletID: bulletID, Tag: tag}
}

// UpdateOp creates an operation that replaces the content of an existing
// bullet.
func UpdateOp(bulletID, content string) DeltaOperation {
	return DeltaOperation{Type: OpUpdate, BulletID: bulletID, Content: content}
}

// RemoveOp creates an operation that deletes an existing bullet.
func RemoveOp(bulletID string) DeltaOperation {
	return DeltaOperation{Type: OpRemove, BulletID: bulletID}
}

// WithMetadata returns a copy of the operation carrying the given metadata
// overlay.
func (op DeltaOperation) WithMetadata(meta map[string]any) DeltaOperation {
	op.Metadata = meta
	return op
}

// Validate checks structural well-formedness: the variant is known and its
// mandatory fields are present.
func (op DeltaOperation) Validate() error {
	switch op.Type {
	case OpAdd:
		if op.Section == "" {
			return errors.New(errors.ValidationFailed, "ADD operation requires a section")
		}
		if op.Content == "" {
			return errors.New(errors.ValidationFailed, "ADD operation requires content")
		}
	case OpTag:
		if op.BulletID == "" {
			return errors.New(errors.ValidationFailed, "TAG operation requires a bullet_id")
		}
		if !op.Tag.Valid() {
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "TAG operation requires a helpful or harmful tag"),
				errors.Fields{"tag": string(op.Tag)},
			)
		}
	case OpUpdate:
		if op.BulletID == "" {
			return errors.New(errors.ValidationFailed, "UPDATE operation requires a bullet_id")
		}
		if op.Content == "" {
			return errors.New(errors.ValidationFailed, "UPDATE operation requires content")
		}
	case OpRemove:
		if op.BulletID == "" {
			return errors.New(errors.ValidationFailed, "REMOVE operation requires a bullet_id")
		}
	default:
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown operation type"),
			errors.Fields{"type": string(op.Type)},
		)
	}
	return nil
}

// UnmarshalJSON decodes and structurally validates an operation, so a
// loosely-typed JSON pipeline cannot smuggle in a malformed variant.
func (op *DeltaOperation) UnmarshalJSON(data []byte) error {
	type raw DeltaOperation
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return errors.Wrap(err, errors.InvalidInput, "failed to decode delta operation")
	}
	decoded := DeltaOperation(r)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*op = decoded
	return nil
}

// DeltaBatch is an ordered set of operations proposed by the curator.
// Reasoning is diagnostic only. Operations are applied in order, each
// resolved against the playbook state at the time the batch began applying;
// forward references to bullets created earlier in the same batch are not
// supported because assigned ids are unknown to the proposer.
type DeltaBatch struct {
	Reasoning  string           `json:"reasoning,omitempty"`
	Operations []DeltaOperation `json:"operations"`
}

// Validate checks every operation in the batch, returning the first
// structural failure annotated with its index.
func (b *DeltaBatch) Validate() error {
	for i, op := range b.Operations {
		if err := op.Validate(); err != nil {
			return errors.WithFields(err, errors.Fields{"index": i})
		}
	}
	return nil
}
