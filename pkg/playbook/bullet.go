// Package playbook implements the ACE playbook mutation engine: a shared
// collection of scored strategy bullets mutated exclusively through
// validated delta batches.
package playbook

import (
	"fmt"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// Tag identifies the direction of feedback recorded against a bullet.
type Tag string

const (
	TagHelpful Tag = "helpful"
	TagHarmful Tag = "harmful"
)

// Valid reports whether the tag is one of the known feedback directions.
func (t Tag) Valid() bool {
	return t == TagHelpful || t == TagHarmful
}

// Bullet is a single strategy note with a track record. Its ID is assigned
// by the owning Playbook at creation time and never changes.
type Bullet struct {
	ID           string         `json:"id"`
	Section      string         `json:"section"`
	Content      string         `json:"content"`
	HelpfulCount int            `json:"helpful_count"`
	HarmfulCount int            `json:"harmful_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RecordFeedback increments the counter matching the tag.
func (b *Bullet) RecordFeedback(tag Tag) error {
	switch tag {
	case TagHelpful:
		b.HelpfulCount++
	case TagHarmful:
		b.HarmfulCount++
	default:
		return errors.WithFields(
			errors.New(errors.InvalidInput, "unknown feedback tag"),
			errors.Fields{"tag": string(tag)},
		)
	}
	return nil
}

// TotalUses returns the total number of times this bullet has been tagged.
func (b *Bullet) TotalUses() int {
	return b.HelpfulCount + b.HarmfulCount
}

// SuccessRate returns the ratio of helpful to total tags, or 0.5 for an
// untagged bullet.
func (b *Bullet) SuccessRate() float64 {
	total := b.TotalUses()
	if total == 0 {
		return 0.5
	}
	return float64(b.HelpfulCount) / float64(total)
}

// Render formats the bullet for prompt injection.
func (b *Bullet) Render() string {
	return fmt.Sprintf("[%s] %s (+%d/-%d)", b.ID, b.Content, b.HelpfulCount, b.HarmfulCount)
}

// clone returns a deep copy so internal state never leaks to callers.
func (b *Bullet) clone() *Bullet {
	c := *b
	if b.Metadata != nil {
		c.Metadata = make(map[string]any, len(b.Metadata))
		for k, v := range b.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// mergeMetadata overlays the given mapping onto the bullet's metadata,
// allocating it on first use.
func (b *Bullet) mergeMetadata(meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	if b.Metadata == nil {
		b.Metadata = make(map[string]any, len(meta))
	}
	for k, v := range meta {
		b.Metadata[k] = v
	}
}
