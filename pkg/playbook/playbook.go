package playbook

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// Playbook owns the full bullet set. It is the single source of truth the
// roles read from and the delta application engine writes to.
//
// All exported methods take a consistent snapshot under an internal lock,
// so reads never observe a half-applied batch. Ordering between concurrent
// ApplyDelta calls is the caller's responsibility: keep at most one writer
// in flight per Playbook.
type Playbook struct {
	mu           sync.RWMutex
	bullets      map[string]*Bullet
	order        []string // bullet ids in insertion order
	sectionOrder []string // sections in first-seen order
	counters     map[string]int
	dedup        *Deduplicator
}

// New creates an empty playbook.
func New() *Playbook {
	return &Playbook{
		bullets:  make(map[string]*Bullet),
		counters: make(map[string]int),
	}
}

// SetDeduplicator installs an optional deduplication pre-check for ADD
// operations. Passing nil disables deduplication.
func (p *Playbook) SetDeduplicator(d *Deduplicator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dedup = d
}

// AddBullet allocates the next id for section, stores a new bullet and
// returns a copy of it.
func (p *Playbook) AddBullet(section, content string, metadata map[string]any) (*Bullet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.addBullet(section, content, metadata)
	if err != nil {
		return nil, err
	}
	return b.clone(), nil
}

// addBullet is the unlocked insertion path shared with the apply engine.
func (p *Playbook) addBullet(section, content string, metadata map[string]any) (*Bullet, error) {
	if strings.TrimSpace(section) == "" {
		return nil, errors.New(errors.InvalidInput, "section cannot be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New(errors.InvalidInput, "content cannot be empty")
	}

	p.counters[section]++
	b := &Bullet{
		ID:      fmt.Sprintf("%s-%05d", section, p.counters[section]),
		Section: section,
		Content: content,
	}
	b.mergeMetadata(metadata)

	if !p.hasSection(section) {
		p.sectionOrder = append(p.sectionOrder, section)
	}
	p.bullets[b.ID] = b
	p.order = append(p.order, b.ID)
	return b, nil
}

func (p *Playbook) hasSection(section string) bool {
	for _, s := range p.sectionOrder {
		if s == section {
			return true
		}
	}
	return false
}

// Get returns a copy of the bullet with the given id.
func (p *Playbook) Get(bulletID string) (*Bullet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.get(bulletID)
	if err != nil {
		return nil, err
	}
	return b.clone(), nil
}

func (p *Playbook) get(bulletID string) (*Bullet, error) {
	b, ok := p.bullets[bulletID]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.ResourceNotFound, "bullet not found"),
			errors.Fields{"bullet_id": bulletID},
		)
	}
	return b, nil
}

// TagBullet records feedback against an existing bullet. This is the same
// codepath a TAG delta operation takes.
func (p *Playbook) TagBullet(bulletID string, tag Tag) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tagBullet(bulletID, tag)
}

func (p *Playbook) tagBullet(bulletID string, tag Tag) error {
	b, err := p.get(bulletID)
	if err != nil {
		return err
	}
	return b.RecordFeedback(tag)
}

// UpdateBullet replaces the content of an existing bullet and overlays the
// given metadata. This is the same codepath an UPDATE delta operation takes.
func (p *Playbook) UpdateBullet(bulletID, content string, metadata map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateBullet(bulletID, content, metadata)
}

func (p *Playbook) updateBullet(bulletID, content string, metadata map[string]any) error {
	if strings.TrimSpace(content) == "" {
		return errors.New(errors.InvalidInput, "content cannot be empty")
	}
	b, err := p.get(bulletID)
	if err != nil {
		return err
	}
	b.Content = content
	b.mergeMetadata(metadata)
	if p.dedup != nil {
		p.dedup.invalidate(bulletID)
	}
	return nil
}

// Remove deletes the bullet with the given id. The id is never reissued:
// section counters are not decremented.
func (p *Playbook) Remove(bulletID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remove(bulletID)
}

func (p *Playbook) remove(bulletID string) error {
	if _, err := p.get(bulletID); err != nil {
		return err
	}
	delete(p.bullets, bulletID)
	for i, id := range p.order {
		if id == bulletID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	if p.dedup != nil {
		p.dedup.invalidate(bulletID)
	}
	return nil
}

// Bullets returns copies of all bullets in stable insertion order.
func (p *Playbook) Bullets() []*Bullet {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Bullet, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.bullets[id].clone())
	}
	return out
}

// Len returns the number of bullets currently in the playbook.
func (p *Playbook) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.bullets)
}

// AsPrompt renders the playbook for injection into a prompt: sections in
// first-seen order, bullets within a section in add order. An empty
// playbook renders to an empty string.
func (p *Playbook) AsPrompt() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.bullets) == 0 {
		return ""
	}

	bySection := make(map[string][]*Bullet)
	for _, id := range p.order {
		b := p.bullets[id]
		bySection[b.Section] = append(bySection[b.Section], b)
	}

	var sb strings.Builder
	first := true
	for _, section := range p.sectionOrder {
		items := bySection[section]
		if len(items) == 0 {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		fmt.Fprintf(&sb, "## %s\n", section)
		for _, b := range items {
			sb.WriteString(b.Render() + "\n")
		}
	}
	return sb.String()
}

// State is the full-fidelity serialized form of a playbook. Section
// counters are explicit rather than re-derived from bullet ids, so ids
// freed by removal are never reissued after a reload.
type State struct {
	Bullets         []Bullet       `json:"bullets"`
	SectionCounters map[string]int `json:"section_counters"`
}

// Snapshot captures the current playbook state.
func (p *Playbook) Snapshot() *State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := &State{
		Bullets:         make([]Bullet, 0, len(p.order)),
		SectionCounters: make(map[string]int, len(p.counters)),
	}
	for _, id := range p.order {
		s.Bullets = append(s.Bullets, *p.bullets[id].clone())
	}
	for k, v := range p.counters {
		s.SectionCounters[k] = v
	}
	return s
}

// FromState reconstructs a playbook from a serialized state. Subsequent
// AddBullet calls never collide with previously issued ids.
func FromState(s *State) (*Playbook, error) {
	p := New()
	for section, count := range s.SectionCounters {
		p.counters[section] = count
	}
	for i := range s.Bullets {
		b := s.Bullets[i].clone()
		if b.ID == "" || b.Section == "" {
			return nil, errors.WithFields(
				errors.New(errors.InvalidInput, "bullet missing id or section"),
				errors.Fields{"index": i},
			)
		}
		if _, exists := p.bullets[b.ID]; exists {
			return nil, errors.WithFields(
				errors.New(errors.InvalidInput, "duplicate bullet id in state"),
				errors.Fields{"bullet_id": b.ID},
			)
		}
		p.bullets[b.ID] = b
		p.order = append(p.order, b.ID)
		if !p.hasSection(b.Section) {
			p.sectionOrder = append(p.sectionOrder, b.Section)
		}
		// Guard against states persisted with stale counters.
		if seq := sequenceOf(b.ID, b.Section); seq > p.counters[b.Section] {
			p.counters[b.Section] = seq
		}
	}
	return p, nil
}

// sequenceOf extracts the numeric suffix of an id like "general-00012".
func sequenceOf(id, section string) int {
	suffix := strings.TrimPrefix(id, section+"-")
	var seq int
	if _, err := fmt.Sscanf(suffix, "%d", &seq); err != nil {
		return 0
	}
	return seq
}

// MarshalJSON serializes the playbook via its State form.
func (p *Playbook) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Snapshot())
}

// UnmarshalJSON restores the playbook from its State form, replacing any
// existing contents.
func (p *Playbook) UnmarshalJSON(data []byte) error {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, errors.InvalidInput, "failed to decode playbook state")
	}
	restored, err := FromState(&s)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.bullets = restored.bullets
	p.order = restored.order
	p.sectionOrder = restored.sectionOrder
	p.counters = restored.counters
	return nil
}
