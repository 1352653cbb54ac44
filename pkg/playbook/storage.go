package playbook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// File persists a playbook as a JSON document. A mutex guards in-process
// access; a lock file guards cross-process access on platforms that
// support it. Persistence is a caller-driven operation and is expected to
// run outside any delta application.
type File struct {
	Path string
	mu   sync.Mutex
}

// NewFile creates a file store for the given path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Save writes the playbook state atomically: the document is written to a
// temp file and renamed into place.
func (f *File) Save(p *Playbook) error {
	state := p.Snapshot()

	f.mu.Lock()
	defer f.mu.Unlock()

	lockFile, err := f.acquireFileLock(lockExclusive)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to lock playbook file")
	}
	defer f.releaseFileLock(lockFile)

	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to create playbook directory")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to encode playbook state")
	}

	tmpPath := f.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to write playbook file")
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.StorageFailed, "failed to replace playbook file")
	}
	return nil
}

// Load reads the playbook state from disk. A missing file loads as an
// empty playbook.
func (f *File) Load() (*Playbook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lockFile, err := f.acquireFileLock(lockShared)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to lock playbook file")
	}
	defer f.releaseFileLock(lockFile)

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to read playbook file")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to decode playbook file")
	}
	return FromState(&state)
}

// Exists returns true if the playbook file exists.
func (f *File) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}
