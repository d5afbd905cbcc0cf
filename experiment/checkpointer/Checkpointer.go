// Package checkpointer persists and restores training state so that
// interrupted runs can resume from their last saved episode instead of
// restarting. A checkpoint carries the network parameters and the
// counters the training loop needs to pick up mid-run; the replay
// memory is intentionally not persisted and is refilled on resume.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint is a snapshot of training state after a completed episode.
type Checkpoint struct {
	// Step is the agent's total environment step counter.
	Step int

	// Episode is the number of episodes completed so far.
	Episode int

	// Params are the flattened online network parameters.
	Params []float64

	// BestMetric is the best mean delay seen so far, or -1 when no
	// completed episode has reported one yet.
	BestMetric float64
}

// Store saves and restores checkpoints for a single run.
type Store interface {
	// Save persists a checkpoint keyed by its episode number.
	Save(c Checkpoint) error

	// LoadLatest returns the checkpoint with the highest episode
	// number, or ErrNoCheckpoint when none exist.
	LoadLatest() (Checkpoint, error)
}

// FileStore keeps gob-encoded checkpoints on disk, one file per saved
// episode, under <root>/<runID>/.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at root for the given run,
// creating the run's directory if needed.
func NewFileStore(root, runID string) (*FileStore, error) {
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "newfilestore", Err: err}
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory checkpoints are written to.
func (f *FileStore) Dir() string { return f.dir }

// Save implements the Store interface
func (f *FileStore) Save(c Checkpoint) error {
	path := filepath.Join(f.dir, fmt.Sprintf("checkpoint_%d.bin", c.Episode))
	file, err := os.Create(path)
	if err != nil {
		return &Error{Op: "save", Err: err}
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c); err != nil {
		return &Error{Op: "save", Err: err}
	}
	return nil
}

// LoadLatest implements the Store interface
func (f *FileStore) LoadLatest() (Checkpoint, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return Checkpoint{}, &Error{Op: "loadlatest", Err: err}
	}

	latest := -1
	for _, entry := range entries {
		var episode int
		n, err := fmt.Sscanf(entry.Name(), "checkpoint_%d.bin", &episode)
		if err != nil || n != 1 {
			continue
		}
		if episode > latest {
			latest = episode
		}
	}
	if latest < 0 {
		return Checkpoint{}, &Error{Op: "loadlatest", Err: ErrNoCheckpoint}
	}

	path := filepath.Join(f.dir, fmt.Sprintf("checkpoint_%d.bin", latest))
	file, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, &Error{Op: "loadlatest", Err: err}
	}
	defer file.Close()

	var c Checkpoint
	if err := gob.NewDecoder(file).Decode(&c); err != nil {
		return Checkpoint{}, &Error{Op: "loadlatest", Err: err}
	}
	return c, nil
}
