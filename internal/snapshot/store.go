// Package snapshot persists the pipeline state file.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newsdigest/digest-pipeline/internal/digest"
)

// Store reads and writes the snapshot file. The file is read exactly once at
// the start of a run and written exactly once at the end; single-writer,
// non-overlapping runs are an external precondition (a scheduler must not
// start a run while one is in flight).
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the previous snapshot. A missing file is a normal cold start
// and returns an empty snapshot with no error. A file that cannot be parsed
// returns an error alongside the empty snapshot; callers log it and proceed
// from cold so a corrupt snapshot never blocks future runs.
func (s *Store) Load() (digest.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return digest.Snapshot{}, nil
		}
		return digest.Snapshot{}, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var snap digest.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return digest.Snapshot{}, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return snap, nil
}

// Save writes the snapshot atomically: marshal, write to a temp file in the
// same directory, then rename over the target. A crash mid-write leaves the
// previous snapshot intact and parseable.
func (s *Store) Save(snap digest.Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
