package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the durable record carried across agent restarts. The restart
// counter is owned by the recovery controller; everyone else treats a
// loaded State as read-only.
type State struct {
	RestartAttempts int       `json:"restart_attempts"`
	LastCheck       time.Time `json:"last_check"`
	LastMemoryMB    float64   `json:"last_memory_mb"`
	MemoryHistory   []float64 `json:"memory_history"`
	ConfigHash      string    `json:"config_hash"`
}

// Store persists State as owner-only JSON, rewritten atomically so an
// external reader never observes a partial file.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

// Load reads the state file. A missing file yields a zero State; any other
// failure is surfaced so a corrupt file is noticed rather than silently
// reset.
func (s *Store) Load() (State, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read state %s: %w", s.path, err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return st, nil
}

// Save rewrites the state file atomically with owner-only permissions.
func (s *Store) Save(st State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return WriteFileAtomic(s.path, b, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place. Rename is atomic on POSIX filesystems, so pollers
// of the same path always see a complete file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
