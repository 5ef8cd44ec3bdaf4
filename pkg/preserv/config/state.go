package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// State store keys the engine reads and writes.
const (
	KeyArchivePath = "archive_path"
	KeyLastRun     = "last_run"
)

// Store is the persisted key-value state the engine updates as a side
// effect of generate and verify runs: the archive path it last operated
// on and when. It is injected into the engine rather than reached for
// as a global.
type Store struct {
	v    *viper.Viper
	path string
}

// OpenStore opens the state store at path, creating an empty store if
// the file does not exist. An empty path uses DefaultStatePath().
func OpenStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultStatePath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		// Absent state file is the first-run case.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading state file: %w", err)
		}
	}

	return &Store{v: v, path: path}, nil
}

// Get returns the string value for key, or "" when unset.
func (s *Store) Get(key string) string {
	return s.v.GetString(key)
}

// Set records a value for key in memory. Call Save to persist.
func (s *Store) Set(key, value string) {
	s.v.Set(key, value)
}

// ArchivePath returns the archive root of the most recent run.
func (s *Store) ArchivePath() string {
	return s.Get(KeyArchivePath)
}

// SetArchivePath records the archive root of the current run.
func (s *Store) SetArchivePath(path string) {
	s.Set(KeyArchivePath, path)
}

// LastRun returns when the engine last completed a run, and whether a
// run has been recorded at all.
func (s *Store) LastRun() (time.Time, bool) {
	raw := s.Get(KeyLastRun)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetLastRun records the completion time of the current run.
func (s *Store) SetLastRun(t time.Time) {
	s.Set(KeyLastRun, t.Format(time.RFC3339Nano))
}

// Save persists the store to its backing file.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}
