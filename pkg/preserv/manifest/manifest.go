// Package manifest persists the content manifest of an archive: a
// tabular file mapping each archive-relative path to its recorded
// checksum, size, and modification time.
//
// The backing format is CSV with a header row and the columns
// file_path, checksum, size, modified_time, date_generated. An absent
// manifest file loads as an empty manifest; unparseable rows are
// dropped with a logged warning rather than failing the whole load.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/preserv/pkg/preserv/logging"
	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

// logger is the package-level logger for manifest operations.
var logger = logging.Get("manifest")

// columns is the fixed header of the manifest file.
var columns = []string{"file_path", "checksum", "size", "modified_time", "date_generated"}

// ErrCorrupt indicates the manifest file exists but could not be parsed
// at all. Loads degrade to an empty manifest so callers can proceed.
var ErrCorrupt = errors.New("manifest corrupt")

// Store reads and writes a manifest file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the given manifest path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("manifest path cannot be empty")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the manifest file is present on disk.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// IsArtifact reports whether path is the manifest file itself or one of
// the store's temporary files alongside it. A sibling whose name merely
// extends the manifest's is not an artifact.
func (s *Store) IsArtifact(path string) bool {
	if path == s.path {
		return true
	}
	return filepath.Dir(path) == filepath.Dir(s.path) &&
		strings.HasPrefix(filepath.Base(path), ".manifest-")
}

// Load reads the persisted manifest. A missing file is the normal
// "not yet generated" state and returns an empty manifest with no
// error. A file that cannot be parsed at all returns an empty manifest
// together with ErrCorrupt; rows that fail to parse individually are
// skipped with a warning. A read failure partway through returns the
// rows loaded so far together with ErrCorrupt.
func (s *Store) Load() (types.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Manifest{}, nil
		}
		return types.Manifest{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer f.Close()

	return s.decode(f)
}

// decode parses manifest rows from src. Malformed rows are skipped
// individually; an underlying read failure returns the rows parsed so
// far together with ErrCorrupt, since the reader cannot advance past it.
func (s *Store) decode(src io.Reader) (types.Manifest, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1 // row length is validated per record

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return types.Manifest{}, nil
		}
		return types.Manifest{}, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}
	if len(header) != len(columns) || header[0] != columns[0] {
		return types.Manifest{}, fmt.Errorf("%w: unexpected header %v", ErrCorrupt, header)
	}

	m := types.Manifest{}
	skipped := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// Malformed CSV row; the reader recovers at the next record.
				logger.Warn("skipping malformed manifest row", "error", err)
				skipped++
				continue
			}
			// Read failure, not row damage: retrying would see the same
			// error forever. Surface what was parsed so far.
			return m, fmt.Errorf("%w: reading rows: %v", ErrCorrupt, err)
		}

		entry, err := parseRecord(record)
		if err != nil {
			logger.Warn("skipping unparseable manifest row", "error", err)
			skipped++
			continue
		}
		m[entry.Path] = entry
	}

	if skipped > 0 {
		logger.Warn("manifest loaded with rows dropped", "path", s.path, "dropped", skipped, "loaded", len(m))
	}

	return m, nil
}

// Save writes the full manifest, replacing any prior content. The write
// goes to a temp file in the same directory which is then renamed over
// the manifest path, so a crash mid-write never leaves a half-written
// manifest where the next Load would find it.
func (s *Store) Save(m types.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range m.Paths() {
		if err := m[path].Validate(); err != nil {
			return fmt.Errorf("refusing to persist entry %s: %w", path, err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath) // no-op after successful rename
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing manifest header: %w", err)
	}

	for _, path := range m.Paths() {
		e := m[path]
		record := []string{
			e.Path,
			e.Checksum,
			strconv.FormatInt(e.Size, 10),
			strconv.FormatFloat(e.ModTime, 'f', -1, 64),
			e.Generated.Format(time.RFC3339Nano),
		}
		if err := w.Write(record); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("writing manifest row %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flushing manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp manifest: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}

	logger.Debug("manifest saved", "path", s.path, "entries", len(m))
	return nil
}

// parseRecord converts one CSV row into a validated entry.
func parseRecord(record []string) (types.Entry, error) {
	if len(record) != len(columns) {
		return types.Entry{}, fmt.Errorf("expected %d fields, got %d", len(columns), len(record))
	}

	size, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return types.Entry{}, fmt.Errorf("parsing size for %s: %w", record[0], err)
	}

	modTime, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return types.Entry{}, fmt.Errorf("parsing modified_time for %s: %w", record[0], err)
	}

	generated, err := time.Parse(time.RFC3339Nano, record[4])
	if err != nil {
		return types.Entry{}, fmt.Errorf("parsing date_generated for %s: %w", record[0], err)
	}

	entry := types.Entry{
		Path:      record[0],
		Checksum:  record[1],
		Size:      size,
		ModTime:   modTime,
		Generated: generated,
	}
	if err := entry.Validate(); err != nil {
		return types.Entry{}, err
	}

	return entry, nil
}
