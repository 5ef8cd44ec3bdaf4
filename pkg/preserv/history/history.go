package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log manages run-history records on the filesystem, one JSON file per
// record.
type Log struct {
	dir string
	mu  sync.Mutex
}

// New creates a Log with the given directory. The directory is not
// created until EnsureDir is called.
func New(dir string) (*Log, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Log{dir: dir}, nil
}

// EnsureDir creates the history directory if it does not exist.
func (l *Log) EnsureDir() error {
	return os.MkdirAll(l.dir, 0o755)
}

// Append creates and persists a record for the given run.
func (l *Log) Append(op Operation, root string, counts Counts, adopted int) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := &Record{
		ID:        fmt.Sprintf("%s-%s", op, uuid.NewString()),
		Timestamp: time.Now().UTC(),
		Operation: op,
		Root:      root,
		Adopted:   adopted,
		Counts:    counts,
	}

	if err := l.writeRecord(rec); err != nil {
		return nil, fmt.Errorf("failed to write history record: %w", err)
	}

	return rec, nil
}

// writeRecord writes a record to a JSON file in the history directory.
func (l *Log) writeRecord(rec *Record) error {
	filePath := filepath.Join(l.dir, rec.ID+".json")

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Write atomically using a temp file and rename
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// List returns all records sorted by timestamp descending (newest
// first). If limit is 0 or negative, all records are returned.
func (l *Log) List(limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	records := []Record{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		rec, err := l.readRecordFile(f.Name())
		if err != nil {
			// Skip files that can't be parsed
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Get retrieves a specific record by ID.
func (l *Log) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("record ID cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.readRecordFile(id + ".json")
	if err != nil {
		return nil, fmt.Errorf("record not found: %s", id)
	}
	return rec, nil
}

// readRecordFile reads and parses a record from a JSON file.
func (l *Log) readRecordFile(filename string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// Cleanup removes records older than retentionDays.
func (l *Log) Cleanup(retentionDays int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history directory: %w", err)
	}

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		rec, err := l.readRecordFile(f.Name())
		if err != nil {
			continue
		}

		if rec.Timestamp.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.dir, f.Name())); err != nil {
				// Keep cleaning the rest
				continue
			}
		}
	}

	return nil
}
