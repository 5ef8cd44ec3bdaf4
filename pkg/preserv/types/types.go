// Package types provides core data types for the preserv fixity checker.
// It includes the manifest entry model, the verification report, and
// utility functions for formatting sizes and timestamps.
package types

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// Entry records the fixity state of a single archived file at the time
// a manifest was generated.
type Entry struct {
	// Path is the POSIX-style path of the file relative to the archive root.
	// It is the unique key of the entry within a manifest.
	Path string `json:"path"`

	// Checksum is the SHA-256 digest of the file content as a
	// 64-character lowercase hex string.
	Checksum string `json:"checksum"`

	// Size is the file size in bytes at the time of recording.
	Size int64 `json:"size"`

	// ModTime is the filesystem modification time at the time of
	// recording, as fractional seconds since the Unix epoch.
	ModTime float64 `json:"modified_time"`

	// Generated is when this entry was written to the manifest.
	Generated time.Time `json:"date_generated"`
}

// checksumPattern matches a well-formed SHA-256 hex digest.
var checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ErrInvalidChecksum indicates a checksum that is not a 64-character
// lowercase hex string.
var ErrInvalidChecksum = errors.New("invalid checksum")

// ErrNegativeSize indicates a negative file size.
var ErrNegativeSize = errors.New("size cannot be negative")

// Validate checks that the entry is well-formed enough to persist.
// An entry with an empty checksum must never reach the manifest; the
// digest layer reports failures as errors instead of sentinel values.
func (e Entry) Validate() error {
	if e.Path == "" {
		return errors.New("entry path cannot be empty")
	}
	if !checksumPattern.MatchString(e.Checksum) {
		return fmt.Errorf("%w: %q", ErrInvalidChecksum, e.Checksum)
	}
	if e.Size < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSize, e.Size)
	}
	return nil
}

// Manifest maps archive-relative file paths to their recorded entries.
// It is the single source of truth for what the archive should contain.
type Manifest map[string]Entry

// Paths returns all manifest keys in sorted order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a shallow copy of the manifest.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for p, e := range m {
		out[p] = e
	}
	return out
}

// Classification is the verdict for a single path after verification.
type Classification int

// Classification values. A manifest-known path receives exactly one of
// OK, Modified, Missing, or Failed; a path unknown to the manifest is New.
const (
	// OK means the file content is confirmed unchanged.
	OK Classification = iota

	// Modified means the recomputed digest differs from the recorded one.
	Modified

	// Missing means a manifest path is absent from the live tree.
	Missing

	// New means a live-tree path is absent from the manifest.
	New

	// Failed means the path could not be classified due to an I/O error.
	Failed
)

// String returns the lowercase name of the classification.
func (c Classification) String() string {
	switch c {
	case OK:
		return "ok"
	case Modified:
		return "modified"
	case Missing:
		return "missing"
	case New:
		return "new"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// PathError pairs a path with the message of the error that prevented
// its classification.
type PathError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Report is the aggregated outcome of one verification run. Each bucket
// holds archive-relative paths; buckets are sorted before the report is
// returned so output is reproducible.
type Report struct {
	// OK lists paths whose content is confirmed unchanged, either
	// because size and mtime matched the record or because a recomputed
	// digest matched despite metadata drift.
	OK []string `json:"ok"`

	// Modified lists paths whose recomputed digest differs from the
	// recorded checksum.
	Modified []string `json:"modified"`

	// Missing lists manifest paths absent from the live tree.
	Missing []string `json:"missing"`

	// New lists live-tree paths absent from the manifest.
	New []string `json:"new"`

	// Errors lists paths that could not be classified.
	Errors []PathError `json:"errors,omitempty"`
}

// Sort orders every bucket lexicographically.
func (r *Report) Sort() {
	sort.Strings(r.OK)
	sort.Strings(r.Modified)
	sort.Strings(r.Missing)
	sort.Strings(r.New)
	sort.Slice(r.Errors, func(i, j int) bool {
		return r.Errors[i].Path < r.Errors[j].Path
	})
}

// Clean reports whether the archive matches its manifest: no modified,
// missing, or errored paths. New files alone do not make a run unclean.
func (r *Report) Clean() bool {
	return len(r.Modified) == 0 && len(r.Missing) == 0 && len(r.Errors) == 0
}

// Summary returns a one-line overview of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("ok: %d, modified: %d, missing: %d, new: %d, errors: %d",
		len(r.OK), len(r.Modified), len(r.Missing), len(r.New), len(r.Errors))
}

// GenerateSummary describes one manifest generation pass.
type GenerateSummary struct {
	// Discovered is the number of files the walker found under the root.
	Discovered int `json:"discovered"`

	// Processed is the number of files successfully hashed and recorded.
	// Paths whose digest failed are discovered but not processed.
	Processed int `json:"processed"`

	// Errors lists paths that were skipped because they could not be
	// hashed or stat-ed.
	Errors []PathError `json:"errors,omitempty"`
}

// ModTimeOf converts a file's modification time to the fractional
// epoch-seconds representation stored in manifest entries. Generation
// and verification both go through this helper so equality comparisons
// between recorded and live values are exact.
func ModTimeOf(info fs.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / float64(time.Second)
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
