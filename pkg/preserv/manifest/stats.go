package manifest

import (
	"time"

	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

// Stats summarizes a loaded manifest.
type Stats struct {
	// Entries is the number of files the manifest records.
	Entries int `json:"entries"`

	// TotalBytes is the sum of all recorded file sizes.
	TotalBytes int64 `json:"total_bytes"`

	// LastGenerated is the most recent date_generated across entries.
	// It is the zero time when the manifest is empty.
	LastGenerated time.Time `json:"last_generated,omitzero"`
}

// ComputeStats derives summary statistics from a manifest. It is a pure
// function: no I/O beyond whatever Load already performed.
func ComputeStats(m types.Manifest) Stats {
	s := Stats{Entries: len(m)}
	for _, e := range m {
		s.TotalBytes += e.Size
		if e.Generated.After(s.LastGenerated) {
			s.LastGenerated = e.Generated
		}
	}
	return s
}
