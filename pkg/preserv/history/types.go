// Package history records preserv runs to the filesystem so operators
// can audit when manifests were generated and what verification found.
package history

import "time"

// Operation represents the type of recorded run.
type Operation string

const (
	// OpGenerate represents a manifest generation run.
	OpGenerate Operation = "generate"
	// OpVerify represents a verification run.
	OpVerify Operation = "verify"
)

// Counts summarizes the outcome of a run. Generation runs fill
// Discovered/Processed; verification runs fill the classification
// fields.
type Counts struct {
	Discovered int `json:"discovered,omitempty"`
	Processed  int `json:"processed,omitempty"`
	OK         int `json:"ok,omitempty"`
	Modified   int `json:"modified,omitempty"`
	Missing    int `json:"missing,omitempty"`
	New        int `json:"new,omitempty"`
	Errors     int `json:"errors,omitempty"`
}

// Record is a single run-history record.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`
	Root      string    `json:"root"`
	Adopted   int       `json:"adopted,omitempty"`
	Counts    Counts    `json:"counts"`
}
