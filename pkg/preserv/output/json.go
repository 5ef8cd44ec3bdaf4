package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	OK       []string          `json:"ok"`
	Modified []string          `json:"modified"`
	Missing  []string          `json:"missing"`
	New      []string          `json:"new"`
	Errors   []types.PathError `json:"errors"`
	Meta     jsonMeta          `json:"meta"`
}

// jsonMeta represents run metadata in JSON output.
type jsonMeta struct {
	Root         string `json:"root"`
	ManifestPath string `json:"manifest_path"`
	Entries      int    `json:"entries"`
	Adopted      int    `json:"adopted,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Clean        bool   `json:"clean"`
}

// JSONFormatter formats output as a single indented JSON object.
// Every classified path is included; nothing is elided.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	rep := r.Report

	out := jsonOutput{
		OK:       emptyNotNil(rep.OK),
		Modified: emptyNotNil(rep.Modified),
		Missing:  emptyNotNil(rep.Missing),
		New:      emptyNotNil(rep.New),
		Errors:   rep.Errors,
		Meta: jsonMeta{
			Root:         r.Root,
			ManifestPath: r.ManifestPath,
			Entries:      r.Entries,
			Adopted:      r.Adopted,
			Clean:        r.Clean(),
		},
	}
	if r.Duration > 0 {
		out.Meta.Duration = r.Duration.String()
	}
	if out.Errors == nil {
		out.Errors = []types.PathError{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// emptyNotNil keeps empty buckets as [] rather than null in JSON.
func emptyNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
