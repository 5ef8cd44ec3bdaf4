package output

import (
	"bytes"
	"text/tabwriter"
)

// PlainFormatter formats output as a simple tab-separated table of
// STATUS and PATH rows. It produces plain text output suitable for
// scripting and piping. No colors or styling are applied, and no rows
// are elided.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("STATUS\tPATH\n")); err != nil {
		return err
	}

	rep := r.Report
	rows := []struct {
		status string
		paths  []string
	}{
		{"ok", rep.OK},
		{"modified", rep.Modified},
		{"missing", rep.Missing},
		{"new", rep.New},
	}
	for _, row := range rows {
		for _, p := range row.paths {
			if _, err := tw.Write([]byte(row.status + "\t" + p + "\n")); err != nil {
				return err
			}
		}
	}

	for _, e := range rep.Errors {
		if _, err := tw.Write([]byte("error\t" + e.Path + ": " + e.Message + "\n")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
