package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

// maxListed caps how many paths a section prints before eliding the
// rest behind an "and N more" line.
const maxListed = 10

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	rep := r.Report

	w.WriteString(f.formatSection("Modified", ErrorStyle, rep.Modified))
	w.WriteString(f.formatSection("Missing", WarningStyle, rep.Missing))
	w.WriteString(f.formatSection("New", TitleStyle, rep.New))

	if len(rep.Errors) > 0 {
		w.WriteString(f.formatErrors(rep.Errors))
	}

	w.WriteString(f.formatFooter(r))
	return nil
}

// formatHeader builds the header box with run metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	rootLabel := LabelStyle.Render("Root:")
	rootValue := ValueStyle.Render(r.Root)
	lines = append(lines, fmt.Sprintf("%s %s", rootLabel, rootValue))

	var infoParts []string

	entriesLabel := LabelStyle.Render("Entries:")
	entriesValue := ValueStyle.Render(fmt.Sprintf("%d", r.Entries))
	infoParts = append(infoParts, fmt.Sprintf("%s %s", entriesLabel, entriesValue))

	if r.Duration > 0 {
		tookLabel := LabelStyle.Render("Took:")
		tookValue := MutedStyle.Render(formatDuration(r.Duration))
		infoParts = append(infoParts, fmt.Sprintf("%s %s", tookLabel, tookValue))
	}

	if r.Adopted > 0 {
		infoParts = append(infoParts, SuccessStyle.Render(fmt.Sprintf("adopted: %d", r.Adopted)))
	}

	lines = append(lines, strings.Join(infoParts, "  "))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatSection renders one classification bucket as a titled path
// list, truncated at maxListed entries. Empty buckets render nothing.
func (f *PrettyFormatter) formatSection(title string, style lipgloss.Style, paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(style.Bold(true).Render(fmt.Sprintf("%s (%d):", title, len(paths))))
	sb.WriteString("\n")

	shown := paths
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, p := range shown {
		sb.WriteString("  ")
		sb.WriteString(PathStyle.Render(p))
		sb.WriteString("\n")
	}
	if rest := len(paths) - len(shown); rest > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", rest)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	return sb.String()
}

// formatErrors renders the per-path error list with messages.
func (f *PrettyFormatter) formatErrors(errs []types.PathError) string {
	var sb strings.Builder
	sb.WriteString(ErrorStyle.Bold(true).Render(fmt.Sprintf("Errors (%d):", len(errs))))
	sb.WriteString("\n")

	shown := errs
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, e := range shown {
		sb.WriteString("  ")
		sb.WriteString(PathStyle.Render(e.Path))
		sb.WriteString(MutedStyle.Render(": " + e.Message))
		sb.WriteString("\n")
	}
	if rest := len(errs) - len(shown); rest > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", rest)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	return sb.String()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatFooter builds the footer box with the overall verdict.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	rep := r.Report

	var parts []string

	okLabel := LabelStyle.Render("OK:")
	okValue := SuccessStyle.Render(fmt.Sprintf("%d", len(rep.OK)))
	parts = append(parts, fmt.Sprintf("%s %s", okLabel, okValue))

	if r.Clean() {
		parts = append(parts, SuccessStyle.Bold(true).Render("archive clean"))
	} else {
		parts = append(parts, ErrorStyle.Bold(true).Render(rep.Summary()))
	}

	return FooterBox.Render(strings.Join(parts, "  "))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
