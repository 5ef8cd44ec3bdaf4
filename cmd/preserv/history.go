package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/preserv/pkg/preserv/config"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View the history of generate and verify runs.

Each run records when it happened, which archive it covered, and the
classification counts it produced.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Long:  `Display detailed information about a specific run by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	if a.hist == nil {
		printInfo("History is disabled. Enable it with history.enabled in the config.")
		return nil
	}

	records, err := a.hist.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(records) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'preserv generate <path>' to create a manifest.")
		return nil
	}

	fmt.Printf("\n%-48s  %-20s  %-8s  %s\n", "ID", "WHEN", "OP", "RESULT")
	fmt.Println(strings.Repeat("-", 100))

	for _, rec := range records {
		var result string
		switch {
		case rec.Operation == "generate":
			result = fmt.Sprintf("%d files, %d errors", rec.Counts.Processed, rec.Counts.Errors)
		case rec.Counts.Modified+rec.Counts.Missing > 0:
			result = fmt.Sprintf("%d modified, %d missing", rec.Counts.Modified, rec.Counts.Missing)
		default:
			result = fmt.Sprintf("%d ok", rec.Counts.OK)
		}

		fmt.Printf("%-48s  %-20s  %-8s  %s\n",
			truncateString(rec.ID, 48),
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Operation,
			result,
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Println("Use 'preserv history show <id>' for details on a specific run.")

	return nil
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	if a.hist == nil {
		return fmt.Errorf("history is disabled")
	}

	rec, err := a.hist.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", rec.ID)
	fmt.Printf("Timestamp:  %s\n", rec.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Operation:  %s\n", rec.Operation)
	fmt.Printf("Root:       %s\n", rec.Root)

	if rec.Operation == "generate" {
		fmt.Printf("Discovered: %d\n", rec.Counts.Discovered)
		fmt.Printf("Processed:  %d\n", rec.Counts.Processed)
	} else {
		fmt.Printf("OK:         %d\n", rec.Counts.OK)
		fmt.Printf("Modified:   %d\n", rec.Counts.Modified)
		fmt.Printf("Missing:    %d\n", rec.Counts.Missing)
		fmt.Printf("New:        %d\n", rec.Counts.New)
		if rec.Adopted > 0 {
			fmt.Printf("Adopted:    %d\n", rec.Adopted)
		}
	}
	fmt.Printf("Errors:     %d\n", rec.Counts.Errors)

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	if a.hist == nil {
		return fmt.Errorf("history is disabled")
	}

	retentionDays := a.cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	if err := a.hist.Cleanup(retentionDays); err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("History cleanup complete.")
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
