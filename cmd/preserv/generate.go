package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/preserv/pkg/preserv/history"
)

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate a checksum manifest for an archive",
	Long: `Walk the archive tree, hash every file, and write a fresh manifest.

Any existing manifest is replaced wholesale. Files that cannot be read
are reported and left out of the manifest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	root, err := a.resolveArchiveRoot(args)
	if err != nil {
		return err
	}

	summary, err := a.eng.Generate(cmd.Context(), root)
	if err != nil {
		return err
	}

	a.recordRun(history.OpGenerate, root, history.Counts{
		Discovered: summary.Discovered,
		Processed:  summary.Processed,
		Errors:     len(summary.Errors),
	}, 0)

	printInfo("Manifest written to %s", a.store.Path())
	printInfo("  discovered: %d", summary.Discovered)
	printInfo("  processed:  %d", summary.Processed)

	if len(summary.Errors) > 0 {
		printInfo("  errors:     %d", len(summary.Errors))
		for _, e := range summary.Errors {
			printError("%s: %s", e.Path, e.Message)
		}
	}

	return nil
}
