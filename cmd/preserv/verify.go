package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/preserv/pkg/preserv/engine"
	"github.com/jamesainslie/preserv/pkg/preserv/history"
	"github.com/jamesainslie/preserv/pkg/preserv/output"
)

var verifyAdopt bool

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify an archive against its manifest",
	Long: `Check every file recorded in the manifest against the live tree and
report files that are ok, modified, missing, or new.

Files whose size and modification time are unchanged are trusted
without re-hashing; anything that drifted is settled by its checksum.

With --adopt-new, new files are hashed and added to the manifest. Adoption
never removes entries for missing files; regenerate the manifest to
drop them.

The exit code is non-zero when any file is modified or missing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAdopt, "adopt-new", false, "add new files to the manifest")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	root, err := a.resolveArchiveRoot(args)
	if err != nil {
		return err
	}

	started := time.Now()
	report, err := a.eng.Verify(cmd.Context(), root, verifyAdopt)
	if err != nil {
		if errors.Is(err, engine.ErrManifestNotFound) {
			return fmt.Errorf("no manifest at %s, run 'preserv generate' first", a.store.Path())
		}
		return err
	}

	adopted := 0
	if verifyAdopt {
		adopted = len(report.New)
	}

	a.recordRun(history.OpVerify, root, history.Counts{
		OK:       len(report.OK),
		Modified: len(report.Modified),
		Missing:  len(report.Missing),
		New:      len(report.New),
		Errors:   len(report.Errors),
	}, adopted)

	entries := len(report.OK) + len(report.Modified) + len(report.Missing) + len(report.Errors)
	result := &output.Result{
		Report:       report,
		Root:         root,
		ManifestPath: a.store.Path(),
		Entries:      entries,
		Adopted:      adopted,
		Duration:     time.Since(started),
	}

	if err := render(result); err != nil {
		return err
	}

	if len(report.Modified) > 0 || len(report.Missing) > 0 {
		return fmt.Errorf("archive drift: %s", report.Summary())
	}

	return nil
}
