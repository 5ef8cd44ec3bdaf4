package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/preserv/pkg/preserv/history"
	"github.com/jamesainslie/preserv/pkg/preserv/logging"
	"github.com/jamesainslie/preserv/pkg/preserv/output"
	"github.com/jamesainslie/preserv/pkg/preserv/walker"
	"github.com/jamesainslie/preserv/pkg/preserv/watcher"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-verify the archive when it changes",
	Long: `Watch the archive tree and run a verification whenever files change.

Bursts of filesystem events are coalesced; verification runs once the
tree has been quiet for the debounce interval. Press Ctrl-C to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before re-verifying")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	root, err := a.resolveArchiveRoot(args)
	if err != nil {
		return err
	}
	absRoot, err := walker.ResolveRoot(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(absRoot); err != nil {
		return err
	}

	log := logging.Get("watcher")

	verify := func() {
		report, err := a.eng.Verify(ctx, absRoot, false)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			printError("verification failed: %v", err)
			return
		}

		a.recordRun(history.OpVerify, absRoot, history.Counts{
			OK:       len(report.OK),
			Modified: len(report.Modified),
			Missing:  len(report.Missing),
			New:      len(report.New),
			Errors:   len(report.Errors),
		}, 0)

		if report.Clean() {
			printInfo("[%s] archive clean", time.Now().Format("15:04:05"))
			return
		}

		printInfo("[%s] %s", time.Now().Format("15:04:05"), report.Summary())
		result := &output.Result{
			Report:       report,
			Root:         absRoot,
			ManifestPath: a.store.Path(),
		}
		if err := render(result); err != nil {
			printError("%v", err)
		}
	}

	debouncer := watcher.NewDebouncer(watchDebounce, verify)
	defer debouncer.Stop()

	printInfo("Watching %s (debounce %s). Press Ctrl-C to stop.", absRoot, watchDebounce)

	// Run an initial verification so drift that predates the watch is
	// reported immediately.
	verify()

	w.Run(ctx, func(path string, op fsnotify.Op) {
		// Ignore churn on the manifest itself if it lives inside the tree.
		if a.store.IsArtifact(path) {
			return
		}
		log.Debug("change", "path", path, "op", op.String())
		debouncer.Trigger()
	})

	printInfo("Stopped.")
	return nil
}
