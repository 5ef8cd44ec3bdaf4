package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/jamesainslie/preserv/pkg/preserv/config"
	"github.com/jamesainslie/preserv/pkg/preserv/engine"
	"github.com/jamesainslie/preserv/pkg/preserv/history"
	"github.com/jamesainslie/preserv/pkg/preserv/logging"
	"github.com/jamesainslie/preserv/pkg/preserv/manifest"
	"github.com/jamesainslie/preserv/pkg/preserv/output"
)

// app bundles the wired-up collaborators every command needs.
type app struct {
	cfg   *config.Config
	store *manifest.Store
	eng   *engine.Engine
	hist  *history.Log
}

// bootstrap loads configuration, initializes logging, and builds the
// engine with its manifest and state stores. Flag values already bound
// to viper take precedence over the config file.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	initLogging(cfg)

	if path := viper.GetString("manifest_path"); path != "" {
		cfg.ManifestPath = path
	}
	if w := viper.GetInt("workers"); w > 0 {
		cfg.Workers = w
	}

	store, err := manifest.NewStore(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("opening manifest store: %w", err)
	}

	opts := []engine.Option{engine.WithWorkers(cfg.Workers)}

	state, err := config.OpenStore(config.DefaultStatePath())
	if err != nil {
		// Run state is best-effort; verification works without it.
		logging.Get("cli").Warn("cannot open state store", "error", err)
	} else {
		opts = append(opts, engine.WithState(state))
	}

	a := &app{
		cfg:   cfg,
		store: store,
		eng:   engine.New(store, opts...),
	}

	if cfg.History.Enabled {
		hist, err := history.New(cfg.History.Path)
		if err != nil {
			logging.Get("cli").Warn("cannot open history log", "error", err)
		} else {
			a.hist = hist
		}
	}

	return a, nil
}

// resolveArchiveRoot picks the archive root from the positional
// argument, falling back to the configured default.
func (a *app) resolveArchiveRoot(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.ArchivePath != "" {
		return a.cfg.ArchivePath, nil
	}
	return "", errors.New("no archive path given and archive_path is not configured")
}

// recordRun appends a run to the history log, if history is enabled.
func (a *app) recordRun(op history.Operation, root string, counts history.Counts, adopted int) {
	if a.hist == nil {
		return
	}
	if err := a.hist.EnsureDir(); err != nil {
		logging.Get("cli").Warn("cannot create history directory", "error", err)
		return
	}
	if _, err := a.hist.Append(op, root, counts, adopted); err != nil {
		logging.Get("cli").Warn("cannot record run in history", "error", err)
	}
}

// render formats the result with the formatter selected by --output
// and prints it.
func render(result *output.Result) error {
	formatter, err := output.Get(viper.GetString("output"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	fmt.Print(buf.String())
	return nil
}
