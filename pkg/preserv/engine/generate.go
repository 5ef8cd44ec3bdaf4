package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/preserv/pkg/preserv/types"
	"github.com/jamesainslie/preserv/pkg/preserv/walker"
)

// Generate walks the archive tree under root, hashes every file, and
// persists a brand-new manifest, replacing any prior one wholesale.
// Files whose digest or stat fails are counted as discovered but not
// processed and are excluded from the manifest.
//
// A persist failure still returns the summary alongside the error so
// callers can report what was computed.
func (e *Engine) Generate(ctx context.Context, root string) (*types.GenerateSummary, error) {
	absRoot, err := walker.ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	e.log.Info("generating manifest", "root", absRoot)

	paths, walkErrs, err := e.walker.Walk(ctx, absRoot)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	summary := &types.GenerateSummary{
		Discovered: len(paths) + len(walkErrs),
		Errors:     walkErrs,
	}

	var mu sync.Mutex
	m := types.Manifest{}

	e.pool(ctx.Done(), paths, func(rel string) {
		entry, err := e.entryFor(absRoot, rel, now)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			e.log.Error("skipping file", "path", rel, "error", err)
			summary.Errors = append(summary.Errors, types.PathError{Path: rel, Message: err.Error()})
			return
		}
		e.log.Debug("processed", "path", rel, "size", entry.Size)
		m[rel] = entry
	})

	if err := ctx.Err(); err != nil {
		// Never persist a partial manifest.
		return nil, err
	}

	summary.Processed = len(m)

	if err := e.store.Save(m); err != nil {
		return summary, fmt.Errorf("saving manifest: %w", err)
	}

	if err := e.finishRun(absRoot, now); err != nil {
		return summary, fmt.Errorf("saving run state: %w", err)
	}

	e.log.Info("manifest generated",
		"root", absRoot,
		"discovered", summary.Discovered,
		"processed", summary.Processed,
		"errors", len(summary.Errors))

	return summary, nil
}
