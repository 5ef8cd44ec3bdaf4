package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jamesainslie/preserv/pkg/preserv/manifest"
	"github.com/jamesainslie/preserv/pkg/preserv/types"
	"github.com/jamesainslie/preserv/pkg/preserv/walker"
)

// Verify compares the live tree under root against the persisted
// manifest and classifies every path.
//
// The run is two explicit passes with different iteration sources: the
// manifest-driven pass classifies every manifest key as ok, modified,
// missing, or errored; the tree-driven pass then walks the live
// filesystem to find paths the manifest does not know, which become
// new. A manifest-known file whose size and mtime both match its record
// is classified ok without recomputing the digest (see the package doc
// for the assurance gap this implies).
//
// When adoptNew is set, every new file is hashed and inserted into the
// manifest, which is then persisted. Adoption only ever adds entries;
// stale missing entries are removed only by a full Generate. A plain
// verification never writes the manifest.
func (e *Engine) Verify(ctx context.Context, root string, adoptNew bool) (*types.Report, error) {
	absRoot, err := walker.ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	if !e.store.Exists() {
		return nil, ErrManifestNotFound
	}

	m, err := e.store.Load()
	if err != nil {
		if !errors.Is(err, manifest.ErrCorrupt) {
			return nil, err
		}
		// Degraded mode: verify against whatever rows survived.
		e.log.Warn("manifest corrupt, verifying in degraded mode", "error", err)
	}

	e.log.Info("verifying archive", "root", absRoot, "entries", len(m))

	report := &types.Report{}
	var mu sync.Mutex

	// Pass 1: classify every manifest-known path.
	e.pool(ctx.Done(), m.Paths(), func(rel string) {
		class, msg := e.classifyKnown(absRoot, rel, m[rel])

		mu.Lock()
		defer mu.Unlock()
		switch class {
		case types.OK:
			e.log.Debug("ok", "path", rel)
			report.OK = append(report.OK, rel)
		case types.Modified:
			e.log.Error("modified", "path", rel)
			report.Modified = append(report.Modified, rel)
		case types.Missing:
			e.log.Warn("missing", "path", rel)
			report.Missing = append(report.Missing, rel)
		case types.Failed:
			e.log.Error("cannot classify", "path", rel, "error", msg)
			report.Errors = append(report.Errors, types.PathError{Path: rel, Message: msg})
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Pass 2: walk the live tree for paths the manifest does not know.
	livePaths, walkErrs, err := e.walker.Walk(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	report.Errors = append(report.Errors, walkErrs...)

	for _, rel := range livePaths {
		if _, known := m[rel]; !known {
			e.log.Info("new", "path", rel)
			report.New = append(report.New, rel)
		}
	}

	if adoptNew && len(report.New) > 0 {
		if err := e.adopt(ctx, absRoot, m, report, &mu); err != nil {
			report.Sort()
			return report, err
		}
	}

	report.Sort()

	if err := e.finishRun(absRoot, time.Now().UTC()); err != nil {
		return report, fmt.Errorf("saving run state: %w", err)
	}

	e.log.Info("verification complete",
		"root", absRoot,
		"ok", len(report.OK),
		"modified", len(report.Modified),
		"missing", len(report.Missing),
		"new", len(report.New),
		"errors", len(report.Errors))

	return report, nil
}

// classifyKnown determines the verdict for one manifest-known path.
// The second return value carries the error message for Failed.
func (e *Engine) classifyKnown(root, rel string, rec types.Entry) (types.Classification, string) {
	full := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Missing, ""
		}
		return types.Failed, err.Error()
	}

	// Metadata shortcut: unchanged size and mtime are trusted as
	// unchanged content, skipping the digest entirely.
	if info.Size() == rec.Size && types.ModTimeOf(info) == rec.ModTime {
		return types.OK, ""
	}

	sum, err := e.digest(full)
	if err != nil {
		return types.Failed, err.Error()
	}

	// Metadata drifted but content did not, e.g. a byte-identical
	// re-copy with a fresh mtime.
	if sum == rec.Checksum {
		return types.OK, ""
	}

	return types.Modified, ""
}

// adopt hashes every new path and folds it into the manifest, then
// persists the updated manifest. This is the only path on which
// verification mutates persisted state.
func (e *Engine) adopt(ctx context.Context, root string, m types.Manifest, report *types.Report, mu *sync.Mutex) error {
	now := time.Now().UTC()
	updated := m.Clone()

	e.pool(ctx.Done(), report.New, func(rel string) {
		entry, err := e.entryFor(root, rel, now)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			e.log.Error("cannot adopt file", "path", rel, "error", err)
			report.Errors = append(report.Errors, types.PathError{Path: rel, Message: err.Error()})
			return
		}
		updated[rel] = entry
	})

	if err := ctx.Err(); err != nil {
		return err
	}

	adopted := len(updated) - len(m)
	if err := e.store.Save(updated); err != nil {
		return fmt.Errorf("saving manifest after adoption: %w", err)
	}

	e.log.Info("adopted new files into manifest", "count", adopted)
	return nil
}
