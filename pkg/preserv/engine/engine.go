// Package engine implements the fixity-checking core of preserv:
// generating a content manifest for an archive tree and verifying the
// tree against a previously generated manifest.
//
// Verification trusts unchanged metadata as a proxy for unchanged
// content: when a file's size and modification time both match the
// recorded values, the file is classified ok without recomputing its
// digest. This is a deliberate performance/assurance tradeoff inherited
// from standard fixity practice, and it has a known gap: a content
// change that preserves both size and mtime (for example an overwrite
// followed by a timestamp restore) is undetectable until the digest is
// next recomputed. Archives that need stronger assurance should
// regenerate the manifest periodically.
package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jamesainslie/preserv/pkg/preserv/config"
	"github.com/jamesainslie/preserv/pkg/preserv/digest"
	"github.com/jamesainslie/preserv/pkg/preserv/logging"
	"github.com/jamesainslie/preserv/pkg/preserv/manifest"
	"github.com/jamesainslie/preserv/pkg/preserv/types"
	"github.com/jamesainslie/preserv/pkg/preserv/walker"
)

// ErrManifestNotFound indicates a verification was requested before any
// manifest was generated. It is reported before any tree walk happens.
var ErrManifestNotFound = errors.New("no manifest found, generate one first")

// Engine runs generation and verification passes. All collaborators are
// injected; the zero dependencies are a silent logger and the real
// digest function.
type Engine struct {
	store   *manifest.Store
	state   *config.Store
	log     *logging.Logger
	walker  *walker.Walker
	digest  digest.Func
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDigest replaces the digest function. Tests use this to count or
// fail hash invocations.
func WithDigest(fn digest.Func) Option {
	return func(e *Engine) { e.digest = fn }
}

// WithWorkers sets the number of concurrent hashing workers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger the engine reports classification events to.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithState sets the state store updated as a side effect of each run.
func WithState(s *config.Store) Option {
	return func(e *Engine) { e.state = s }
}

// New creates an Engine persisting manifests through store.
func New(store *manifest.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		log:     logging.Get("engine"),
		walker:  walker.New(),
		digest:  digest.File,
		workers: config.DefaultWorkers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// entryFor stats and hashes one file, producing a manifest entry
// stamped with now. A failure at either step means no entry: failed
// digests are never persisted as sentinel values.
func (e *Engine) entryFor(root, rel string, now time.Time) (types.Entry, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		return types.Entry{}, err
	}

	sum, err := e.digest(full)
	if err != nil {
		return types.Entry{}, err
	}

	return types.Entry{
		Path:      rel,
		Checksum:  sum,
		Size:      info.Size(),
		ModTime:   types.ModTimeOf(info),
		Generated: now,
	}, nil
}

// finishRun records the run in the injected state store, if any.
func (e *Engine) finishRun(root string, now time.Time) error {
	if e.state == nil {
		return nil
	}

	e.state.SetArchivePath(root)
	e.state.SetLastRun(now)
	if err := e.state.Save(); err != nil {
		return err
	}
	return nil
}

// pool runs fn for each path on a bounded set of workers. Dispatch
// stops when ctx is cancelled; in-flight work completes.
func (e *Engine) pool(done <-chan struct{}, paths []string, fn func(rel string)) {
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				fn(rel)
			}
		}()
	}

dispatch:
	for _, rel := range paths {
		select {
		case <-done:
			break dispatch
		case jobs <- rel:
		}
	}
	close(jobs)
	wg.Wait()
}
