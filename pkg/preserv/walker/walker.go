// Package walker enumerates the files of an archive tree. It yields
// every regular file under a root as a POSIX-style relative path and
// collects per-path errors instead of aborting the walk.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

// ErrInvalidRoot indicates the archive root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid archive root")

// Walker walks archive trees.
type Walker struct {
	// follow controls whether symbolic links are traversed. Off by
	// default to avoid loops; broken or external links surface as
	// per-path errors at hashing time instead.
	follow bool
}

// New creates a Walker.
func New() *Walker {
	return &Walker{}
}

// ResolveRoot resolves root to an absolute path and verifies that it
// exists and is a directory.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	return abs, nil
}

// Walk enumerates every regular file under root and returns their
// archive-relative paths in sorted order. Directories are traversed but
// not yielded. Unreadable subtrees and other anomalies are collected as
// per-path errors; they never terminate enumeration. Cancelling the
// context stops the walk early with ctx.Err().
func (w *Walker) Walk(ctx context.Context, root string) ([]string, []types.PathError, error) {
	absRoot, err := ResolveRoot(root)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu       sync.Mutex
		paths    []string
		pathErrs []types.PathError
	)

	conf := fastwalk.Config{
		Follow: w.follow,
	}

	walkErr := fastwalk.Walk(&conf, absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			mu.Lock()
			pathErrs = append(pathErrs, types.PathError{
				Path:    relPath(absRoot, path),
				Message: err.Error(),
			})
			mu.Unlock()
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		paths = append(paths, relPath(absRoot, path))
		mu.Unlock()
		return nil
	})

	if walkErr != nil {
		return nil, nil, walkErr
	}

	sort.Strings(paths)
	sort.Slice(pathErrs, func(i, j int) bool { return pathErrs[i].Path < pathErrs[j].Path })

	return paths, pathErrs, nil
}

// relPath converts an absolute path under root to the canonical
// slash-separated relative form used as a manifest key.
func relPath(root, path string) string {
	rel := strings.TrimPrefix(path, root+string(filepath.Separator))
	return filepath.ToSlash(rel)
}
