package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestWalk_YieldsAllFilesSorted(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.txt":           "b",
		"a.txt":           "a",
		"nested/deep/c":   "c",
		"nested/d.bin":    "d",
		"nested/empty.md": "",
	})

	w := New()
	paths, pathErrs, err := w.Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, pathErrs)

	assert.Equal(t, []string{
		"a.txt",
		"b.txt",
		"nested/d.bin",
		"nested/deep/c",
		"nested/empty.md",
	}, paths)
}

func TestWalk_EmptyTree(t *testing.T) {
	w := New()
	paths, pathErrs, err := w.Walk(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Empty(t, pathErrs)
}

func TestWalk_DirectoriesNotYielded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "only", "dirs", "here"), 0o755))

	w := New()
	paths, _, err := w.Walk(context.Background(), root)

	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestWalk_SymlinksNotFollowed(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, root, map[string]string{"real.txt": "x"})
	writeTree(t, outside, map[string]string{"elsewhere.txt": "y"})

	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	w := New()
	paths, _, err := w.Walk(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, paths)
}

func TestWalk_InvalidRoot(t *testing.T) {
	w := New()

	t.Run("missing root", func(t *testing.T) {
		_, _, err := w.Walk(context.Background(), filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, ErrInvalidRoot)
	})

	t.Run("root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, _, err := w.Walk(context.Background(), path)
		assert.ErrorIs(t, err, ErrInvalidRoot)
	})
}

func TestWalk_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New()
	_, _, err := w.Walk(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveRoot(t *testing.T) {
	root := t.TempDir()

	abs, err := ResolveRoot(root)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
}
