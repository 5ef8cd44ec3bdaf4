package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/preserv/pkg/preserv/config"
	"github.com/jamesainslie/preserv/pkg/preserv/digest"
	"github.com/jamesainslie/preserv/pkg/preserv/manifest"
	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

type fixture struct {
	root  string
	store *manifest.Store
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	store, err := manifest.NewStore(filepath.Join(t.TempDir(), "manifest.csv"))
	require.NoError(t, err)

	return &fixture{root: root, store: store}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(f.root, filepath.FromSlash(rel))))
}

func (f *fixture) touch(t *testing.T, rel string, at time.Time) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.Chtimes(path, at, at))
}

// countingDigest wraps the real digest function with an invocation counter.
func countingDigest(calls *atomic.Int64) digest.Func {
	return func(path string) (string, error) {
		calls.Add(1)
		return digest.File(path)
	}
}

func TestGenerate_RecordsAllFiles(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt":     "x",
		"b.txt":     "y",
		"sub/c.txt": "z",
	})
	e := New(f.store)

	summary, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 3, summary.Processed)
	assert.Empty(t, summary.Errors)

	m, err := f.store.Load()
	require.NoError(t, err)
	require.Len(t, m, 3)

	// Distinct content yields distinct checksums.
	assert.NotEqual(t, m["a.txt"].Checksum, m["b.txt"].Checksum)
	assert.Len(t, m["a.txt"].Checksum, 64)
	assert.Equal(t, int64(1), m["a.txt"].Size)
}

func TestGenerate_ReplacesPriorManifest(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	f.remove(t, "b.txt")
	_, err = e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	m, err := f.store.Load()
	require.NoError(t, err)
	assert.Len(t, m, 1)
	assert.NotContains(t, m, "b.txt")
}

func TestGenerate_Idempotent(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "yy"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)
	first, err := f.store.Load()
	require.NoError(t, err)

	_, err = e.Generate(context.Background(), f.root)
	require.NoError(t, err)
	second, err := f.store.Load()
	require.NoError(t, err)

	require.Equal(t, first.Paths(), second.Paths())
	for _, p := range first.Paths() {
		assert.Equal(t, first[p].Checksum, second[p].Checksum, "checksum for %s", p)
		assert.Equal(t, first[p].Size, second[p].Size, "size for %s", p)
		assert.Equal(t, first[p].ModTime, second[p].ModTime, "mtime for %s", p)
	}
}

func TestGenerate_InvalidRoot(t *testing.T) {
	f := newFixture(t, nil)
	e := New(f.store)

	_, err := e.Generate(context.Background(), filepath.Join(f.root, "missing"))
	require.Error(t, err)
	assert.False(t, f.store.Exists())
}

func TestGenerate_SkipsUnreadableFiles(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}

	f := newFixture(t, map[string]string{"good.txt": "x", "bad.txt": "y"})
	require.NoError(t, os.Chmod(filepath.Join(f.root, "bad.txt"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(f.root, "bad.txt"), 0o644) })

	e := New(f.store)
	summary, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "bad.txt", summary.Errors[0].Path)

	m, err := f.store.Load()
	require.NoError(t, err)
	assert.NotContains(t, m, "bad.txt")
}

func TestGenerate_UpdatesState(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x"})

	state, err := config.OpenStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	e := New(f.store, WithState(state))
	_, err = e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	assert.NotEmpty(t, state.ArchivePath())
	_, ok := state.LastRun()
	assert.True(t, ok)
}

func TestGenerate_CancelledContext(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x"})
	e := New(f.store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Generate(ctx, f.root)
	require.Error(t, err)
	assert.False(t, f.store.Exists(), "partial manifest must never be persisted")
}

// Scenario A: generate then verify an unchanged tree.
func TestVerify_UnchangedTree(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, report.OK)
	assert.Empty(t, report.Modified)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.New)
	assert.Empty(t, report.Errors)
	assert.True(t, report.Clean())
}

// Scenario B: content change is reported as modified.
func TestVerify_ModifiedContent(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	f.write(t, "a.txt", "zz")
	f.touch(t, "a.txt", time.Now().Add(time.Hour))

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, report.Modified)
	assert.Equal(t, []string{"b.txt"}, report.OK)
	assert.False(t, report.Clean())
}

// Scenario C: deletion and addition are reported independently.
func TestVerify_MissingAndNew(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	f.remove(t, "b.txt")
	f.write(t, "c.txt", "w")

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, report.OK)
	assert.Equal(t, []string{"b.txt"}, report.Missing)
	assert.Equal(t, []string{"c.txt"}, report.New)

	// Plain verification never writes the manifest.
	m, err := f.store.Load()
	require.NoError(t, err)
	assert.NotContains(t, m, "c.txt")
	assert.Contains(t, m, "b.txt")
}

// Scenario D: adoption adds new files but never deletes stale entries.
func TestVerify_AdoptNew(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	f.remove(t, "b.txt")
	f.write(t, "c.txt", "w")

	report, err := e.Verify(context.Background(), f.root, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"c.txt"}, report.New)
	assert.Equal(t, []string{"b.txt"}, report.Missing)

	m, err := f.store.Load()
	require.NoError(t, err)
	assert.Contains(t, m, "a.txt")
	assert.Contains(t, m, "c.txt")
	// Adoption never removes the stale entry; only Generate replaces wholesale.
	assert.Contains(t, m, "b.txt")

	// A follow-up verify sees the adopted file as ok.
	report, err = e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)
	assert.Contains(t, report.OK, "c.txt")
	assert.Empty(t, report.New)
}

// Scenario E: verification without a manifest fails up front.
func TestVerify_ManifestNotFound(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x"})
	e := New(f.store)

	_, err := e.Verify(context.Background(), f.root, false)
	assert.ErrorIs(t, err, ErrManifestNotFound)
	assert.False(t, f.store.Exists(), "no manifest file may be created")
}

func TestVerify_MetadataShortcutSkipsHashing(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})

	_, err := New(f.store).Generate(context.Background(), f.root)
	require.NoError(t, err)

	var calls atomic.Int64
	e := New(f.store, WithDigest(countingDigest(&calls)))

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Len(t, report.OK, 2)
	assert.Zero(t, calls.Load(), "unchanged metadata must not trigger hashing")
}

func TestVerify_MetadataDriftWithSameContent(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x"})

	_, err := New(f.store).Generate(context.Background(), f.root)
	require.NoError(t, err)

	// Touch the file: mtime drifts, bytes do not.
	f.touch(t, "a.txt", time.Now().Add(2*time.Hour))

	var calls atomic.Int64
	e := New(f.store, WithDigest(countingDigest(&calls)))

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, report.OK)
	assert.Empty(t, report.Modified)
	assert.Equal(t, int64(1), calls.Load(), "drifted metadata must be settled by one digest")
}

func TestVerify_EmptyTreeAllMissing(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	f.remove(t, "a.txt")
	f.remove(t, "b.txt")

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, report.Missing)
	assert.Empty(t, report.OK)
	assert.Empty(t, report.New)
}

func TestVerify_EmptyManifestAllNew(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "x", "b.txt": "y"})

	// Persist an explicitly empty manifest, then verify against it.
	require.NoError(t, f.store.Save(types.Manifest{}))

	e := New(f.store)
	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, report.New)
	assert.Empty(t, report.OK)
	assert.Empty(t, report.Missing)
}

func TestVerify_ClassificationCompleteness(t *testing.T) {
	f := newFixture(t, map[string]string{
		"keep.txt":   "same",
		"change.txt": "before",
		"lose.txt":   "bye",
	})
	e := New(f.store)

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	f.write(t, "change.txt", "after!!")
	f.touch(t, "change.txt", time.Now().Add(time.Hour))
	f.remove(t, "lose.txt")
	f.write(t, "gain.txt", "hi")

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, p := range report.OK {
		seen[p]++
	}
	for _, p := range report.Modified {
		seen[p]++
	}
	for _, p := range report.Missing {
		seen[p]++
	}
	for _, e := range report.Errors {
		seen[e.Path]++
	}

	// Every manifest key lands in exactly one classification bucket.
	for _, p := range []string{"keep.txt", "change.txt", "lose.txt"} {
		assert.Equal(t, 1, seen[p], "path %s", p)
	}

	// New is computed independently from non-manifest paths.
	assert.Equal(t, []string{"gain.txt"}, report.New)
	assert.Zero(t, seen["gain.txt"])
}

func TestVerify_ParallelWorkersProduceSortedBuckets(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"m", "a", "z", "q", "b", "f", "x", "c"} {
		files[name+".dat"] = name + name
	}
	f := newFixture(t, files)
	e := New(f.store, WithWorkers(4))

	_, err := e.Generate(context.Background(), f.root)
	require.NoError(t, err)

	report, err := e.Verify(context.Background(), f.root, false)
	require.NoError(t, err)

	require.Len(t, report.OK, len(files))
	assert.True(t, sort.StringsAreSorted(report.OK), "ok bucket not sorted: %v", report.OK)
}
