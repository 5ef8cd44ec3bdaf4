package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.ArchivePath)
	assert.NotEmpty(t, cfg.ManifestPath)
	assert.Positive(t, cfg.Workers)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, DefaultRetentionDays, cfg.History.RetentionDays)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	dir := filepath.Join(configHome, "preserv")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := "archive_path: /mnt/archive\nworkers: 3\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/mnt/archive", cfg.ArchivePath)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PRESERV_ARCHIVE_PATH", "/tape/vault")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tape/vault", cfg.ArchivePath)
}

func TestDefaultWorkers_Bounds(t *testing.T) {
	n := DefaultWorkers()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 8)
}

func TestStore_FirstRun(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	assert.Empty(t, s.ArchivePath())

	_, ok := s.LastRun()
	assert.False(t, ok)
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := OpenStore(path)
	require.NoError(t, err)

	ran := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	s.SetArchivePath("/mnt/archive")
	s.SetLastRun(ran)
	require.NoError(t, s.Save())

	reopened, err := OpenStore(path)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/archive", reopened.ArchivePath())

	got, ok := reopened.LastRun()
	require.True(t, ok)
	assert.True(t, ran.Equal(got))
}

func TestStore_SaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "state.json")

	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_GenericGetSet(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	assert.Empty(t, s.Get("archive_path"))
	s.Set("archive_path", "/x")
	assert.Equal(t, "/x", s.Get("archive_path"))
}
