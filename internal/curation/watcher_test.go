package curation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsPolicy(t *testing.T) {
	path := writePolicy(t, "approved_licenses:\n  - MIT\n")

	w, err := NewWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	gpl := models.PackageMetadata{PackageID: "org.example.gpl", License: "GPL-3.0"}
	assert.False(t, w.Engine().Evaluate(gpl).Allowed)

	reloads, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, utils.WriteFileAtomic(path, []byte("approved_licenses:\n  - MIT\n  - GPL-3.0\n"), 0644))

	select {
	case engine := <-reloads:
		assert.True(t, engine.Evaluate(gpl).Allowed)
		assert.Same(t, engine, w.Engine())
	case <-time.After(5 * time.Second):
		t.Fatal("policy was not reloaded")
	}
}

func TestWatcherKeepsPolicyOnBadReload(t *testing.T) {
	path := writePolicy(t, "approved_licenses:\n  - MIT\n")

	w, err := NewWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	before := w.Engine()
	_, err = w.Start()
	require.NoError(t, err)

	require.NoError(t, utils.WriteFileAtomic(path, []byte("approved_licenses: [MIT\n"), 0644))

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Same(t, before, w.Engine())
}

func TestNewWatcherMissingPolicy(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), DefaultDebounce)
	assert.ErrorIs(t, err, models.ErrConfigLoadFailed)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(writePolicy(t, ""), DefaultDebounce)
	require.NoError(t, err)

	_, err = w.Start()
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
