package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresExistingPaths(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Paths: []string{filepath.Join(t.TempDir(), "missing.yaml")}})
	assert.Error(t, err)
}

func TestFilesAreWatchedThroughTheirDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dashboard.yaml")
	require.NoError(t, os.WriteFile(file, []byte("title: a"), 0o644))

	w, err := New(Config{Paths: []string{file, dir}})
	require.NoError(t, err)
	defer w.watcher.Close()
	assert.Equal(t, []string{filepath.Clean(dir)}, w.Dirs())
}

func TestMatches(t *testing.T) {
	w := &Watcher{patterns: []string{"*.yaml", "*.csv"}}
	assert.True(t, w.matches("/tmp/x/dashboard.yaml"))
	assert.True(t, w.matches("sales.csv"))
	assert.False(t, w.matches("notes.txt"))
	assert.True(t, (&Watcher{}).matches("anything"))
}

func TestRunReportsBatches(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Paths: []string{dir}, Patterns: []string{"*.csv"}, Quiet: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := errors.New("stop")
	batches := make(chan []string, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(changed []string) error {
			batches <- changed
			return stop
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte("a\n1\n"), 0o644))

	select {
	case changed := <-batches:
		assert.Equal(t, []string{filepath.Join(dir, "sales.csv")}, changed)
	case <-ctx.Done():
		t.Fatal("no batch reported")
	}
	assert.ErrorIs(t, <-done, stop)
}
