// Package watch reports file changes below a set of directories, coalescing
// bursts of events into one callback.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/crosstab/crosstab-go/internal/logging"
)

const defaultQuiet = 200 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Paths are files or directories. A file is watched through its
	// directory so editors that replace files are still seen.
	Paths []string
	// Patterns filter changed file names with filepath.Match. Empty
	// accepts every file.
	Patterns []string
	// Quiet is how long no event must arrive before a batch is reported.
	Quiet time.Duration
	Log   *logrus.Entry
}

// Watcher watches directories for changes.
type Watcher struct {
	dirs     []string
	patterns []string
	quiet    time.Duration
	log      *logrus.Entry
	watcher  *fsnotify.Watcher
}

// New starts watching the configured paths.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}
	if cfg.Quiet <= 0 {
		cfg.Quiet = defaultQuiet
	}
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}

	seen := make(map[string]struct{})
	var dirs []string
	for _, p := range cfg.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("path %s is not accessible: %w", p, err)
		}
		dir := p
		if !info.IsDir() {
			dir = filepath.Dir(p)
		}
		dir = filepath.Clean(dir)
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	cfg.Log.WithField("dirs", dirs).Debug("watching")

	return &Watcher{
		dirs:     dirs,
		patterns: cfg.Patterns,
		quiet:    cfg.Quiet,
		log:      cfg.Log,
		watcher:  fw,
	}, nil
}

// Dirs lists the watched directories.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

func (w *Watcher) matches(path string) bool {
	if len(w.patterns) == 0 {
		return true
	}
	name := filepath.Base(path)
	for _, pattern := range w.patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Run calls onChange with the sorted changed paths of each quiet-separated
// batch until ctx is done or onChange fails. The watcher is closed on
// return.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string) error) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.quiet)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			w.log.WithFields(logrus.Fields{"path": event.Name, "op": event.Op.String()}).Debug("file event")
			pending[event.Name] = struct{}{}
			timer.Reset(w.quiet)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})
			if err := onChange(changed); err != nil {
				return err
			}
		}
	}
}
