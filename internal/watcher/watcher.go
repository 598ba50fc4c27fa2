package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Processor handles one stable image file. Files are handed over one at a
// time, in the order they settled.
type Processor func(ctx context.Context, path string) error

// Watcher feeds photos dropped into a directory to a Processor. A file is
// processed once it has seen no create or write events for the quiet period.
type Watcher struct {
	dir     string
	quiet   time.Duration
	process Processor
}

func New(dir string, quiet time.Duration, process Processor) *Watcher {
	if quiet <= 0 {
		quiet = 300 * time.Millisecond
	}
	return &Watcher{dir: dir, quiet: quiet, process: process}
}

// Run blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	err = fw.Add(w.dir)
	if err != nil {
		return err
	}
	slog.Info("watching for meal photos", "dir", w.dir, "quiet", w.quiet)

	pending := map[string]time.Time{}
	done := map[string]time.Time{} // path -> mod time when processed

	tick := time.NewTicker(w.quiet / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsSupported(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			slog.Warn("watch error", "error", err)

		case <-tick.C:
			now := time.Now()
			for _, path := range settled(pending, now, w.quiet) {
				delete(pending, path)

				info, err := os.Stat(path)
				if err != nil || info.IsDir() {
					continue
				}
				if mod, ok := done[path]; ok && mod.Equal(info.ModTime()) {
					continue
				}
				done[path] = info.ModTime()

				err = w.process(ctx, path)
				if err != nil {
					slog.Error("failed to process photo", "path", path, "error", err)
				}
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// settled returns the pending paths that have been quiet long enough, oldest first.
func settled(pending map[string]time.Time, now time.Time, quiet time.Duration) []string {
	var out []string
	for path, t := range pending {
		if now.Sub(t) >= quiet {
			out = append(out, path)
		}
	}
	slices.SortFunc(out, func(a, b string) int {
		return pending[a].Compare(pending[b])
	})
	return out
}

// IsSupported reports whether name looks like a photo worth analysing.
// Hidden and partially written temp files are skipped.
func IsSupported(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}
