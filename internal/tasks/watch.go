package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/fsnotify/fsnotify"
)

// WatchOptions configures [WatchDir].
type WatchOptions struct {
	Extensions  []string      // accepted extensions, with the leading dot
	InitialScan bool          // emit files already present in the directory
	Debounce    time.Duration // quiet period before a written file is emitted
}

// WatchDir emits audio files that appear in dir, the terminal equivalent of dropping a file on the upload area.
//
// Rapid create/write bursts for the same file are coalesced so a file is emitted once it stops changing. Both
// channels are closed when ctx ends.
func WatchDir(ctx context.Context, dir string, opts WatchOptions, logger *log.Logger) (<-chan string, <-chan error, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var existing []string
	if opts.InitialScan {
		entries, err := os.ReadDir(dir)
		if err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if !e.IsDir() && services.AcceptedExtension(path, opts.Extensions) {
				existing = append(existing, path)
			}
		}
	}

	logger = logger.With("component", "watcher", "dir", dir)
	files := make(chan string, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)
		defer w.Close()

		emit := func(path string) bool {
			select {
			case files <- path:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, path := range existing {
			if !emit(path) {
				return
			}
		}

		pending := map[string]struct{}{}
		var flush <-chan time.Time
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		schedule := func() {
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(opts.Debounce)
			flush = timer.C
		}

		for {
			select {
			case <-ctx.Done():
				return

			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if !services.AcceptedExtension(e.Name, opts.Extensions) {
					continue
				}
				if opts.Debounce <= 0 {
					if fileExists(e.Name) && !emit(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = struct{}{}
				schedule()

			case <-flush:
				flush = nil
				for path := range pending {
					delete(pending, path)
					if !fileExists(path) {
						continue
					}
					logger.Debug("file ready", "path", path)
					if !emit(path) {
						return
					}
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "err", err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return files, errs, nil
}

// fileExists filters out rename sources and files deleted before they settled.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
