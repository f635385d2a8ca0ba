// Package watcher discovers audio files dropped into the input directory and
// hands their paths to a consumer, with an optional scan of files already
// present at startup.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lecture-pipeline/internal/domain"
)

// Config controls one watch session.
type Config struct {
	// Dir is the single directory to watch (non-recursive).
	Dir string
	// InitialScan, when set, emits files already in Dir before live events.
	InitialScan bool
	// Debounce coalesces the create/write bursts of a file still being
	// copied in. Zero emits immediately.
	Debounce time.Duration
}

// Start watches cfg.Dir and returns a channel of discovered audio file paths.
// The channel closes when ctx is cancelled. Non-audio files are ignored.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (<-chan string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("watch directory not set")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan string, 64)

	var initial []string
	if cfg.InitialScan {
		initial, err = ScanExisting(cfg.Dir)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		if len(initial) > 0 {
			logger.Info("watcher.initial_scan", "dir", cfg.Dir, "files", len(initial))
		}
	}

	// Debounce timers fire on their own goroutines, which must never touch
	// out directly: a timer outliving the loop below would send on a closed
	// channel. They hand paths back through ready instead, so out has a
	// single owner.
	ready := make(chan string, 64)

	go func() {
		defer close(out)
		defer w.Close()

		for _, path := range initial {
			select {
			case out <- path:
			case <-ctx.Done():
				return
			}
		}

		var (
			mu      sync.Mutex
			pending = map[string]*time.Timer{}
		)
		emit := func(path string) {
			select {
			case out <- path:
				logger.Info("watcher.detected", "file", filepath.Base(path))
			case <-ctx.Done():
			}
		}
		schedule := func(path string) {
			if cfg.Debounce <= 0 {
				emit(path)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if t, ok := pending[path]; ok {
				t.Stop()
			}
			pending[path] = time.AfterFunc(cfg.Debounce, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case path := <-ready:
				emit(path)
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !IsAudioFile(ev.Name) {
					continue
				}
				schedule(ev.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "error", err)
			}
		}
	}()

	return out, nil
}

// ScanExisting lists the audio files already in dir, sorted by name.
func ScanExisting(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if IsAudioFile(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

// IsAudioFile reports whether path carries a supported audio extension.
func IsAudioFile(path string) bool {
	return domain.IsAudioExt(strings.ToLower(filepath.Ext(path)))
}
