package policyfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a policy file when it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file by rename are still seen.
type Watcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce *debouncer
}

// NewWatcher creates a watcher for the policy file at path.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policy file path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		logger:   logger.With("component", "policy_watcher", "path", abs),
		watcher:  fsw,
		debounce: newDebouncer(debounce),
	}, nil
}

// Watch blocks until ctx is done. After each burst of changes the file is
// loaded again and, when valid, passed to onChange. An invalid file is
// logged and the previous policies stay in effect.
func (w *Watcher) Watch(ctx context.Context, onChange func(context.Context, *File) error) error {
	defer w.watcher.Close()
	defer w.debounce.stop()

	w.logger.Info("policy file watcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("policy file event", "op", event.Op.String())

			w.debounce.trigger(func() {
				f, err := Load(w.path)
				if err != nil {
					w.logger.Error("policy file reload rejected", "error", err)
					return
				}
				if err := onChange(ctx, f); err != nil {
					w.logger.Error("policy reload failed", "error", err)
					return
				}
				w.logger.Info("policy file reloaded", "policies", len(f.Policies))
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("policy file watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// debouncer runs only the last callback of a burst, after a quiet period.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			callback()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
