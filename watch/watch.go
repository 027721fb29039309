// Package watch announces rebuilt artifacts. It watches the directory of the
// artifact rather than the file, since builds usually replace the file.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/resynth/resynth"
	"go.uber.org/zap"
)

type (
	// Watcher emits a ReloadEvent after the artifact was created or written.
	// Bursts of notifications closer than the debounce interval yield one
	// event.
	Watcher struct {
		path     string
		base     string
		watcher  *fsnotify.Watcher
		debounce time.Duration
		logger   *zap.Logger
	}

	Option func(*Watcher)
)

// DefaultDebounce is long enough to cover the writes of one linker run.
const DefaultDebounce = 50 * time.Millisecond

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New starts watching the directory of the artifact at path.
func New(path string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		base:     filepath.Base(path),
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("cannot watch %s: %w", filepath.Dir(path), err)
	}
	w.watcher = fw
	return w, nil
}

// Run delivers events to out until the context is done or the watcher is
// closed. Sending blocks only while out is full.
func (w *Watcher) Run(ctx context.Context, out chan<- resynth.ReloadEvent) {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(e.Name) != w.base || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
				continue
			}
			w.logger.Debug("artifact changed", zap.String("artifact", e.Name), zap.Stringer("op", e.Op))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-pending:
			pending = nil
			select {
			case out <- resynth.ReloadEvent{Path: w.path}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
