// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// DefaultDebounce coalesces rapid successive writes (editors often write
// a file several times when saving).
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration when its file changes on disk and
// hands the result to a callback. Invalid intermediate states are logged
// and skipped; the last good config stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config)
	logger   zerolog.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending time.Time
}

// NewWatcher creates a watcher for the config file at path. onChange
// receives each successfully reloaded config.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   zerolog.Nop(),
		watcher:  fsw,
	}, nil
}

// WithLogger sets the watcher's logger and returns the watcher.
func (w *Watcher) WithLogger(logger zerolog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Watch starts watching. The parent directory is watched rather than the
// file itself so atomic rename-into-place saves are seen.
func (w *Watcher) Watch() error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		cancel()
		return err
	}

	go w.processEvents(ctx)
	go w.processPending(ctx)
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			ready := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if ready {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if ready {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload skipped")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
