// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package watch re-runs plugin discovery when candidates appear under the
// plugin root.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
)

// DefaultDebounce is how long the watcher waits for the filesystem to
// settle before discovering.
const DefaultDebounce = 500 * time.Millisecond

// Discoverer runs a discovery pass over root.
type Discoverer interface {
	Discover(ctx context.Context, root string) error
}

// Watcher watches a plugin root and its immediate subdirectories.
type Watcher struct {
	root       string
	discoverer Discoverer
	debounce   time.Duration
	logger     *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher that calls d.Discover(ctx, root) after changes.
func New(root string, d Discoverer, opts ...Option) *Watcher {
	w := &Watcher{
		root:       root,
		discoverer: d,
		debounce:   DefaultDebounce,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("root", root)
	return w
}

// Run watches until ctx is done. It returns nil on cancellation and an
// error if the root cannot be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return oops.In("watch").Wrapf(err, "create watcher")
	}
	defer func() {
		if closeErr := fsw.Close(); closeErr != nil {
			w.logger.Warn("failed to close watcher", "error", closeErr)
		}
	}()

	if err := fsw.Add(w.root); err != nil {
		return oops.In("watch").With("root", w.root).Wrapf(err, "watch plugin root")
	}
	w.addChildren(fsw)
	w.logger.Info("watching plugin root")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fsw, event) {
				continue
			}
			w.logger.Debug("plugin root changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			if err := w.discoverer.Discover(ctx, w.root); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("rediscovery failed", "error", err)
			}
		}
	}
}

// relevant reports whether event can introduce a candidate. New
// directories directly under the root are watched so that manifests
// written after the directory was created are seen.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(w.root) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch candidate directory", "dir", event.Name, "error", err)
			}
		}
	}
	return true
}

func (w *Watcher) addChildren(fsw *fsnotify.Watcher) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Warn("failed to list plugin root", "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, e.Name())
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch candidate directory", "dir", dir, "error", err)
		}
	}
}
