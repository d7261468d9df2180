package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor save bursts (write + chmod + rename) into
// a single re-render.
const watchDebounce = 250 * time.Millisecond

// watchAndRender re-renders a changed input until the context is canceled.
// Directories are watched rather than files so editors that replace the
// file on save keep triggering.
func watchAndRender(ctx context.Context, inputs []string, render func([]string) error, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	watched := map[string]bool{}
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		watched[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}
	logger.Info("watching for changes", "inputs", len(inputs))

	pending := map[string]bool{}
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			pending[abs] = true
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			pending = map[string]bool{}
			logger.Info("change detected, re-rendering", "files", len(changed))
			if err := render(changed); err != nil {
				// Keep watching; a broken document should not kill the loop.
				logger.Warn("render failed", "error", err)
			}
		}
	}
}
