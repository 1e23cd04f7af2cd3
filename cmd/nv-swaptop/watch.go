package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/srodi/nv-swaptop/pkg/config"
	"github.com/srodi/nv-swaptop/pkg/ui"
)

// watchConfig re-reads path whenever it is written or replaced and hands the
// result to deliver. overlay, when set, is applied to every successfully
// loaded file first so command-line flags keep winning over the file. The
// parent directory is watched because editors often save by renaming a
// temporary file over the original.
func watchConfig(ctx context.Context, path string, logger *zap.Logger, overlay func(*config.Config), deliver func(ui.ConfigReloadMsg)) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isConfigChange(event, abs) {
					continue
				}
				cfg, err := config.LoadFile(abs)
				if err != nil {
					logger.Warn("config reload failed", zap.String("path", abs), zap.Error(err))
				} else {
					logger.Debug("config file changed", zap.String("path", abs), zap.Stringer("op", event.Op))
					if overlay != nil {
						overlay(cfg)
					}
				}
				deliver(ui.ConfigReloadMsg{Path: abs, Config: cfg, Err: err})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return func() {
		cancel()
		watcher.Close()
		wg.Wait()
	}, nil
}

func isConfigChange(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
