package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the config file on change and hands fresh snapshots
// to the callback. Falls back to polling when fsnotify cannot watch
// the path.
type Watcher struct {
	path    string
	version int
	log     zerolog.Logger
	onLoad  func(*Config)
}

func NewWatcher(path string, startVersion int, log zerolog.Logger, onLoad func(*Config)) *Watcher {
	return &Watcher{path: path, version: startVersion, log: log, onLoad: onLoad}
}

// Start runs the watch loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		w.log.Warn().Err(err).Msg("config watcher: fsnotify unavailable, falling back to polling")
		usePolling = true
	} else if err := watcher.Add(w.path); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config watcher: cannot watch file, falling back to polling")
		watcher.Close()
		usePolling = true
	}

	go func() {
		if usePolling {
			w.pollLoop(ctx)
			return
		}
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Editors often fire several events per save.
					time.Sleep(200 * time.Millisecond)
					w.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.Error().Err(err).Msg("config watcher error")
			}
		}
	}()
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if mod, ok := modTime(w.path); ok {
				if !lastMod.IsZero() && mod.After(lastMod) {
					w.reload()
				}
				lastMod = mod
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// A broken edit must not take the running monitor down.
		w.log.Error().Err(err).Msg("config reload failed, keeping current snapshot")
		return
	}
	w.version++
	cfg.Version = w.version
	w.log.Info().Int("version", cfg.Version).Msg("config snapshot reloaded")
	w.onLoad(cfg)
}
