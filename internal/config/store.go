package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store is the read model the engine consults for current tunables. The
// control channel swaps in a new ServerConfig whenever the server pushes
// one; a local overrides file, when configured, is layered on top and hot
// reloaded so operators can tweak values without a server round trip.
type Store struct {
	mu        sync.RWMutex
	server    ServerConfig
	overrides map[string]any
	onChange  func(ServerConfig)
}

func NewStore() *Store {
	return &Store{}
}

// Current returns the effective config: server values with any local
// overrides applied.
func (s *Store) Current() ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveLocked()
}

// SetServer replaces the server-pushed tunables.
func (s *Store) SetServer(sc ServerConfig) {
	s.mu.Lock()
	s.server = sc
	eff := s.effectiveLocked()
	cb := s.onChange
	s.mu.Unlock()

	slog.Info("applied server config",
		"noRepeatTime", eff.NoRepeatAssetsTime,
		"allowRepeats", eff.AllowRepeatsInStopset,
		"waitInterval", eff.WaitInterval)
	if cb != nil {
		cb(eff)
	}
}

// OnChange registers a callback invoked after every effective-config
// change. Only one callback is supported.
func (s *Store) OnChange(cb func(ServerConfig)) {
	s.mu.Lock()
	s.onChange = cb
	s.mu.Unlock()
}

func (s *Store) effectiveLocked() ServerConfig {
	if len(s.overrides) == 0 {
		return s.server
	}
	raw := map[string]any{
		"NO_REPEAT_ASSETS_TIME":               float64(s.server.NoRepeatAssetsTime),
		"ALLOW_REPEATS_IN_STOPSET":            s.server.AllowRepeatsInStopset,
		"END_DATE_PRIORITY_WEIGHT_MULTIPLIER": s.server.EndDatePriorityWeightMultiplier,
		"END_DATE_PRIORITY_BOUNDARY":          s.server.EndDatePriorityBoundary,
		"WAIT_INTERVAL":                       float64(s.server.WaitInterval),
		"STOPSET_OVERDUE_TIME":                float64(s.server.StopsetOverdueTime),
		"AUTOPLAY":                            s.server.Autoplay,
	}
	for k, v := range s.overrides {
		raw[k] = v
	}
	return ParseServerConfig(raw)
}

func (s *Store) loadOverrides(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("could not read config overrides", "path", path, "err", err)
		}
		return
	}
	var overrides map[string]any
	if err := json.Unmarshal(data, &overrides); err != nil {
		slog.Warn("malformed config overrides, ignoring", "path", path, "err", err)
		return
	}

	s.mu.Lock()
	s.overrides = overrides
	eff := s.effectiveLocked()
	cb := s.onChange
	s.mu.Unlock()

	slog.Info("applied config overrides", "path", path, "keys", len(overrides))
	if cb != nil {
		cb(eff)
	}
}

// Watch reloads the overrides file whenever it changes. Blocks until ctx
// is done; callers run it in a goroutine.
func (s *Store) Watch(done <-chan struct{}, path string) error {
	if path == "" {
		return nil
	}
	s.loadOverrides(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save
	// which drops a watch held on the inode itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				s.loadOverrides(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "err", err)
		}
	}
}
