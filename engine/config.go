// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// Config is the engine's boot-time configuration. Fields are deliberately
// minimal; modules extend it by defining their own TOML tables and
// parsing Raw themselves.
type Config struct {
	ProgramName string `toml:"program_name"`

	// GeneralWorkers is the requested general worker-thread count; the
	// actual count is clamped to [4, 4*runtime.NumCPU()] per spec §4.H.
	GeneralWorkers int `toml:"general_workers"`

	// StallMillis is how long a stalled worker thread sleeps per poll
	// (spec §4.H: 500ms).
	StallMillis int `toml:"stall_millis"`

	// Raw holds the fully decoded TOML document, for modules that define
	// their own tables.
	Raw map[string]any `toml:"-"`
}

// DefaultConfig returns a Config with the engine's documented defaults.
func DefaultConfig() Config {
	return Config{GeneralWorkers: 4, StallMillis: 500}
}

// LoadConfig reads and decodes a TOML config file at path, filling in
// DefaultConfig's values for anything the file leaves unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, err
	}
	cfg.Raw = raw
	return cfg, nil
}

// Watcher reloads a Config from disk whenever the underlying file
// changes, handing the new value to onReload. Disabled entirely when
// ModeRelease is set (spec §6: release mode "prevents automatic index
// reload/watch" — config hot-reload follows the same rule).
type Watcher struct {
	path     string
	onReload func(Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchConfig starts watching path for changes, invoking onReload with
// each successfully reloaded Config. Returns a no-op *Watcher when
// mode.Has(ModeRelease).
func WatchConfig(path string, mode RuntimeMode, onReload func(Config)) (*Watcher, error) {
	w := &Watcher{path: path, onReload: onReload, done: make(chan struct{})}
	if mode.Has(ModeRelease) {
		return w, nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w.watcher = fw
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfig(w.path)
			if err != nil {
				slog.Error("engine: config reload failed", "path", w.path, "error", err)
				continue
			}
			w.onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("engine: config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher, if one was started.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
}
