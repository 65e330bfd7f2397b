// Package config implements the runtime-mutable proactive-mode
// configuration (§6) plus YAML persistence and hot-reload, adapted from
// the teacher's packages/engine/config/runtime.go RuntimeConfigManager
// and HotReloadSystem.
package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	fortitude "github.com/99souls/fortitude"
)

// ProactiveConfig is the runtime-mutable configuration for proactive mode,
// §6's external interface.
type ProactiveConfig struct {
	BaseDirectory           string   `yaml:"base_directory"`
	FilePatterns            []string `yaml:"file_patterns"`
	IgnorePatterns          []string `yaml:"ignore_patterns"`
	Enabled                 bool     `yaml:"enabled"`
	MonitoringIntervalSec   int      `yaml:"monitoring_interval_seconds"`
	MaxConcurrentTasks      int      `yaml:"max_concurrent_tasks"`
	PriorityThreshold       float64  `yaml:"priority_threshold"`
	AutoExecuteHighPriority bool     `yaml:"auto_execute_high_priority"`
}

// DefaultProactiveConfig returns sane defaults satisfying Validate.
func DefaultProactiveConfig() ProactiveConfig {
	return ProactiveConfig{
		BaseDirectory:           ".",
		FilePatterns:            []string{"**/*.go", "**/*.md"},
		IgnorePatterns:          []string{"**/vendor/**", "**/.git/**"},
		Enabled:                 true,
		MonitoringIntervalSec:   60,
		MaxConcurrentTasks:      4,
		PriorityThreshold:       0.5,
		AutoExecuteHighPriority: false,
	}
}

// Validate enforces the bounds named in §6.
func (c ProactiveConfig) Validate() error {
	if c.BaseDirectory == "" {
		return fortitude.New(fortitude.ErrInvalidInput, "base_directory is required")
	}
	if c.MonitoringIntervalSec < 10 || c.MonitoringIntervalSec > 3600 {
		return fortitude.New(fortitude.ErrInvalidInput, "monitoring_interval_seconds must be in [10, 3600], got %d", c.MonitoringIntervalSec)
	}
	if c.MaxConcurrentTasks < 1 || c.MaxConcurrentTasks > 20 {
		return fortitude.New(fortitude.ErrInvalidInput, "max_concurrent_tasks must be in [1, 20], got %d", c.MaxConcurrentTasks)
	}
	if c.PriorityThreshold < 0 || c.PriorityThreshold > 1 {
		return fortitude.New(fortitude.ErrInvalidInput, "priority_threshold must be in [0, 1], got %f", c.PriorityThreshold)
	}
	return nil
}

// Change describes a hot-reloaded configuration update.
type Change struct {
	Config   ProactiveConfig
	Previous ProactiveConfig
}

// Manager loads, persists, and hot-reloads a ProactiveConfig from a YAML
// file on disk.
type Manager struct {
	path string

	mu      sync.RWMutex
	current ProactiveConfig

	watcher   *fsnotify.Watcher
	watchOnce sync.Once
}

// New loads path if it exists, or seeds it with defaults otherwise.
func New(path string) (*Manager, error) {
	m := &Manager{path: path, current: DefaultProactiveConfig()}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.Save(m.current); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fortitude.Wrap(fortitude.ErrInvalidInput, err, "reading config file")
	}
	var cfg ProactiveConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fortitude.Wrap(fortitude.ErrInvalidInput, err, "parsing config file")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the active configuration.
func (m *Manager) Current() ProactiveConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Save validates cfg, writes it to disk, and makes it the active config.
func (m *Manager) Save(cfg ProactiveConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fortitude.Wrap(fortitude.ErrInvalidInput, err, "marshaling config")
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "creating config directory")
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "writing config file")
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "renaming config file")
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return nil
}

// Watch starts watching the config file's directory for writes and emits a
// Change whenever the on-disk config differs from the previously loaded
// one. The returned channel is closed when ctx is cancelled or Close is
// called. Each call creates a new watcher and returns new channels; a second
// call does not return the channels set up by the first.
func (m *Manager) Watch(ctx context.Context) (<-chan Change, <-chan error) {
	changes := make(chan Change, 8)
	errs := make(chan error, 8)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errs <- fortitude.Wrap(fortitude.ErrServiceUnavailable, err, "creating file watcher")
		close(changes)
		close(errs)
		return changes, errs
	}
	m.watcher = watcher

	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		errs <- fortitude.Wrap(fortitude.ErrServiceUnavailable, err, "watching config directory %s", dir)
		close(changes)
		close(errs)
		watcher.Close()
		return changes, errs
	}

	go func() {
		defer close(changes)
		defer close(errs)
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(m.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				previous := m.Current()
				if err := m.load(); err != nil {
					errs <- err
					continue
				}
				current := m.Current()
				if !reflect.DeepEqual(current, previous) {
					changes <- Change{Config: current, Previous: previous}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				errs <- fortitude.Wrap(fortitude.ErrServiceUnavailable, err, "watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, errs
}

// Close stops the watcher started by Watch, if any.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}
