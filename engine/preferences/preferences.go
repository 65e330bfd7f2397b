// Package preferences implements the Preference Manager (C10): JSON
// file-per-profile persistence under a root directory, mirroring the
// teacher's per-entity-file-under-a-directory convention used for config
// versions, §4.10.
package preferences

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// Manager loads, validates, persists, and caches UserProfiles.
type Manager struct {
	dir string

	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

// New loads every profile already on disk under dir, creating dir if it
// does not exist.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fortitude.Wrap(fortitude.ErrStorageError, err, "create preferences directory %s", dir)
	}
	m := &Manager{dir: dir, profiles: make(map[string]models.UserProfile)}
	if err := m.loadAll(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "list preferences directory %s", m.dir)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			return fortitude.Wrap(fortitude.ErrStorageError, err, "read profile %s", e.Name())
		}
		var profile models.UserProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			return fortitude.Wrap(fortitude.ErrStorageError, err, "parse profile %s", e.Name())
		}
		m.profiles[profile.ID] = profile
	}
	return nil
}

// Get satisfies notify.ProfileStore.
func (m *Manager) Get(id string) (models.UserProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok
}

// List returns every known profile id.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	return ids
}

// Save validates profile and persists it atomically, then updates the
// in-memory cache only once the write has succeeded.
func (m *Manager) Save(profile models.UserProfile) error {
	if profile.ID == "" {
		return fortitude.New(fortitude.ErrInvalidInput, "profile id must not be empty")
	}
	if err := validate(profile.Preferences); err != nil {
		return err
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fortitude.Wrap(fortitude.ErrInvalidInput, err, "marshal profile %s", profile.ID)
	}

	path := filepath.Join(m.dir, profile.ID+".json")
	tmp, err := os.CreateTemp(m.dir, "."+profile.ID+"-*.tmp")
	if err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "create temp profile file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "write temp profile file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "close temp profile file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "rename profile into place")
	}

	m.mu.Lock()
	m.profiles[profile.ID] = profile
	m.mu.Unlock()
	return nil
}

// Delete removes a profile from disk and the cache.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return fortitude.New(fortitude.ErrInvalidInput, "unknown profile %s", id)
	}
	if err := os.Remove(filepath.Join(m.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "delete profile %s", id)
	}
	delete(m.profiles, id)
	return nil
}

// validate rejects Batched{size<=0}, unknown cron strings, inconsistent
// business hours, and unresolvable channel references, §4.10.
func validate(p models.Preferences) error {
	if err := validateFrequency(p.Frequency); err != nil {
		return err
	}
	if p.BusinessHours != nil {
		start, ok1 := parseHHMM(p.BusinessHours.Start)
		end, ok2 := parseHHMM(p.BusinessHours.End)
		if !ok1 || !ok2 {
			return fortitude.New(fortitude.ErrInvalidInput, "business hours must be HH:MM, got %q-%q", p.BusinessHours.Start, p.BusinessHours.End)
		}
		if start >= end {
			return fortitude.New(fortitude.ErrInvalidInput, "business hours start %q must precede end %q", p.BusinessHours.Start, p.BusinessHours.End)
		}
	}

	for _, ch := range p.DefaultChannels {
		if err := validateChannel(ch); err != nil {
			return err
		}
	}
	for typ, ts := range p.TypeSettings {
		for _, ch := range ts.Channels {
			if err := validateChannel(ch); err != nil {
				return fortitude.Wrap(fortitude.ErrInvalidInput, err, "type settings for %s", typ)
			}
		}
	}
	for key, ts := range p.ContextualSettings {
		for _, ch := range ts.Channels {
			if err := validateChannel(ch); err != nil {
				return fortitude.Wrap(fortitude.ErrInvalidInput, err, "contextual settings for %q", key)
			}
		}
	}
	for typ, po := range p.PriorityOverrides {
		for _, ch := range po.OverrideChannels {
			if err := validateChannel(ch); err != nil {
				return fortitude.Wrap(fortitude.ErrInvalidInput, err, "priority override for %s", typ)
			}
		}
		if po.OverrideFrequency != nil {
			if err := validateFrequency(*po.OverrideFrequency); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFrequency(f models.Frequency) error {
	switch f.Kind {
	case models.FrequencyBatched:
		if f.Size <= 0 {
			return fortitude.New(fortitude.ErrInvalidInput, "batched frequency size must be > 0, got %d", f.Size)
		}
	case models.FrequencyScheduled:
		if _, err := cron.ParseStandard(f.Cron); err != nil {
			return fortitude.Wrap(fortitude.ErrInvalidInput, err, "invalid cron expression %q", f.Cron)
		}
	}
	return nil
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, false
	}
	return h*60 + min, true
}

func validateChannel(ch models.Channel) error {
	switch ch.Kind {
	case models.ChannelFile:
		if ch.Path == "" {
			return fortitude.New(fortitude.ErrInvalidInput, "file channel requires a path")
		}
	case models.ChannelAPI:
		if ch.Endpoint == "" {
			return fortitude.New(fortitude.ErrInvalidInput, "api channel requires an endpoint")
		}
	case models.ChannelSlack:
		if ch.Webhook == "" {
			return fortitude.New(fortitude.ErrInvalidInput, "slack channel requires a webhook")
		}
	case models.ChannelCLI:
		// no required fields
	default:
		return fortitude.New(fortitude.ErrInvalidInput, "unresolvable channel kind %q", ch.Kind)
	}
	return nil
}
