package preferences

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

func minimalProfile(id string) models.UserProfile {
	return models.UserProfile{
		ID: id,
		Preferences: models.Preferences{
			Frequency:       models.NewImmediateFrequency(),
			DefaultChannels: []models.Channel{{Kind: models.ChannelCLI}},
		},
	}
}

func TestManager_SaveThenGetRoundTrips(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	profile := minimalProfile("u1")
	require.NoError(t, m.Save(profile))

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, models.FrequencyImmediate, got.Preferences.Frequency.Kind)
}

func TestManager_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	m1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, m1.Save(minimalProfile("u1")))

	m2, err := New(dir)
	require.NoError(t, err)
	got, ok := m2.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.ID)
}

func TestManager_RejectsZeroSizeBatch(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	profile := minimalProfile("u1")
	profile.Preferences.Frequency = models.Frequency{Kind: models.FrequencyBatched, Size: 0, Timeout: time.Minute}

	err = m.Save(profile)
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)
}

func TestManager_RejectsUnknownCron(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	profile := minimalProfile("u1")
	profile.Preferences.Frequency = models.Frequency{Kind: models.FrequencyScheduled, Cron: "not a cron expression"}

	err = m.Save(profile)
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)
}

func TestManager_RejectsInconsistentBusinessHours(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	profile := minimalProfile("u1")
	profile.Preferences.BusinessHours = &models.TimeWindow{Start: "17:00", End: "09:00"}

	err = m.Save(profile)
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)
}

func TestManager_RejectsUnresolvableChannelReference(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	profile := minimalProfile("u1")
	profile.Preferences.DefaultChannels = []models.Channel{{Kind: models.ChannelFile, Path: ""}}

	err = m.Save(profile)
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)
}

func TestManager_DeleteRemovesProfile(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Save(minimalProfile("u1")))

	require.NoError(t, m.Delete("u1"))
	_, ok := m.Get("u1")
	assert.False(t, ok)
}

func TestManager_InvalidSaveDoesNotCorruptCache(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Save(minimalProfile("u1")))

	bad := minimalProfile("u1")
	bad.Preferences.DefaultChannels = []models.Channel{{Kind: models.ChannelAPI, Endpoint: ""}}
	require.Error(t, m.Save(bad))

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, []models.Channel{{Kind: models.ChannelCLI}}, got.Preferences.DefaultChannels)
}
