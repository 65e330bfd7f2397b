package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/99souls/fortitude/engine/models"
)

func TestResolveEffective_OverlayOrder(t *testing.T) {
	prefs := models.Preferences{
		Frequency:       models.NewImmediateFrequency(),
		DefaultChannels: []models.Channel{{Kind: models.ChannelCLI}},
		TypeSettings: map[models.NotificationType]models.TypeSettings{
			models.NotifyWarning: {Enabled: true, Channels: []models.Channel{{Kind: models.ChannelFile, Path: "/tmp/x"}}},
		},
		PriorityOverrides: map[models.NotificationType]models.PriorityOverride{
			models.NotifyWarning: {OverrideChannels: []models.Channel{{Kind: models.ChannelSlack, Webhook: "https://hooks/x"}}},
		},
	}
	eff := resolveEffective(prefs, models.Notification{Type: models.NotifyWarning})
	assert.True(t, eff.Enabled)
	assert.Equal(t, models.ChannelSlack, eff.Channels[0].Kind, "priority override channel wins over type-specific")
}

func TestResolveEffective_ContextualOverridesType(t *testing.T) {
	prefs := models.Preferences{
		TypeSettings: map[models.NotificationType]models.TypeSettings{
			models.NotifyInfo: {Enabled: true, DetailLevel: "summary"},
		},
		ContextualSettings: map[string]models.TypeSettings{
			"ci-pipeline": {Enabled: true, DetailLevel: "full"},
		},
	}
	eff := resolveEffective(prefs, models.Notification{Type: models.NotifyInfo, ContextKey: "ci-pipeline"})
	assert.Equal(t, "full", eff.DetailLevel)
}

func TestInQuietWindow_WrapsPastMidnight(t *testing.T) {
	w := &models.TimeWindow{Start: "22:00", End: "07:00"}
	assert.True(t, inQuietWindow(time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC), w))
	assert.True(t, inQuietWindow(time.Date(2026, 1, 1, 6, 59, 0, 0, time.UTC), w))
	assert.False(t, inQuietWindow(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), w))
}

func TestInQuietWindow_NilWindowNeverQuiet(t *testing.T) {
	assert.False(t, inQuietWindow(time.Now(), nil))
}
