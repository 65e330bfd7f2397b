package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/fortitude/engine/models"
)

func TestManager_ScheduledFlushesOnMatchingTick(t *testing.T) {
	rec := &recordingChannel{}
	scheduled, err := models.NewScheduledFrequency("*/1 * * * *")
	require.NoError(t, err)
	store := &fakeStore{profiles: map[string]models.UserProfile{
		"u1": {ID: "u1", Preferences: models.Preferences{
			Frequency:       scheduled,
			DefaultChannels: []models.Channel{cliChannel()},
		}},
	}}

	m := NewManager(store, DefaultConfig())
	m.WithChannel(models.ChannelCLI, rec)
	m.Start()
	defer m.Stop(context.Background())

	outcome, err := m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyInfo, Title: "digest"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)
	assert.Equal(t, 0, rec.count())

	now := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	lastRun := map[string]time.Time{"*/1 * * * *": now.Add(-time.Minute)}
	m.pollSchedules(now, lastRun)

	assert.Equal(t, 1, rec.count(), "a due cron tick should flush the scheduled queue")
}
