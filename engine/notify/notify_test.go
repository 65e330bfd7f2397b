package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
	"github.com/99souls/fortitude/engine/notify/channels"
)

type fakeStore struct {
	profiles map[string]models.UserProfile
}

func (s *fakeStore) Get(id string) (models.UserProfile, bool) {
	p, ok := s.profiles[id]
	return p, ok
}

type recordingChannel struct {
	mu  sync.Mutex
	got []models.Notification
}

func (r *recordingChannel) Deliver(_ context.Context, n models.Notification, _ models.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func cliChannel() models.Channel { return models.Channel{Kind: models.ChannelCLI} }

func TestManager_RejectsSendBeforeStart(t *testing.T) {
	m := NewManager(&fakeStore{profiles: map[string]models.UserProfile{}}, DefaultConfig())
	_, err := m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyInfo})
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrNotInitialized, kind)
}

func TestManager_DisabledTypeSettingIsFiltered(t *testing.T) {
	store := &fakeStore{profiles: map[string]models.UserProfile{
		"u1": {ID: "u1", Preferences: models.Preferences{
			Frequency:       models.NewImmediateFrequency(),
			DefaultChannels: []models.Channel{cliChannel()},
			TypeSettings: map[models.NotificationType]models.TypeSettings{
				models.NotifyDebug: {Enabled: false},
			},
		}},
	}}
	m := NewManager(store, DefaultConfig())
	m.Start()
	defer m.Stop(context.Background())

	outcome, err := m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyDebug})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFiltered, outcome)
	assert.Equal(t, 1, m.Filtered())
}

// E6: quiet hours with drop_during_quiet=true drop an Immediate Info
// notification, and a priority override with override_quiet_hours=true
// still delivers an Error notification during the same window.
func TestManager_E6_QuietHoursDropThenPriorityOverrideDelivers(t *testing.T) {
	rec := &recordingChannel{}
	store := &fakeStore{profiles: map[string]models.UserProfile{
		"u1": {ID: "u1", Preferences: models.Preferences{
			Frequency:        models.NewImmediateFrequency(),
			DefaultChannels:  []models.Channel{cliChannel()},
			GlobalQuietHours: &models.TimeWindow{Start: "22:00", End: "07:00"},
			ChannelSettings: map[models.ChannelKind]models.ChannelSettings{
				models.ChannelCLI: {DropDuringQuiet: true},
			},
			PriorityOverrides: map[models.NotificationType]models.PriorityOverride{
				models.NotifyError: {AlwaysSend: true, OverrideQuietHours: true},
			},
		}},
	}}
	m := NewManager(store, DefaultConfig())
	m.WithChannel(models.ChannelCLI, rec)
	m.clock = func() time.Time {
		return time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	}
	m.Start()
	defer m.Stop(context.Background())

	outcome, err := m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyInfo, Title: "info"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome, "Send still reports Delivered; the drop happens per-channel inside dispatch")
	assert.Equal(t, 0, rec.count(), "quiet hours + drop_during_quiet should suppress delivery")
	assert.Equal(t, 1, m.DroppedQuietHours())

	outcome, err = m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyError, Title: "error"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, 1, rec.count(), "override_quiet_hours should bypass the quiet-hours drop")
}

func TestManager_BatchedFlushesOnSize(t *testing.T) {
	rec := &recordingChannel{}
	batched, err := models.NewBatchedFrequency(2, time.Hour)
	require.NoError(t, err)
	store := &fakeStore{profiles: map[string]models.UserProfile{
		"u1": {ID: "u1", Preferences: models.Preferences{
			Frequency:       batched,
			DefaultChannels: []models.Channel{cliChannel()},
			TypeSettings: map[models.NotificationType]models.TypeSettings{
				models.NotifyInfo: {Enabled: true},
			},
		}},
	}}

	m := NewManager(store, DefaultConfig())
	m.WithChannel(models.ChannelCLI, rec)
	m.Start()
	defer m.Stop(context.Background())

	outcome, err := m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyInfo, Title: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)
	assert.Equal(t, 0, rec.count(), "first of two should still be queued")

	_, err = m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyInfo, Title: "2"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond,
		"reaching the batch size should flush both items")
}

func TestManager_ChannelFailureIsolatedFromOtherChannels(t *testing.T) {
	good := &recordingChannel{}
	bad := failingChannel{}
	store := &fakeStore{profiles: map[string]models.UserProfile{
		"u1": {ID: "u1", Preferences: models.Preferences{
			Frequency: models.NewImmediateFrequency(),
			DefaultChannels: []models.Channel{
				{Kind: models.ChannelCLI},
				{Kind: models.ChannelAPI, Endpoint: "http://example.invalid/hook"},
			},
		}},
	}}
	m := NewManager(store, DefaultConfig())
	m.WithChannel(models.ChannelCLI, good)
	m.WithChannel(models.ChannelAPI, bad)
	m.Start()
	defer m.Stop(context.Background())

	_, err := m.Send(context.Background(), "u1", models.Notification{Type: models.NotifyInfo, Title: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 1, good.count())
	stats := m.ChannelStats()
	assert.Equal(t, 1, stats[models.ChannelCLI].Success)
	assert.Equal(t, 1, stats[models.ChannelAPI].Failure)
}

type failingChannel struct{}

func (failingChannel) Deliver(context.Context, models.Notification, models.Channel) error {
	return fortitude.New(fortitude.ErrServiceUnavailable, "boom")
}

var _ channels.Deliverer = failingChannel{}
