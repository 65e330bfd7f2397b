package models

import (
	"time"

	fortitude "github.com/99souls/fortitude"
)

// Frequency is how often a notification type is delivered, §4.9 step 4.
type Frequency struct {
	Kind    FrequencyKind
	Size    int           // Batched
	Timeout time.Duration // Batched
	Cron    string        // Scheduled
}

type FrequencyKind string

const (
	FrequencyImmediate FrequencyKind = "Immediate"
	FrequencyBatched   FrequencyKind = "Batched"
	FrequencyScheduled FrequencyKind = "Scheduled"
	FrequencyDisabled  FrequencyKind = "Disabled"
)

// NewImmediateFrequency, NewBatchedFrequency, NewScheduledFrequency, and
// NewDisabledFrequency are the supported ways to build a Frequency: a struct
// literal can express a Batched{Size: 0}, which is not a valid batch, so
// construction is validated up front.
func NewImmediateFrequency() Frequency {
	return Frequency{Kind: FrequencyImmediate}
}

func NewBatchedFrequency(size int, timeout time.Duration) (Frequency, error) {
	if size <= 0 {
		return Frequency{}, fortitude.New(fortitude.ErrInvalidInput, "batched frequency size must be > 0, got %d", size)
	}
	if timeout <= 0 {
		return Frequency{}, fortitude.New(fortitude.ErrInvalidInput, "batched frequency timeout must be positive, got %s", timeout)
	}
	return Frequency{Kind: FrequencyBatched, Size: size, Timeout: timeout}, nil
}

func NewScheduledFrequency(cron string) (Frequency, error) {
	if cron == "" {
		return Frequency{}, fortitude.New(fortitude.ErrInvalidInput, "scheduled frequency requires a cron expression")
	}
	return Frequency{Kind: FrequencyScheduled, Cron: cron}, nil
}

func NewDisabledFrequency() Frequency {
	return Frequency{Kind: FrequencyDisabled}
}

// TimeWindow represents a recurring daily window in UTC, e.g. quiet hours or
// business hours, given as "HH:MM" strings.
type TimeWindow struct {
	Start string
	End   string
}

// TypeSettings holds per-gap/notification-type overrides.
type TypeSettings struct {
	Enabled      bool
	Channels     []Channel
	DetailLevel  string
}

// PriorityOverride forces specific delivery behavior for high-priority events.
type PriorityOverride struct {
	AlwaysSend         bool
	OverrideQuietHours bool
	OverrideFrequency  *Frequency
	OverrideChannels   []Channel
}

// ChannelSettings holds per-channel configuration such as its own quiet hours
// and whether deliveries are dropped during them. With DropDuringQuiet unset,
// deliveries inside quiet hours go out as usual; nothing is deferred.
type ChannelSettings struct {
	QuietHours      *TimeWindow
	DropDuringQuiet bool
}

// Preferences is the full configuration body of a UserProfile, §3/§4.10.
type Preferences struct {
	Frequency          Frequency
	DefaultChannels     []Channel
	DefaultDetailLevel string
	TypeSettings        map[NotificationType]TypeSettings
	// ContextualSettings overlays TypeSettings by an arbitrary caller-chosen
	// key (Notification.ContextKey), §4.9 step 1.
	ContextualSettings map[string]TypeSettings
	ChannelSettings    map[ChannelKind]ChannelSettings
	GlobalQuietHours   *TimeWindow
	BusinessHours      *TimeWindow
	PriorityOverrides  map[NotificationType]PriorityOverride
}

// UserProfile is a complete, atomically-persisted preference record, §3.
type UserProfile struct {
	ID          string
	Preferences Preferences
}
