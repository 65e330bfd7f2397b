package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/99souls/fortitude/engine/models"
)

// effectiveSettings is the outcome of overlaying profile defaults,
// type-specific settings, contextual settings, and priority overrides,
// §4.9 step 1.
type effectiveSettings struct {
	Enabled            bool
	Channels           []models.Channel
	DetailLevel        string
	Frequency          models.Frequency
	OverrideQuietHours bool
	GlobalQuietHours   *models.TimeWindow
}

func resolveEffective(p models.Preferences, n models.Notification) effectiveSettings {
	eff := effectiveSettings{
		Enabled:          true,
		Channels:         p.DefaultChannels,
		DetailLevel:      p.DefaultDetailLevel,
		Frequency:        p.Frequency,
		GlobalQuietHours: p.GlobalQuietHours,
	}

	if ts, ok := p.TypeSettings[n.Type]; ok {
		overlayTypeSettings(&eff, ts)
	}
	if n.ContextKey != "" {
		if cs, ok := p.ContextualSettings[n.ContextKey]; ok {
			overlayTypeSettings(&eff, cs)
		}
	}
	if po, ok := p.PriorityOverrides[n.Type]; ok {
		if po.AlwaysSend {
			eff.Enabled = true
		}
		if po.OverrideQuietHours {
			eff.OverrideQuietHours = true
		}
		if po.OverrideFrequency != nil {
			eff.Frequency = *po.OverrideFrequency
		}
		if len(po.OverrideChannels) > 0 {
			eff.Channels = po.OverrideChannels
		}
	}
	return eff
}

func overlayTypeSettings(eff *effectiveSettings, ts models.TypeSettings) {
	eff.Enabled = ts.Enabled
	if len(ts.Channels) > 0 {
		eff.Channels = ts.Channels
	}
	if ts.DetailLevel != "" {
		eff.DetailLevel = ts.DetailLevel
	}
}

// inQuietWindow reports whether now's UTC time-of-day falls inside w,
// handling windows that wrap past midnight (e.g. 22:00-07:00).
func inQuietWindow(now time.Time, w *models.TimeWindow) bool {
	if w == nil {
		return false
	}
	start, ok := parseHHMM(w.Start)
	if !ok {
		return false
	}
	end, ok := parseHHMM(w.End)
	if !ok {
		return false
	}
	cur := now.UTC().Hour()*60 + now.UTC().Minute()

	if start == end {
		return false
	}
	if start < end {
		return cur >= start && cur < end
	}
	// wraps past midnight
	return cur >= start || cur < end
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
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
