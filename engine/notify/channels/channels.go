// Package channels implements one Deliverer per transport named in §4.9:
// CLI, File, API, and the additional Slack channel carried over from the
// domain stack. Each Deliverer is isolated: a failure in one never blocks
// another, matching the Notification System's per-channel counters.
package channels

import (
	"context"

	"github.com/99souls/fortitude/engine/models"
)

// Deliverer sends one notification to one concrete channel target.
type Deliverer interface {
	Deliver(ctx context.Context, n models.Notification, target models.Channel) error
}
