package monitor

import (
	"time"

	"github.com/99souls/fortitude/engine/ratelimit"
)

// tokenBucket is the File-Change Monitor's rate limiter, §4.1 step 3, backed
// by the shared token-bucket implementation also used by the Provider
// Manager's per-provider rate limits.
type tokenBucket = ratelimit.TokenBucket

func newTokenBucket(capacity float64, now time.Time) *tokenBucket {
	return ratelimit.NewPerSecond(capacity, now)
}
