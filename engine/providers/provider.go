// Package providers implements the Provider Manager (C5): a pool of LLM
// research backends selected, rate-limited, and circuit-broken per call,
// then composed into a tasks.Executor for the scheduler. Retries of
// retryable failures are left to the scheduler.
package providers

import (
	"context"
	"time"

	"github.com/99souls/fortitude/engine/models"
)

// Provider is the capability contract every research backend satisfies, §4.5.
type Provider interface {
	Name() string
	ResearchQuery(ctx context.Context, query string) (string, error)
	Metadata() models.ProviderMetadata
	HealthCheck(ctx context.Context) models.HealthStatus
	EstimateCost(query string) models.CostEstimate
}

// UsageStats is a point-in-time snapshot of a provider's rolling stats,
// exposed for diagnostics and the §6 inspection surfaces.
type UsageStats struct {
	Provider string
	Stats    models.RollingStats
}

// clock abstracts time.Now for deterministic retry/backoff tests, matching
// the Clock pattern used by the File-Change Monitor.
type clock func() time.Time
