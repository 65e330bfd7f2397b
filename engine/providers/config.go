package providers

import (
	"time"

	"github.com/99souls/fortitude/engine/models"
)

// FallbackStrategy orders candidate providers when the manager must advance
// past the primary selection, §4.5.
type FallbackStrategy string

const (
	StrategyPriority        FallbackStrategy = "Priority"
	StrategyRoundRobin      FallbackStrategy = "RoundRobin"
	StrategyLeastLoaded     FallbackStrategy = "LeastLoaded"
	StrategyFastestResponse FallbackStrategy = "FastestResponse"
)

// Config controls the Provider Manager's selection and cross-validation
// behavior, §4.5. Retry scheduling on a retryable error is not configured
// here: it belongs to the Scheduler's own AwaitingRetry/backoff path (C4,
// §4.4), since a retryable failure is surfaced to the caller rather than
// retried in place (see Manager.Execute).
type Config struct {
	Strategy               FallbackStrategy
	EnableCrossValidation  bool
	QualityPriorityWeight  float64
	CostPriorityWeight     float64
	CrossValidationWeights models.QualityWeights
	BreakerMaxRequests     uint32
	BreakerInterval        time.Duration
	BreakerTimeout         time.Duration
	BreakerTripThreshold   uint32
}

// DefaultConfig returns production defaults, §4.5.
func DefaultConfig() Config {
	return Config{
		Strategy:               StrategyPriority,
		EnableCrossValidation:  false,
		QualityPriorityWeight:  0.7,
		CostPriorityWeight:     0.3,
		CrossValidationWeights: models.DefaultWeights(),
		BreakerMaxRequests:     1,
		BreakerInterval:        60 * time.Second,
		BreakerTimeout:         30 * time.Second,
		BreakerTripThreshold:   5,
	}
}
