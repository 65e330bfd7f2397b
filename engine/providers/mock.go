package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/99souls/fortitude/engine/models"
)

// MockProvider is a deterministic in-memory provider used by tests and as a
// safe default fallback when no real backend is configured.
type MockProvider struct {
	name     string
	meta     models.ProviderMetadata
	health   models.HealthStatus
	response string
	err      error
	delay    time.Duration
}

// NewMockProvider constructs a MockProvider that always succeeds, echoing a
// canned response built from the query.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:   name,
		health: models.HealthStatus{Kind: models.HealthHealthy},
		meta: models.ProviderMetadata{
			Name:   name,
			Models: []string{"mock-1"},
			Limits: models.ProviderLimits{
				RequestsPerMinute:  1000,
				InputTokensPerMin:  1_000_000,
				OutputTokensPerMin: 1_000_000,
				MaxConcurrent:      100,
				ContextLength:      32000,
			},
		},
	}
}

// WithResponse fixes the text MockProvider returns.
func (m *MockProvider) WithResponse(text string) *MockProvider {
	m.response = text
	return m
}

// WithError makes every call to ResearchQuery fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.err = err
	return m
}

// WithHealth overrides the reported health.
func (m *MockProvider) WithHealth(h models.HealthStatus) *MockProvider {
	m.health = h
	return m
}

// WithDelay makes ResearchQuery sleep (respecting ctx) before returning.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.delay = d
	return m
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) ResearchQuery(ctx context.Context, query string) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return fmt.Sprintf("mock research result for: %s", strings.TrimSpace(query)), nil
}

func (m *MockProvider) Metadata() models.ProviderMetadata { return m.meta }

func (m *MockProvider) HealthCheck(ctx context.Context) models.HealthStatus { return m.health }

func (m *MockProvider) EstimateCost(query string) models.CostEstimate {
	toks := len(strings.Fields(query))
	return models.CostEstimate{InputTokens: toks, OutputTokens: toks * 2, Duration: 10 * time.Millisecond}
}
