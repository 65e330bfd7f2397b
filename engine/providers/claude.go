package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// ClaudeConfig configures the anthropic-backed provider.
type ClaudeConfig struct {
	Name           string
	APIKey         string
	Model          anthropic.Model
	MaxTokens      int64
	ContextLength  int
	Specialization string
	CallTimeout    time.Duration
}

// DefaultClaudeConfig returns sane production defaults for a single
// anthropic-backed provider instance.
func DefaultClaudeConfig(name, apiKey string) ClaudeConfig {
	return ClaudeConfig{
		Name:          name,
		APIKey:        apiKey,
		Model:         anthropic.ModelClaude3_5SonnetLatest,
		MaxTokens:     4096,
		ContextLength: 200_000,
		CallTimeout:   45 * time.Second,
	}
}

// ClaudeProvider dispatches research queries to the Anthropic Messages API.
type ClaudeProvider struct {
	cfg    ClaudeConfig
	client anthropic.Client
}

// NewClaudeProvider constructs a ClaudeProvider from cfg.
func NewClaudeProvider(cfg ClaudeConfig) *ClaudeProvider {
	return &ClaudeProvider{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
	}
}

func (p *ClaudeProvider) Name() string { return p.cfg.Name }

func (p *ClaudeProvider) ResearchQuery(ctx context.Context, query string) (string, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}

	msg, err := p.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return "", classifyAnthropicErr(p.cfg.Name, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fortitude.New(fortitude.ErrQueryFailed, "claude returned no text content").WithProvider(p.cfg.Name)
	}
	return sb.String(), nil
}

func (p *ClaudeProvider) Metadata() models.ProviderMetadata {
	return models.ProviderMetadata{
		Name:           p.cfg.Name,
		Models:         []string{string(p.cfg.Model)},
		Capabilities:   []string{"research", "summarization"},
		Specialization: p.cfg.Specialization,
		Limits: models.ProviderLimits{
			RequestsPerMinute:  50,
			InputTokensPerMin:  100_000,
			OutputTokensPerMin: 50_000,
			MaxConcurrent:      8,
			ContextLength:      p.cfg.ContextLength,
		},
	}
}

func (p *ClaudeProvider) HealthCheck(ctx context.Context) models.HealthStatus {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     p.cfg.Model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return models.HealthStatus{Kind: models.HealthUnhealthy, Message: err.Error()}
	}
	return models.HealthStatus{Kind: models.HealthHealthy}
}

func (p *ClaudeProvider) EstimateCost(query string) models.CostEstimate {
	inToks := len(strings.Fields(query)) * 2
	return models.CostEstimate{
		InputTokens:  inToks,
		OutputTokens: int(p.cfg.MaxTokens) / 4,
		Duration:     2 * time.Second,
	}
}

func classifyAnthropicErr(provider string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return fortitude.Wrap(fortitude.ErrAuthenticationFail, err, "anthropic authentication failed").WithProvider(provider)
		case 429:
			return fortitude.Wrap(fortitude.ErrRateLimitExceeded, err, "anthropic rate limit exceeded").WithProvider(provider)
		case 529, 503:
			return fortitude.Wrap(fortitude.ErrServiceUnavailable, err, "anthropic service unavailable").WithProvider(provider)
		}
	}
	return fortitude.Wrap(fortitude.ErrQueryFailed, err, "anthropic request failed").WithProvider(provider)
}
