package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/99souls/fortitude/engine/models"
)

// PromptBuilder renders a prompt from a research query and context hints,
// the capability contract consumed (not implemented) by the core per §6.
type PromptBuilder interface {
	Build(researchType, audience, domain, query string) string
}

// templatePromptBuilder is a minimal PromptBuilder used when no richer one is
// configured; it renders the same structured template the Claude Code
// provider sends downstream.
type templatePromptBuilder struct{}

func (templatePromptBuilder) Build(researchType, audience, domain, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Request\n\n")
	if researchType != "" {
		fmt.Fprintf(&sb, "Type: %s\n", researchType)
	}
	if audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", audience)
	}
	if domain != "" {
		fmt.Fprintf(&sb, "Domain: %s\n", domain)
	}
	fmt.Fprintf(&sb, "\nQuery: %s\n", query)
	return sb.String()
}

// ClaudeCodeConfig configures the templated structured-response provider.
type ClaudeCodeConfig struct {
	Name         string
	Builder      PromptBuilder
	Runner       func(ctx context.Context, prompt string) (string, error)
	QualityPrior float64 // stored only; Manager.Register seeds QualityEMA from its own qualityPrior argument and does not read this field
}

// ClaudeCodeProvider renders a structured prompt template and dispatches it
// through a pluggable Runner (typically a local CLI invocation), returning
// the raw structured text. It participates in selection and EMA updates
// exactly like a network-backed provider.
type ClaudeCodeProvider struct {
	cfg ClaudeCodeConfig
}

// NewClaudeCodeProvider constructs a ClaudeCodeProvider, defaulting Builder
// to the built-in template and QualityPrior to 0.5 if unset.
func NewClaudeCodeProvider(cfg ClaudeCodeConfig) *ClaudeCodeProvider {
	if cfg.Builder == nil {
		cfg.Builder = templatePromptBuilder{}
	}
	if cfg.QualityPrior <= 0 {
		cfg.QualityPrior = 0.5
	}
	return &ClaudeCodeProvider{cfg: cfg}
}

func (p *ClaudeCodeProvider) Name() string { return p.cfg.Name }

func (p *ClaudeCodeProvider) ResearchQuery(ctx context.Context, query string) (string, error) {
	prompt := p.cfg.Builder.Build("research", "", "", query)
	if p.cfg.Runner == nil {
		return "", fmt.Errorf("claudecode provider %s has no runner configured", p.cfg.Name)
	}
	return p.cfg.Runner(ctx, prompt)
}

func (p *ClaudeCodeProvider) Metadata() models.ProviderMetadata {
	return models.ProviderMetadata{
		Name:         p.cfg.Name,
		Models:       []string{"claude-code-template"},
		Capabilities: []string{"research", "structured-output"},
		Limits: models.ProviderLimits{
			RequestsPerMinute:  30,
			InputTokensPerMin:  100_000,
			OutputTokensPerMin: 50_000,
			MaxConcurrent:      4,
			ContextLength:      100_000,
		},
	}
}

func (p *ClaudeCodeProvider) HealthCheck(ctx context.Context) models.HealthStatus {
	if p.cfg.Runner == nil {
		return models.HealthStatus{Kind: models.HealthUnhealthy, Message: "no runner configured"}
	}
	return models.HealthStatus{Kind: models.HealthHealthy}
}

func (p *ClaudeCodeProvider) EstimateCost(query string) models.CostEstimate {
	toks := len(strings.Fields(query))
	return models.CostEstimate{InputTokens: toks * 2, OutputTokens: toks * 3, Duration: 3 * time.Second}
}
