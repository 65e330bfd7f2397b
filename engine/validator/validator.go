// Package validator implements the Semantic Validator (C3): for each gap,
// queries the knowledge store for similar prior content and marks gaps
// validated/suppressed, attaching related documents, §4.3.
package validator

import (
	"context"
	"sort"
	"strings"
	"time"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// SearchHit is one result from a SemanticSearch lookup.
type SearchHit struct {
	DocID      string
	Similarity float64
	Preview    string
}

// SemanticSearch is the read-side capability consumed from the Knowledge
// Store Adapter (C11), §4.11/§6.
type SemanticSearch interface {
	Similar(ctx context.Context, query string, threshold float64, limit int) ([]SearchHit, error)
}

// Config controls validation thresholds, §4.3.
type Config struct {
	MinContentLength       int
	MaxQueriesPerGap       int
	RelatedContentThreshold float64
	MaxRelatedDocuments    int
	SuppressionThreshold   float64
	SemanticPriorityWeight float64
	BatchSize              int
	MaxAnalysisTime        time.Duration
}

// Default returns the baseline configuration from §4.3.
func Default() Config {
	return Config{
		MinContentLength:        50,
		MaxQueriesPerGap:        3,
		RelatedContentThreshold: 0.7,
		MaxRelatedDocuments:     10,
		SuppressionThreshold:    0.85,
		SemanticPriorityWeight:  2.0,
		BatchSize:               10,
		MaxAnalysisTime:         100 * time.Millisecond,
	}
}

// ForPerformance returns the low-latency preset, §4.3.
func ForPerformance() Config {
	c := Default()
	c.BatchSize = 20
	c.MaxAnalysisTime = 50 * time.Millisecond
	c.MaxQueriesPerGap = 1
	return c
}

// ForAccuracy returns the thorough preset, §4.3.
func ForAccuracy() Config {
	c := Default()
	c.BatchSize = 5
	c.MaxAnalysisTime = 300 * time.Millisecond
	c.MaxQueriesPerGap = 3
	c.SuppressionThreshold = 0.8
	return c
}

// Validator validates batches of DetectedGap against a SemanticSearch store.
type Validator struct {
	cfg    Config
	search SemanticSearch
	clock  func() time.Time
}

// New constructs a Validator over the given search capability.
func New(cfg Config, search SemanticSearch) *Validator {
	return &Validator{cfg: cfg, search: search, clock: time.Now}
}

// ValidateBatch validates every gap, processing in cfg.BatchSize chunks, §4.3.
func (v *Validator) ValidateBatch(ctx context.Context, gaps []models.DetectedGap) ([]models.ValidatedGap, error) {
	out := make([]models.ValidatedGap, 0, len(gaps))
	batchSize := v.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(gaps)
	}
	for start := 0; start < len(gaps); start += batchSize {
		end := start + batchSize
		if end > len(gaps) {
			end = len(gaps)
		}
		for _, g := range gaps[start:end] {
			vg, err := v.validateOne(ctx, g)
			if err != nil {
				return out, err
			}
			out = append(out, vg)
		}
	}
	return out, nil
}

func (v *Validator) validateOne(ctx context.Context, gap models.DetectedGap) (models.ValidatedGap, error) {
	start := v.clock()

	query := buildQuery(gap)
	if len(query) < v.cfg.MinContentLength {
		return models.ValidatedGap{}, fortitude.New(fortitude.ErrQueryConstruction,
			"gap at %s:%d produced a query shorter than min_content_length", gap.FilePath, gap.Line)
	}

	deadline, cancel := context.WithTimeout(ctx, v.cfg.MaxAnalysisTime)
	defer cancel()

	var hits []SearchHit
	queries := v.cfg.MaxQueriesPerGap
	if queries <= 0 {
		queries = 1
	}
	timedOut := false
	for i := 0; i < queries; i++ {
		res, err := v.search.Similar(deadline, query, v.cfg.RelatedContentThreshold, v.cfg.MaxRelatedDocuments)
		if err != nil {
			if deadline.Err() != nil {
				timedOut = true
				break
			}
			return models.ValidatedGap{}, fortitude.Wrap(fortitude.ErrStorageError, err, "semantic search failed")
		}
		hits = append(hits, res...)
	}

	vg := buildValidatedGap(gap, query, hits, v.cfg)
	vg.AnalysisMS = v.clock().Sub(start).Milliseconds()
	if timedOut {
		vg.IsValidated = true
		vg.FeaturesUsed = append(vg.FeaturesUsed, "timeout")
	}
	return vg, nil
}

// buildQuery assembles the semantic query text, §4.3 step 1.
func buildQuery(gap models.DetectedGap) string {
	parts := []string{gap.Description, string(gap.GapType)}
	for _, k := range sortedKeys(gap.Metadata) {
		parts = append(parts, gap.Metadata[k])
	}
	if gap.ContextSnippet != "" {
		parts = append(parts, gap.ContextSnippet)
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildValidatedGap(gap models.DetectedGap, query string, hits []SearchHit, cfg Config) models.ValidatedGap {
	vg := models.ValidatedGap{DetectedGap: gap, QueryUsed: query}

	if len(hits) == 0 {
		vg.IsValidated = true
		vg.ValidationConfidence = 0.9
		vg.EnhancedPriority = enhancedPriority(gap.Priority, 1.0, cfg.SemanticPriorityWeight)
		return vg
	}

	maxSim := 0.0
	for _, h := range hits {
		if h.Similarity > maxSim {
			maxSim = h.Similarity
		}
		vg.RelatedDocuments = append(vg.RelatedDocuments, models.RelatedDocument{
			DocID:        h.DocID,
			Similarity:   h.Similarity,
			Relationship: classifyRelationship(h.Preview),
		})
	}

	vg.IsValidated = maxSim < cfg.SuppressionThreshold
	vg.ValidationConfidence = 1 - maxSim
	vg.EnhancedPriority = enhancedPriority(gap.Priority, 1-maxSim, cfg.SemanticPriorityWeight)
	return vg
}

// classifyRelationship implements §4.3 step 3's keyword heuristic.
func classifyRelationship(preview string) models.RelationshipKind {
	lower := strings.ToLower(preview)
	if strings.Contains(lower, "example") || strings.Contains(lower, "implementation") {
		return models.RelationImplementationPattern
	}
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "[") {
		return models.RelationReference
	}
	return models.RelationTopical
}

// enhancedPriority implements §4.3 step 5.
func enhancedPriority(base int, coverage float64, weight float64) int {
	bonus := roundHalfAwayFromZero(weight * coverage)
	p := base + int(bonus)
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int(v + 0.5))
	}
	return float64(int(v - 0.5))
}
