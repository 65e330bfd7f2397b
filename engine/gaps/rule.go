// Package gaps implements the Gap Detector (C2): a rule-driven scan of
// changed files producing DetectedGap records, §4.2.
package gaps

import "github.com/99souls/fortitude/engine/models"

// FileContent is the minimal view of a source file a Rule needs.
type FileContent struct {
	Path  string
	Lines []string
}

// Rule produces zero or more gaps for a single file.
type Rule interface {
	Name() string
	Detect(file FileContent) []models.DetectedGap
}

// ruleWeight scales a rule's confidence into a gap's base priority, §4.2:
// priority = round(10 * confidence * rule_weight).
var ruleWeight = map[string]float64{
	"todo_comment":           1.0,
	"missing_documentation":  0.9,
	"undocumented_technology": 0.7,
	"api_documentation_gap":  0.85,
}

func priorityFor(ruleName string, confidence float64) int {
	w := ruleWeight[ruleName]
	if w == 0 {
		w = 1.0
	}
	p := int(roundHalfAwayFromZero(10 * confidence * w))
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
