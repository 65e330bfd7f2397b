package gaps

import (
	"regexp"
	"strings"

	"github.com/99souls/fortitude/engine/models"
)

// todoRule flags TODO/FIXME/HACK comments, §4.2.
type todoRule struct {
	re *regexp.Regexp
}

func newTODORule() *todoRule {
	return &todoRule{
		re: regexp.MustCompile(`(?i)(?://|#|/\*)\s*(TODO|FIXME|HACK)\b[:\s]*(.*)`),
	}
}

func (r *todoRule) Name() string { return "todo_comment" }

func (r *todoRule) Detect(file FileContent) []models.DetectedGap {
	var gaps []models.DetectedGap
	for i, line := range file.Lines {
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		marker := strings.ToUpper(m[1])
		desc := strings.TrimSpace(m[2])
		if desc == "" {
			desc = marker
		}
		confidence := 0.9
		if marker == "HACK" {
			confidence = 0.75
		}
		gaps = append(gaps, models.DetectedGap{
			GapType:        models.GapTodoComment,
			FilePath:       file.Path,
			Line:           i + 1,
			ContextSnippet: strings.TrimSpace(line),
			Description:    marker + ": " + desc,
			Confidence:     confidence,
			Priority:       priorityFor("todo_comment", confidence),
			Metadata:       map[string]string{"marker": marker},
		})
	}
	return gaps
}
