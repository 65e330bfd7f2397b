package gaps

import (
	"regexp"
	"strings"

	"github.com/99souls/fortitude/engine/models"
)

// publicDeclRE matches an exported Go func/type/const/var declaration.
var publicDeclRE = regexp.MustCompile(`^(func|type|const|var)\s+([A-Z]\w*)`)

// minDocLength is the threshold below which an existing doc comment is
// considered an API documentation gap rather than adequate, §4.2.
const minDocLength = 40

// missingDocRule flags a missing doc comment immediately preceding a public
// declaration, §4.2.
type missingDocRule struct{}

func newMissingDocRule() *missingDocRule { return &missingDocRule{} }

func (r *missingDocRule) Name() string { return "missing_documentation" }

func (r *missingDocRule) Detect(file FileContent) []models.DetectedGap {
	var gaps []models.DetectedGap
	for i, line := range file.Lines {
		trimmed := strings.TrimSpace(line)
		m := publicDeclRE.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		if hasDocComment(file.Lines, i) {
			continue
		}
		gaps = append(gaps, models.DetectedGap{
			GapType:        models.GapMissingDocumentation,
			FilePath:       file.Path,
			Line:           i + 1,
			ContextSnippet: trimmed,
			Description:    "public " + m[1] + " '" + m[2] + "' lacks a doc comment",
			Confidence:     0.85,
			Priority:       priorityFor("missing_documentation", 0.85),
			Metadata:       map[string]string{"symbol": m[2], "kind": m[1]},
		})
	}
	return gaps
}

func hasDocComment(lines []string, declIndex int) bool {
	if declIndex == 0 {
		return false
	}
	prev := strings.TrimSpace(lines[declIndex-1])
	return strings.HasPrefix(prev, "//")
}

// apiDocGapRule flags a public signature whose doc comment exists but is
// shorter than minDocLength or lacks an example/params section, §4.2.
type apiDocGapRule struct{}

func newAPIDocGapRule() *apiDocGapRule { return &apiDocGapRule{} }

func (r *apiDocGapRule) Name() string { return "api_documentation_gap" }

func (r *apiDocGapRule) Detect(file FileContent) []models.DetectedGap {
	var gaps []models.DetectedGap
	for i, line := range file.Lines {
		trimmed := strings.TrimSpace(line)
		m := publicDeclRE.FindStringSubmatch(trimmed)
		if m == nil || m[1] != "func" {
			continue
		}
		docLines, start := collectDocComment(file.Lines, i)
		if docLines == "" {
			continue // missingDocRule already covers the no-doc case
		}
		hasExampleOrParams := strings.Contains(strings.ToLower(docLines), "example") ||
			strings.Contains(strings.ToLower(docLines), "param")
		if len(docLines) >= minDocLength && hasExampleOrParams {
			continue
		}
		gaps = append(gaps, models.DetectedGap{
			GapType:        models.GapAPIDocumentationGap,
			FilePath:       file.Path,
			Line:           start + 1,
			ContextSnippet: trimmed,
			Description:    "doc comment for '" + m[2] + "' is too short or lacks an example/params section",
			Confidence:     0.7,
			Priority:       priorityFor("api_documentation_gap", 0.7),
			Metadata:       map[string]string{"symbol": m[2]},
		})
	}
	return gaps
}

func collectDocComment(lines []string, declIndex int) (string, int) {
	end := declIndex - 1
	start := end
	for start >= 0 && strings.HasPrefix(strings.TrimSpace(lines[start]), "//") {
		start--
	}
	start++
	if start > end {
		return "", declIndex
	}
	var b strings.Builder
	for i := start; i <= end; i++ {
		b.WriteString(lines[i])
		b.WriteString("\n")
	}
	return b.String(), start
}
