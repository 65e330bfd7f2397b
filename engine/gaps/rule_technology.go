package gaps

import (
	"path"
	"regexp"
	"strings"

	"github.com/99souls/fortitude/engine/models"
)

// importRE matches a single quoted Go import path, one per line (covers both
// single-line `import "x"` and lines inside an `import (...)` block).
var importRE = regexp.MustCompile(`"([^"]+)"`)

// knownNoFlag is a coarse allowlist; anything else is a "technology"
// worth flagging for familiarity validation downstream (C3/C11 decide
// whether it's genuinely unfamiliar — C2 only flags, per §4.2).
var knownNoFlag = map[string]bool{
	"fmt": true, "os": true, "strings": true, "strconv": true, "time": true,
	"errors": true, "context": true, "sync": true, "io": true, "bytes": true,
	"net/http": true, "encoding/json": true, "testing": true, "sort": true,
	"regexp": true, "path": true, "path/filepath": true, "math": true,
}

// technologyRule flags an import whose package is not in the always-known
// set, leaving final suppression to the Semantic Validator (C3), §4.2.
type technologyRule struct{}

func newTechnologyRule() *technologyRule { return &technologyRule{} }

func (r *technologyRule) Name() string { return "undocumented_technology" }

func (r *technologyRule) Detect(file FileContent) []models.DetectedGap {
	var gaps []models.DetectedGap
	inBlock := false
	for i, line := range file.Lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		case inBlock, strings.HasPrefix(trimmed, "import "):
			m := importRE.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			pkg := m[1]
			if knownNoFlag[pkg] || !strings.Contains(pkg, ".") {
				continue // stdlib paths never contain a dot in their first segment
			}
			name := path.Base(pkg)
			gaps = append(gaps, models.DetectedGap{
				GapType:        models.GapUndocumentedTechnology,
				FilePath:       file.Path,
				Line:           i + 1,
				ContextSnippet: trimmed,
				Description:    "external package '" + name + "' may need documentation",
				Confidence:     0.6,
				Priority:       priorityFor("undocumented_technology", 0.6),
				Metadata:       map[string]string{"package": pkg, "name": name},
			})
		}
	}
	return gaps
}
