package gaps

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/99souls/fortitude/engine/models"
)

// Config controls the Detector's size limit, §4.2.
type Config struct {
	MaxFileSizeMB int64
}

func DefaultConfig() Config { return Config{MaxFileSizeMB: 50} }

// Detector runs all registered rules over a file and merges their output.
type Detector struct {
	cfg   Config
	rules []Rule
}

// New constructs a Detector with the standard rule set from §4.2.
func New(cfg Config) *Detector {
	return &Detector{
		cfg: cfg,
		rules: []Rule{
			newTODORule(),
			newMissingDocRule(),
			newAPIDocGapRule(),
			newTechnologyRule(),
		},
	}
}

// AnalyzeFile reads path, skips it if binary or oversized, runs every rule,
// and returns the merged, file-ordered, de-duplicated gaps, §4.2.
func (d *Detector) AnalyzeFile(path string) ([]models.DetectedGap, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	maxBytes := d.cfg.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isBinary(data) {
		return nil, nil
	}

	content := FileContent{Path: path, Lines: strings.Split(string(data), "\n")}
	return d.AnalyzeContent(content), nil
}

// AnalyzeContent runs every rule directly over already-loaded content,
// useful for tests and for callers that already hold the bytes in memory.
func (d *Detector) AnalyzeContent(content FileContent) []models.DetectedGap {
	var all []models.DetectedGap
	for _, rule := range d.rules {
		all = append(all, rule.Detect(content)...)
	}
	return dedupeByLine(all)
}

// isBinary scans the first 8KiB for a null byte, §4.2.
func isBinary(data []byte) bool {
	limit := 8192
	if len(data) < limit {
		limit = len(data)
	}
	return bytes.IndexByte(data[:limit], 0) != -1
}

// dedupeByLine collapses gaps sharing a file+line, keeping the
// highest-confidence one, and returns the survivors in file order (by path,
// then line), §4.2.
func dedupeByLine(gaps []models.DetectedGap) []models.DetectedGap {
	type key struct {
		path string
		line int
	}
	best := make(map[key]models.DetectedGap)
	order := make([]key, 0, len(gaps))
	for _, g := range gaps {
		k := key{g.FilePath, g.Line}
		existing, ok := best[k]
		if !ok {
			order = append(order, k)
			best[k] = g
			continue
		}
		if g.Confidence > existing.Confidence {
			best[k] = g
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].path != order[j].path {
			return order[i].path < order[j].path
		}
		return order[i].line < order[j].line
	})
	out := make([]models.DetectedGap, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
