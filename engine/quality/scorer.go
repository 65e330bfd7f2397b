// Package quality implements the Quality Scorer (C6): a pure function that
// assesses a research response across seven dimensions with no provider or
// network dependency, so the Provider Manager (C5) can depend on it for
// cross-validation without forming an import cycle.
package quality

import (
	"math"
	"strings"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// Context carries optional hints; only Domain is read, and only by the
// timeliness heuristic. Weights are always the ones passed to Score, §4.6.
type Context struct {
	Domain   string
	Audience string
}

// Scorer computes QualityScore from cheap textual features only. It is
// stateless: every call is a pure function of its arguments.
type Scorer struct{}

// New constructs a Scorer.
func New() *Scorer { return &Scorer{} }

// Score computes the seven-dimension QualityScore for (query, response)
// under weights, deterministically and without side effects. Empty or
// whitespace-only query or response is rejected as InvalidInput.
func (s *Scorer) Score(query, response string, weights models.QualityWeights, ctx *Context) (models.QualityScore, error) {
	q := strings.TrimSpace(query)
	r := strings.TrimSpace(response)
	if q == "" || r == "" {
		return models.QualityScore{}, fortitude.New(fortitude.ErrInvalidInput, "query and response must be non-empty")
	}

	feat := extractFeatures(q, r)
	w := weights.Normalize()

	score := models.QualityScore{
		Relevance:    relevance(feat),
		Accuracy:     accuracy(feat),
		Completeness: completeness(feat),
		Clarity:      clarity(feat),
		Credibility:  credibility(feat),
		Timeliness:   timeliness(feat, ctx),
		Specificity:  specificity(feat),
	}
	score.Composite = models.Composite(score, w)
	return score, nil
}

// features holds the cheap textual measurements every dimension reads from,
// computed once per call so dimension functions stay O(1) over them.
type features struct {
	queryWords    []string
	responseWords []string
	sentences     int
	headings      int
	codeBlocks    int
	listItems     int
	citations     int
	hedgeWords    int
	numberTokens  int
	avgWordLen    float64
	avgSentenceLen float64
}

func extractFeatures(query, response string) features {
	qWords := strings.Fields(strings.ToLower(query))
	rWords := strings.Fields(response)
	lowerResp := strings.ToLower(response)

	f := features{
		queryWords:    qWords,
		responseWords: rWords,
		sentences:     countSentences(response),
		headings:      strings.Count(response, "\n#") + boolToInt(strings.HasPrefix(response, "#")),
		codeBlocks:    strings.Count(response, "```") / 2,
		listItems:     strings.Count(response, "\n- ") + strings.Count(response, "\n* "),
		citations:     strings.Count(lowerResp, "http://") + strings.Count(lowerResp, "https://") + strings.Count(response, "["),
		hedgeWords:    countAny(lowerResp, []string{"might", "maybe", "possibly", "perhaps", "unclear", "not sure"}),
	}

	totalLen := 0
	numbers := 0
	for _, w := range rWords {
		totalLen += len(w)
		if containsDigit(w) {
			numbers++
		}
	}
	if len(rWords) > 0 {
		f.avgWordLen = float64(totalLen) / float64(len(rWords))
	}
	f.numberTokens = numbers
	if f.sentences > 0 {
		f.avgSentenceLen = float64(len(rWords)) / float64(f.sentences)
	}
	return f
}

// relevance measures keyword overlap between query and response.
func relevance(f features) float64 {
	if len(f.queryWords) == 0 || len(f.responseWords) == 0 {
		return 0
	}
	respSet := make(map[string]struct{}, len(f.responseWords))
	for _, w := range f.responseWords {
		respSet[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] = struct{}{}
	}
	hits := 0
	for _, w := range f.queryWords {
		key := strings.Trim(w, ".,;:!?\"'()")
		if len(key) < 3 {
			continue
		}
		if _, ok := respSet[key]; ok {
			hits++
		}
	}
	return clamp01(float64(hits) / float64(len(f.queryWords)))
}

// accuracy penalizes hedging language, since a confident, unqualified answer
// is (heuristically, absent ground truth) more likely to be correct.
func accuracy(f features) float64 {
	score := 1.0
	if len(f.responseWords) > 0 {
		hedgeRatio := float64(f.hedgeWords) / float64(len(f.responseWords)) * 100
		score -= clamp01(hedgeRatio * 0.3)
	}
	return clamp01(score)
}

// completeness rewards longer, structurally developed responses up to a
// point of diminishing returns.
func completeness(f features) float64 {
	n := len(f.responseWords)
	score := 1.0
	switch {
	case n < 20:
		score -= 0.5
	case n < 60:
		score -= 0.25
	case n < 150:
		score -= 0.1
	}
	if f.headings == 0 && n > 200 {
		score -= 0.1
	}
	if f.listItems == 0 && f.codeBlocks == 0 && n > 200 {
		score -= 0.05
	}
	return clamp01(score)
}

// clarity rewards moderate sentence length; very long run-on sentences and
// degenerate single-word sentences both score lower.
func clarity(f features) float64 {
	if f.sentences == 0 {
		return 0.3
	}
	ideal := 18.0
	diff := math.Abs(f.avgSentenceLen - ideal)
	score := 1.0 - clamp01(diff/40.0)
	if f.avgWordLen > 8 {
		score -= 0.1 // dense/jargon-heavy vocabulary
	}
	return clamp01(score)
}

// credibility rewards citation-like markers and penalizes excessive hedging.
func credibility(f features) float64 {
	score := 0.5
	if f.citations > 0 {
		score += clamp01(float64(f.citations)/5.0) * 0.4
	}
	if f.hedgeWords > 3 {
		score -= 0.1
	}
	return clamp01(score)
}

// timeliness has no real temporal signal available from text alone; it
// returns a neutral baseline of 0.7, or 0.75 when ctx names a Domain. The
// response text is not examined.
func timeliness(f features, ctx *Context) float64 {
	score := 0.7
	if ctx != nil && ctx.Domain != "" {
		score = 0.75
	}
	return clamp01(score)
}

// specificity rewards concrete numbers and longer, more technical terms over
// generic vocabulary.
func specificity(f features) float64 {
	if len(f.responseWords) == 0 {
		return 0
	}
	numberRatio := float64(f.numberTokens) / float64(len(f.responseWords))
	score := clamp01(numberRatio*5) * 0.5
	if f.avgWordLen > 6 {
		score += 0.3
	} else if f.avgWordLen > 4.5 {
		score += 0.15
	}
	return clamp01(score)
}

func countSentences(s string) int {
	n := 0
	for _, r := range s {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	if n == 0 && strings.TrimSpace(s) != "" {
		return 1
	}
	return n
}

func countAny(haystack string, needles []string) int {
	n := 0
	for _, needle := range needles {
		n += strings.Count(haystack, needle)
	}
	return n
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
