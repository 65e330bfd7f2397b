package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

func TestScorer_EmptyInputsAreInvalid(t *testing.T) {
	s := New()
	_, err := s.Score("", "something", models.DefaultWeights(), nil)
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)

	_, err = s.Score("query", "   ", models.DefaultWeights(), nil)
	require.Error(t, err)
}

func TestScorer_CompositeWithinBounds(t *testing.T) {
	s := New()
	score, err := s.Score(
		"What is the token bucket rate limiting algorithm?",
		"# Rate Limiting\n\nA token bucket refills continuously from elapsed wall time. "+
			"See https://example.com/token-bucket for details. It holds up to 100 tokens "+
			"and refills at 10 tokens per second.\n\n- simple\n- deterministic\n",
		models.DefaultWeights(),
		&Context{Domain: "networking"},
	)
	require.NoError(t, err)

	for _, dim := range []float64{score.Relevance, score.Accuracy, score.Completeness, score.Clarity, score.Credibility, score.Timeliness, score.Specificity, score.Composite} {
		assert.GreaterOrEqual(t, dim, 0.0)
		assert.LessOrEqual(t, dim, 1.0)
	}
}

func TestScorer_DeterministicForSameInputs(t *testing.T) {
	s := New()
	q := "explain debounce coalescing"
	r := "Debounce coalescing merges a burst of rapid events into a single emission after a quiet period."
	w := models.ResearchOptimizedWeights()

	first, err := s.Score(q, r, w, nil)
	require.NoError(t, err)
	second, err := s.Score(q, r, w, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScorer_CompositeMatchesWeightedSum(t *testing.T) {
	s := New()
	w := models.DefaultWeights()
	score, err := s.Score("a query about testing", "a response with enough words to be reasonably complete and clear for scoring purposes here", w, nil)
	require.NoError(t, err)

	expected := models.Composite(score, w)
	assert.InDelta(t, expected, score.Composite, 1e-9)
}

func TestScorer_SparseResponseScoresLowerCompleteness(t *testing.T) {
	s := New()
	w := models.DefaultWeights()
	short, err := s.Score("explain rate limiting", "ok", w, nil)
	require.NoError(t, err)
	long, err := s.Score(
		"explain rate limiting",
		"Rate limiting bounds the number of operations permitted in a window of time, typically implemented with a token bucket or sliding window counter that tracks consumption and rejects requests once the budget is exhausted until it refills.",
		w, nil,
	)
	require.NoError(t, err)

	assert.Less(t, short.Completeness, long.Completeness)
}
