package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/fortitude/engine/models"
)

type fakeSearch struct {
	hits []SearchHit
	err  error
}

func (f *fakeSearch) Similar(ctx context.Context, query string, threshold float64, limit int) ([]SearchHit, error) {
	return f.hits, f.err
}

// E1: exact duplicate suppression.
func TestValidateBatch_E1_ExactDuplicateSuppression(t *testing.T) {
	search := &fakeSearch{hits: []SearchHit{
		{DocID: "doc-1", Similarity: 0.93, Preview: "Async error handling in Rust using Result and ?"},
	}}
	v := New(Default(), search)

	gap := models.DetectedGap{
		GapType:     models.GapTodoComment,
		FilePath:    "src/lib.rs",
		Line:        42,
		Description: "TODO: Implement async error handling",
		Priority:    9,
		Metadata:    map[string]string{"marker": "TODO"},
	}

	out, err := v.ValidateBatch(context.Background(), []models.DetectedGap{gap})
	require.NoError(t, err)
	require.Len(t, out, 1)

	vg := out[0]
	assert.False(t, vg.IsValidated)
	assert.LessOrEqual(t, vg.ValidationConfidence, 0.07)
	assert.NotEmpty(t, vg.RelatedDocuments)
}

// E2: unique gap promotion.
func TestValidateBatch_E2_UniqueGapPromotion(t *testing.T) {
	search := &fakeSearch{hits: nil}
	cfg := Default()
	v := New(cfg, search)

	gap := models.DetectedGap{
		GapType:     models.GapTodoComment,
		FilePath:    "src/lib.rs",
		Line:        10,
		Description: "TODO: Implement quantum computing interface",
		Priority:    5,
		Metadata:    map[string]string{"marker": "TODO"},
	}

	out, err := v.ValidateBatch(context.Background(), []models.DetectedGap{gap})
	require.NoError(t, err)
	require.Len(t, out, 1)

	vg := out[0]
	assert.True(t, vg.IsValidated)
	assert.GreaterOrEqual(t, vg.ValidationConfidence, 0.8)
	wantPriority := 5 + int(cfg.SemanticPriorityWeight+0.5)
	assert.Equal(t, wantPriority, vg.EnhancedPriority)
}

func TestValidateBatch_ShortGapErrorsQueryConstruction(t *testing.T) {
	v := New(Default(), &fakeSearch{})
	gap := models.DetectedGap{Description: "short"}
	_, err := v.ValidateBatch(context.Background(), []models.DetectedGap{gap})
	require.Error(t, err)
}

func TestClassifyRelationship(t *testing.T) {
	assert.Equal(t, models.RelationImplementationPattern, classifyRelationship("see this example implementation"))
	assert.Equal(t, models.RelationReference, classifyRelationship("see https://example.com"))
	assert.Equal(t, models.RelationTopical, classifyRelationship("a general overview"))
}
