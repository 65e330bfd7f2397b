package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortitude "github.com/99souls/fortitude"
)

func TestTracker_RejectsNonMonotonicPercent(t *testing.T) {
	tr := New()
	require.NoError(t, tr.RecordStep("t1", StageGapIdentification, 10, nil))
	require.NoError(t, tr.RecordStep("t1", StageProviderSelection, 40, nil))

	err := tr.RecordStep("t1", StageResearchExecution, 20, nil)
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrInvalidInput, kind)
}

func TestTracker_GetReflectsLatestStep(t *testing.T) {
	tr := New()
	require.NoError(t, tr.RecordStep("t1", StageGapIdentification, 10, nil))
	require.NoError(t, tr.RecordStep("t1", StageScoring, 90, nil))

	summary, ok := tr.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StageScoring, summary.CurrentStage)
	assert.Equal(t, 90, summary.OverallPercent)
	assert.Len(t, summary.Steps, 2)
	assert.NotNil(t, summary.Steps[0].EndedAt, "earlier step should be closed once a later one starts")
}

func TestTracker_ExecutingOnlyListsOpenTasks(t *testing.T) {
	tr := New()
	require.NoError(t, tr.RecordStep("running", StageResearchExecution, 50, nil))
	require.NoError(t, tr.RecordStep("done", StageResultProcessing, 100, nil))
	tr.Complete("done")

	executing := tr.Executing()
	require.Len(t, executing, 1)
	assert.Equal(t, "running", executing[0].TaskID)
}

func TestTracker_UnknownTaskNotFound(t *testing.T) {
	tr := New()
	_, ok := tr.Get("missing")
	assert.False(t, ok)
}
