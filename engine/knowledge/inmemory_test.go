package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/fortitude/engine/models"
)

func TestInMemoryBackend_StoreThenSimilarFindsOverlappingContent(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	_, err := b.Store(ctx, "the rate limiter refills tokens continuously over time", models.DocumentMetadata{ContentType: "research_result"})
	require.NoError(t, err)
	_, err = b.Store(ctx, "how to bake sourdough bread at home", models.DocumentMetadata{ContentType: "research_result"})
	require.NoError(t, err)

	results, err := b.Similar(ctx, "does the token bucket refill over time", models.SimilarOptions{Threshold: 0.1, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Preview, "rate limiter")
}

func TestInMemoryBackend_FiltersByContentType(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	id, err := b.Store(ctx, "shared vocabulary words here", models.DocumentMetadata{ContentType: "note"})
	require.NoError(t, err)
	_, err = b.Store(ctx, "shared vocabulary words here too", models.DocumentMetadata{ContentType: "research_result"})
	require.NoError(t, err)

	results, err := b.Similar(ctx, "shared vocabulary words", models.SimilarOptions{
		Threshold: 0,
		Limit:     5,
		Filters:   map[string]string{"content_type": "note"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].DocID)
}

func TestInMemoryBackend_DeleteRemovesDocument(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	id, err := b.Store(ctx, "some unique content about gophers", models.DocumentMetadata{})
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, id))

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocCount)
}

func TestInMemoryBackend_ResultsAreSortedBySimilarityDescending(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	_, err := b.Store(ctx, "gopher gopher gopher go go", models.DocumentMetadata{})
	require.NoError(t, err)
	_, err = b.Store(ctx, "gopher unrelated words filler content padding", models.DocumentMetadata{})
	require.NoError(t, err)

	results, err := b.Similar(ctx, "gopher go", models.SimilarOptions{Threshold: 0, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}
