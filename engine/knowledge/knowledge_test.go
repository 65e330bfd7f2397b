package knowledge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/fortitude/engine/models"
)

type fakeBackend struct {
	calls   int32
	results []models.SimilarResult
	docs    int
}

func (f *fakeBackend) Similar(context.Context, string, models.SimilarOptions) ([]models.SimilarResult, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.results, nil
}

func (f *fakeBackend) Store(context.Context, string, models.DocumentMetadata) (string, error) {
	f.docs++
	return "doc-1", nil
}

func (f *fakeBackend) Delete(context.Context, string) error {
	f.docs--
	return nil
}

func (f *fakeBackend) Stats(context.Context) (models.KnowledgeStats, error) {
	return models.KnowledgeStats{DocCount: f.docs}, nil
}

func TestAdapter_CachesRepeatedQuery(t *testing.T) {
	backend := &fakeBackend{results: []models.SimilarResult{{DocID: "d1", Similarity: 0.9}}}
	a := New(backend, DefaultConfig())

	opts := models.SimilarOptions{Threshold: 0.5, Limit: 5}
	_, err := a.SimilarDetailed(context.Background(), "query", opts)
	require.NoError(t, err)
	_, err = a.SimilarDetailed(context.Background(), "query", opts)
	require.NoError(t, err)

	assert.Equal(t, int32(1), backend.calls, "second identical query should hit the cache")

	stats, err := a.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
}

func TestAdapter_DifferentFiltersAreDistinctCacheKeys(t *testing.T) {
	backend := &fakeBackend{results: []models.SimilarResult{{DocID: "d1"}}}
	a := New(backend, DefaultConfig())

	_, err := a.SimilarDetailed(context.Background(), "query", models.SimilarOptions{Filters: map[string]string{"tag": "a"}})
	require.NoError(t, err)
	_, err = a.SimilarDetailed(context.Background(), "query", models.SimilarOptions{Filters: map[string]string{"tag": "b"}})
	require.NoError(t, err)

	assert.Equal(t, int32(2), backend.calls)
}

func TestAdapter_StoreInvalidatesCache(t *testing.T) {
	backend := &fakeBackend{results: []models.SimilarResult{{DocID: "d1"}}}
	a := New(backend, DefaultConfig())

	opts := models.SimilarOptions{Limit: 5}
	_, err := a.SimilarDetailed(context.Background(), "query", opts)
	require.NoError(t, err)

	_, err = a.Store(context.Background(), "new content", models.DocumentMetadata{ContentType: "text"})
	require.NoError(t, err)

	_, err = a.SimilarDetailed(context.Background(), "query", opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.calls, "Store should invalidate the cache")
}

func TestAdapter_Similar_SatisfiesValidatorInterface(t *testing.T) {
	backend := &fakeBackend{results: []models.SimilarResult{{DocID: "d1", Similarity: 0.8, Preview: "p"}}}
	a := New(backend, DefaultConfig())

	hits, err := a.Similar(context.Background(), "query", 0.5, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocID)
}

func TestAdapter_CleanupExpiredRemovesStaleEntries(t *testing.T) {
	backend := &fakeBackend{results: []models.SimilarResult{{DocID: "d1"}}}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Millisecond
	a := New(backend, cfg)
	fakeNow := time.Now()
	a.clock = func() time.Time { return fakeNow }

	_, err := a.SimilarDetailed(context.Background(), "query", models.SimilarOptions{})
	require.NoError(t, err)

	a.clock = func() time.Time { return fakeNow.Add(time.Hour) }
	removed, err := a.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
