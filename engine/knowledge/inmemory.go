package knowledge

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/99souls/fortitude/engine/models"
)

type storedDoc struct {
	content string
	words   map[string]struct{}
	meta    models.DocumentMetadata
}

// InMemoryBackend is a process-local Backend using word-overlap similarity.
// It exists as a usable default when no real vector store is configured;
// the backing-store implementation itself is out of scope, §4.11 Non-goals.
type InMemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]*storedDoc
}

// NewInMemoryBackend constructs an empty backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{docs: make(map[string]*storedDoc)}
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func (b *InMemoryBackend) Similar(ctx context.Context, text string, opts models.SimilarOptions) ([]models.SimilarResult, error) {
	query := wordSet(text)
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []models.SimilarResult
	for id, doc := range b.docs {
		if !matchesFilters(doc.meta, opts.Filters) {
			continue
		}
		sim := jaccard(query, doc.words)
		if sim < opts.Threshold {
			continue
		}
		preview := doc.content
		if len(preview) > 160 {
			preview = preview[:160]
		}
		out = append(out, models.SimilarResult{
			DocID:      id,
			Similarity: sim,
			Preview:    preview,
			Metadata:   metadataToMap(doc.meta),
		})
	}

	sortBySimilarityDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilters(meta models.DocumentMetadata, filters map[string]string) bool {
	for k, v := range filters {
		switch k {
		case "content_type":
			if meta.ContentType != v {
				return false
			}
		case "source":
			if meta.Source != v {
				return false
			}
		default:
			if meta.Custom == nil || meta.Custom[k] != v {
				return false
			}
		}
	}
	return true
}

func metadataToMap(meta models.DocumentMetadata) map[string]string {
	m := map[string]string{
		"content_type": meta.ContentType,
		"source":       meta.Source,
	}
	for k, v := range meta.Custom {
		m[k] = v
	}
	return m
}

func sortBySimilarityDesc(results []models.SimilarResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Similarity > results[j-1].Similarity; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func (b *InMemoryBackend) Store(ctx context.Context, content string, metadata models.DocumentMetadata) (string, error) {
	id := uuid.NewString()
	b.mu.Lock()
	b.docs[id] = &storedDoc{content: content, words: wordSet(content), meta: metadata}
	b.mu.Unlock()
	return id, nil
}

func (b *InMemoryBackend) Delete(ctx context.Context, docID string) error {
	b.mu.Lock()
	delete(b.docs, docID)
	b.mu.Unlock()
	return nil
}

func (b *InMemoryBackend) Stats(ctx context.Context) (models.KnowledgeStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return models.KnowledgeStats{DocCount: len(b.docs)}, nil
}
