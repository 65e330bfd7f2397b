// Package knowledge implements the Knowledge Store Adapter (C11): a
// capability-only read/write surface over an external semantic store, with
// an in-memory LRU cache spilling to Redis in front of Similar, adapted from
// the resource manager's LRU-plus-spillover Manager, §4.11.
package knowledge

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99souls/fortitude/engine/models"
	"github.com/99souls/fortitude/engine/validator"
)

// Backend is the capability the adapter fronts; backing store semantics
// (eviction, persistence) are out of scope, §4.11.
type Backend interface {
	Similar(ctx context.Context, text string, opts models.SimilarOptions) ([]models.SimilarResult, error)
	Store(ctx context.Context, content string, metadata models.DocumentMetadata) (string, error)
	Delete(ctx context.Context, docID string) error
	Stats(ctx context.Context) (models.KnowledgeStats, error)
}

// Config controls the in-memory/Redis cache tiers in front of Similar.
type Config struct {
	CacheCapacity int
	CacheTTL      time.Duration
	RedisAddr     string // empty disables the Redis spillover tier
}

func DefaultConfig() Config {
	return Config{CacheCapacity: 256, CacheTTL: 5 * time.Minute}
}

type cacheEntry struct {
	key     string
	results []models.SimilarResult
	expiry  time.Time
}

// Adapter is the Knowledge Store Adapter: Backend plus a response cache.
type Adapter struct {
	cfg     Config
	backend Backend
	redis   *redis.Client
	clock   func() time.Time

	mu    sync.Mutex
	lru   *list.List
	cache map[string]*list.Element

	hits, misses int64
}

// New wraps backend with a response cache. If cfg.RedisAddr is set, a Redis
// client backs the spillover tier; otherwise the cache is purely in-memory.
func New(backend Backend, cfg Config) *Adapter {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 256
	}
	a := &Adapter{
		cfg:     cfg,
		backend: backend,
		clock:   time.Now,
		lru:     list.New(),
		cache:   make(map[string]*list.Element),
	}
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	return a
}

// SimilarDetailed returns filtered, metadata-bearing results, consulting the
// cache before the backend.
func (a *Adapter) SimilarDetailed(ctx context.Context, text string, opts models.SimilarOptions) ([]models.SimilarResult, error) {
	key := cacheKey(text, opts)

	if results, ok := a.lookupCache(key); ok {
		a.mu.Lock()
		a.hits++
		a.mu.Unlock()
		return results, nil
	}
	if a.redis != nil {
		if results, ok := a.lookupRedis(ctx, key); ok {
			a.mu.Lock()
			a.hits++
			a.mu.Unlock()
			a.storeLocal(key, results)
			return results, nil
		}
	}

	a.mu.Lock()
	a.misses++
	a.mu.Unlock()

	results, err := a.backend.Similar(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	a.storeLocal(key, results)
	if a.redis != nil {
		a.storeRedis(ctx, key, results)
	}
	return results, nil
}

// Similar satisfies validator.SemanticSearch, the simpler capability
// consumed by the Semantic Validator (C3).
func (a *Adapter) Similar(ctx context.Context, query string, threshold float64, limit int) ([]validator.SearchHit, error) {
	results, err := a.SimilarDetailed(ctx, query, models.SimilarOptions{Threshold: threshold, Limit: limit})
	if err != nil {
		return nil, err
	}
	hits := make([]validator.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, validator.SearchHit{DocID: r.DocID, Similarity: r.Similarity, Preview: r.Preview})
	}
	return hits, nil
}

// Store persists content and invalidates the response cache, since any
// cached Similar result could now be stale.
func (a *Adapter) Store(ctx context.Context, content string, metadata models.DocumentMetadata) (string, error) {
	id, err := a.backend.Store(ctx, content, metadata)
	if err != nil {
		return "", err
	}
	a.invalidateAll(ctx)
	return id, nil
}

// Delete removes a document and invalidates the response cache.
func (a *Adapter) Delete(ctx context.Context, docID string) error {
	if err := a.backend.Delete(ctx, docID); err != nil {
		return err
	}
	a.invalidateAll(ctx)
	return nil
}

// Stats reports backend document counts plus this adapter's cache hit rate.
func (a *Adapter) Stats(ctx context.Context) (models.KnowledgeStats, error) {
	stats, err := a.backend.Stats(ctx)
	if err != nil {
		return models.KnowledgeStats{}, err
	}
	a.mu.Lock()
	stats.CacheHits = a.hits
	stats.CacheMisses = a.misses
	stats.CacheSize = len(a.cache)
	a.mu.Unlock()
	return stats, nil
}

// CleanupExpired sweeps expired entries from the in-memory tier; the Redis
// tier expires entries itself via TTL.
func (a *Adapter) CleanupExpired(ctx context.Context) (int, error) {
	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	var next *list.Element
	for e := a.lru.Back(); e != nil; e = next {
		next = e.Prev()
		entry := e.Value.(*cacheEntry)
		if now.After(entry.expiry) {
			a.lru.Remove(e)
			delete(a.cache, entry.key)
			removed++
		}
	}
	return removed, nil
}

func (a *Adapter) lookupCache(key string) ([]models.SimilarResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	element, ok := a.cache[key]
	if !ok {
		return nil, false
	}
	entry := element.Value.(*cacheEntry)
	if a.clock().After(entry.expiry) {
		a.lru.Remove(element)
		delete(a.cache, key)
		return nil, false
	}
	a.lru.MoveToFront(element)
	return entry.results, true
}

func (a *Adapter) storeLocal(key string, results []models.SimilarResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if element, ok := a.cache[key]; ok {
		entry := element.Value.(*cacheEntry)
		entry.results = results
		entry.expiry = a.clock().Add(a.cfg.CacheTTL)
		a.lru.MoveToFront(element)
		return
	}

	element := a.lru.PushFront(&cacheEntry{key: key, results: results, expiry: a.clock().Add(a.cfg.CacheTTL)})
	a.cache[key] = element

	for a.cfg.CacheCapacity > 0 && len(a.cache) > a.cfg.CacheCapacity {
		oldest := a.lru.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*cacheEntry)
		a.lru.Remove(oldest)
		delete(a.cache, entry.key)
	}
}

func (a *Adapter) lookupRedis(ctx context.Context, key string) ([]models.SimilarResult, bool) {
	data, err := a.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var results []models.SimilarResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (a *Adapter) storeRedis(ctx context.Context, key string, results []models.SimilarResult) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	_ = a.redis.Set(ctx, redisKey(key), data, a.cfg.CacheTTL).Err()
}

func (a *Adapter) invalidateAll(ctx context.Context) {
	a.mu.Lock()
	a.lru = list.New()
	a.cache = make(map[string]*list.Element)
	a.mu.Unlock()

	if a.redis != nil {
		a.clearRedisNamespace(ctx)
	}
}

// clearRedisNamespace removes only this adapter's own cache entries
// (everything under the "fortitude:knowledge:" prefix), scanning rather than
// issuing FlushDB/FlushAll, since Redis may be shared with other subsystems
// and a whole-cache invalidation must not touch keys it doesn't own.
func (a *Adapter) clearRedisNamespace(ctx context.Context) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := a.redis.Scan(ctx, cursor, redisKey("*"), 256).Result()
		if err != nil {
			return
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) > 0 {
		_ = a.redis.Unlink(ctx, keys...).Err()
	}
}

func redisKey(key string) string {
	return "fortitude:knowledge:" + key
}

func cacheKey(text string, opts models.SimilarOptions) string {
	tags := make([]string, 0, len(opts.Filters))
	for k, v := range opts.Filters {
		tags = append(tags, k+"="+v)
	}
	sort.Strings(tags)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%.4f|%d|%v", text, opts.Threshold, opts.Limit, tags)
	return hex.EncodeToString(h.Sum(nil))
}
