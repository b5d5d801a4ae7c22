// Package memory implements voynich.Store with in-process maps. It backs
// tests and small single-node deployments where persistence is not needed.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	voynich "github.com/voynich-dev/voynich"
)

// entry is one stored record plus its optional embedding.
type entry struct {
	value     json.RawMessage
	embedding []float32
	createdAt int64
	seq       int64
}

// Store implements voynich.Store over a mutex-guarded map. Safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	items    map[string]map[string]entry // namespace -> key -> entry
	seq      int64
	embedder voynich.EmbeddingProvider
}

var _ voynich.Store = (*Store)(nil)

// Option configures a memory Store.
type Option func(*Store)

// WithEmbedder sets the embedding provider used for indexed writes and
// similarity search. Without one, Search with non-empty text fails.
func WithEmbedder(p voynich.EmbeddingProvider) Option {
	return func(s *Store) { s.embedder = p }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{items: make(map[string]map[string]entry)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init is a no-op.
func (s *Store) Init(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Put upserts an item, embedding its text when index is true and an
// embedder is configured.
func (s *Store) Put(ctx context.Context, ns voynich.Namespace, key string, value any, index bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory: marshal value: %w", err)
	}

	var emb []float32
	if index && s.embedder != nil {
		if text := voynich.EmbedText(raw); text != "" {
			vecs, err := s.embedder.Embed(ctx, []string{text})
			if err != nil {
				return fmt.Errorf("memory: embed: %w", err)
			}
			if len(vecs) > 0 {
				emb = vecs[0]
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	nsStr := ns.String()
	bucket, ok := s.items[nsStr]
	if !ok {
		bucket = make(map[string]entry)
		s.items[nsStr] = bucket
	}
	s.seq++
	bucket[key] = entry{value: raw, embedding: emb, createdAt: voynich.NowUnix(), seq: s.seq}
	return nil
}

// Get fetches one item by exact namespace and key.
func (s *Store) Get(ctx context.Context, ns voynich.Namespace, key string) (voynich.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[ns.String()][key]
	if !ok {
		return voynich.Item{}, voynich.ErrNotFound
	}
	return voynich.Item{Namespace: ns, Key: key, Value: e.value, CreatedAt: e.createdAt}, nil
}

// Delete removes one item. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, ns voynich.Namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nsStr := ns.String()
	if bucket, ok := s.items[nsStr]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(s.items, nsStr)
		}
	}
	return nil
}

// candidate pairs a collected item with its ordering data.
type candidate struct {
	item  voynich.Item
	seq   int64
	score float64
	emb   []float32
}

// Search lists or vector-searches items under a namespace prefix.
func (s *Store) Search(ctx context.Context, ns voynich.Namespace, q voynich.SearchQuery) ([]voynich.Item, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = voynich.DefaultSearchLimit
	}

	var query []float32
	if q.Text != "" {
		if s.embedder == nil {
			return nil, fmt.Errorf("memory: search: no embedding provider configured")
		}
		vecs, err := s.embedder.Embed(ctx, []string{q.Text})
		if err != nil {
			return nil, fmt.Errorf("memory: embed query: %w", err)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("memory: embed query: empty response")
		}
		query = vecs[0]
	}

	candidates := s.collect(ns, q, query != nil)
	for i := range candidates {
		if query != nil {
			candidates[i].score = cosineSimilarity(query, candidates[i].emb)
		}
	}

	if query != nil {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.item.CreatedAt != b.item.CreatedAt {
				return a.item.CreatedAt < b.item.CreatedAt
			}
			if a.item.Key != b.item.Key {
				return a.item.Key < b.item.Key
			}
			return a.seq < b.seq
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(candidates) {
			candidates = nil
		} else {
			candidates = candidates[q.Offset:]
		}
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	items := make([]voynich.Item, len(candidates))
	for i, c := range candidates {
		items[i] = c.item
	}
	return items, nil
}

// collect snapshots matching entries under the read lock.
func (s *Store) collect(ns voynich.Namespace, q voynich.SearchQuery, needEmbedding bool) []candidate {
	nsStr := ns.String()
	prefix := nsStr + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []candidate
	for bucketNS, bucket := range s.items {
		if bucketNS != nsStr && !strings.HasPrefix(bucketNS, prefix) {
			continue
		}
		parsed := voynich.ParseNamespace(bucketNS)
		for key, e := range bucket {
			if needEmbedding && e.embedding == nil {
				continue
			}
			if !voynich.MatchFilters(e.value, q.Filters) {
				continue
			}
			out = append(out, candidate{
				item: voynich.Item{Namespace: parsed, Key: key, Value: e.value, CreatedAt: e.createdAt},
				seq:  e.seq,
				emb:  e.embedding,
			})
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
