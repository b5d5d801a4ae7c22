// Package sqlite implements voynich.Store using pure-Go SQLite
// with in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	voynich "github.com/voynich-dev/voynich"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithEmbedder sets the embedding provider used to vectorize indexed items
// and search queries. Without one, Search with non-empty text fails.
func WithEmbedder(p voynich.EmbeddingProvider) StoreOption {
	return func(s *Store) { s.embedder = p }
}

// Store implements voynich.Store backed by a local SQLite file.
// Embeddings are stored as JSON text and vector search is done
// in-process using brute-force cosine similarity.
type Store struct {
	db       *sql.DB
	embedder voynich.EmbeddingProvider
	logger   *slog.Logger
}

var _ voynich.Store = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the items table and its indexes. Safe to call more than once.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			embedding TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS items_created_idx ON items(created_at)`,
	}
	for _, ddl := range stmts {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	s.logger.Debug("sqlite: init done", "elapsed", time.Since(start))
	return nil
}

// Put upserts an item. When index is true and an embedder is configured,
// the item's text is embedded and stored as JSON alongside the value.
func (s *Store) Put(ctx context.Context, ns voynich.Namespace, key string, value any, index bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite: marshal value: %w", err)
	}

	var embJSON sql.NullString
	if index && s.embedder != nil {
		if text := voynich.EmbedText(raw); text != "" {
			vecs, err := s.embedder.Embed(ctx, []string{text})
			if err != nil {
				return fmt.Errorf("sqlite: embed: %w", err)
			}
			if len(vecs) > 0 {
				enc, err := json.Marshal(vecs[0])
				if err != nil {
					return fmt.Errorf("sqlite: marshal embedding: %w", err)
				}
				embJSON = sql.NullString{String: string(enc), Valid: true}
			}
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (namespace, key, value, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = excluded.value,
		   embedding = excluded.embedding,
		   created_at = excluded.created_at`,
		ns.String(), key, string(raw), embJSON, voynich.NowUnix())
	if err != nil {
		return fmt.Errorf("sqlite: put %s/%s: %w", ns, key, err)
	}
	s.logger.Debug("sqlite: put", "namespace", ns.String(), "key", key, "indexed", embJSON.Valid)
	return nil
}

// Get fetches one item by exact namespace and key.
func (s *Store) Get(ctx context.Context, ns voynich.Namespace, key string) (voynich.Item, error) {
	var item voynich.Item
	var nsStr, value string
	err := s.db.QueryRowContext(ctx,
		`SELECT namespace, key, value, created_at FROM items
		 WHERE namespace = ? AND key = ?`,
		ns.String(), key).Scan(&nsStr, &item.Key, &value, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return voynich.Item{}, voynich.ErrNotFound
	}
	if err != nil {
		return voynich.Item{}, fmt.Errorf("sqlite: get %s/%s: %w", ns, key, err)
	}
	item.Namespace = voynich.ParseNamespace(nsStr)
	item.Value = json.RawMessage(value)
	return item, nil
}

// Delete removes one item. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, ns voynich.Namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM items WHERE namespace = ? AND key = ?`, ns.String(), key)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s/%s: %w", ns, key, err)
	}
	return nil
}

// scored pairs a decoded row with its query similarity for ranking.
type scored struct {
	item  voynich.Item
	score float64
}

// Search lists or vector-searches items under a namespace prefix. Listing
// (empty query text) is paginated in SQL; similarity search loads candidate
// embeddings and ranks them in-process.
func (s *Store) Search(ctx context.Context, ns voynich.Namespace, q voynich.SearchQuery) ([]voynich.Item, error) {
	start := time.Now()
	limit := q.Limit
	if limit <= 0 {
		limit = voynich.DefaultSearchLimit
	}

	if q.Text == "" {
		items, err := s.list(ctx, ns, q, limit)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("sqlite: list", "namespace", ns.String(), "rows", len(items), "elapsed", time.Since(start))
		return items, nil
	}

	if s.embedder == nil {
		return nil, fmt.Errorf("sqlite: search: no embedding provider configured")
	}
	vecs, err := s.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("sqlite: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("sqlite: embed query: empty response")
	}
	query := vecs[0]

	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, key, value, embedding, created_at FROM items
		 WHERE (namespace = ? OR namespace LIKE ?) AND embedding IS NOT NULL`,
		ns.String(), ns.String()+"/%")
	if err != nil {
		return nil, fmt.Errorf("sqlite: search %s: %w", ns, err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var item voynich.Item
		var nsStr, value, embJSON string
		if err := rows.Scan(&nsStr, &item.Key, &value, &embJSON, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		item.Namespace = voynich.ParseNamespace(nsStr)
		item.Value = json.RawMessage(value)
		if !voynich.MatchFilters(item.Value, q.Filters) {
			continue
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			continue
		}
		candidates = append(candidates, scored{item: item, score: cosineSimilarity(query, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search %s: %w", ns, err)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
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
	s.logger.Debug("sqlite: search", "namespace", ns.String(), "rows", len(items), "elapsed", time.Since(start))
	return items, nil
}

// list returns items in creation order. Filters are applied in-process, so
// pagination over-fetches and trims after filtering.
func (s *Store) list(ctx context.Context, ns voynich.Namespace, q voynich.SearchQuery, limit int) ([]voynich.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, key, value, created_at FROM items
		 WHERE (namespace = ? OR namespace LIKE ?)
		 ORDER BY created_at, key`,
		ns.String(), ns.String()+"/%")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", ns, err)
	}
	defer rows.Close()

	var items []voynich.Item
	skipped := 0
	for rows.Next() {
		var item voynich.Item
		var nsStr, value string
		if err := rows.Scan(&nsStr, &item.Key, &value, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		item.Namespace = voynich.ParseNamespace(nsStr)
		item.Value = json.RawMessage(value)
		if !voynich.MatchFilters(item.Value, q.Filters) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when lengths differ or either vector is zero.
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
