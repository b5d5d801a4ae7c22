// Package postgres implements voynich.Store using PostgreSQL with
// pgvector for native vector similarity search.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	voynich "github.com/voynich-dev/voynich"
)

// Store implements voynich.Store backed by PostgreSQL. Items live in a
// single table keyed by (namespace, key); indexed items additionally carry
// a pgvector embedding searched with an HNSW cosine index.
type Store struct {
	pool     *pgxpool.Pool
	embedder voynich.EmbeddingProvider
	cfg      pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 768, 1536).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, catching
// dimension mismatches at insert time. Only affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Default: pgvector's 16. Only affects index creation.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter. Default:
// pgvector's 64. Only affects index creation.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter. Default: pgvector's 40.
// Applied via ALTER DATABASE-free SET during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ voynich.Store = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool. The embedder is used
// to vectorize indexed items on write and queries on search; it may be nil,
// in which case Search with non-empty text returns an error. The caller
// owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, embedder voynich.EmbeddingProvider, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, embedder: embedder, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, the items table, and its indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS items (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			embedding %s,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (namespace, key)
		)`, s.vectorType()),

		`CREATE INDEX IF NOT EXISTS items_namespace_idx ON items(namespace text_pattern_ops)`,
		`CREATE INDEX IF NOT EXISTS items_document_idx ON items((value->>'document_id'))`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS items_embedding_idx ON items USING hnsw (embedding vector_cosine_ops)%s`, s.hnswWithClause()),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		stmt := fmt.Sprintf(`SET hnsw.ef_search = %d`, s.cfg.hnswEFSearch)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// Put upserts an item. When index is true and an embedder is configured,
// the item's text is embedded and stored alongside the value.
func (s *Store) Put(ctx context.Context, ns voynich.Namespace, key string, value any, index bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres: marshal value: %w", err)
	}

	var embedding *pgvector.Vector
	if index && s.embedder != nil {
		if text := voynich.EmbedText(raw); text != "" {
			vecs, err := s.embedder.Embed(ctx, []string{text})
			if err != nil {
				return fmt.Errorf("postgres: embed: %w", err)
			}
			if len(vecs) > 0 {
				v := pgvector.NewVector(vecs[0])
				embedding = &v
			}
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO items (namespace, key, value, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = EXCLUDED.value,
		   embedding = EXCLUDED.embedding,
		   created_at = EXCLUDED.created_at`,
		ns.String(), key, raw, embedding, voynich.NowUnix())
	if err != nil {
		return fmt.Errorf("postgres: put %s/%s: %w", ns, key, err)
	}
	return nil
}

// Get fetches one item by exact namespace and key.
func (s *Store) Get(ctx context.Context, ns voynich.Namespace, key string) (voynich.Item, error) {
	var item voynich.Item
	var nsStr string
	err := s.pool.QueryRow(ctx,
		`SELECT namespace, key, value, created_at FROM items
		 WHERE namespace = $1 AND key = $2`,
		ns.String(), key).Scan(&nsStr, &item.Key, &item.Value, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return voynich.Item{}, voynich.ErrNotFound
	}
	if err != nil {
		return voynich.Item{}, fmt.Errorf("postgres: get %s/%s: %w", ns, key, err)
	}
	item.Namespace = voynich.ParseNamespace(nsStr)
	return item, nil
}

// Delete removes one item. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, ns voynich.Namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM items WHERE namespace = $1 AND key = $2`, ns.String(), key)
	if err != nil {
		return fmt.Errorf("postgres: delete %s/%s: %w", ns, key, err)
	}
	return nil
}

// Search lists or vector-searches items under a namespace prefix. An empty
// query text lists items in creation order; non-empty text ranks indexed
// items by cosine similarity to the query embedding.
func (s *Store) Search(ctx context.Context, ns voynich.Namespace, q voynich.SearchQuery) ([]voynich.Item, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = voynich.DefaultSearchLimit
	}

	where, args := nsPrefixClause(ns)
	filterSQL, args := buildFilters(q.Filters, args)
	where += filterSQL

	var rows pgx.Rows
	var err error
	if q.Text == "" {
		args = append(args, limit, q.Offset)
		rows, err = s.pool.Query(ctx, fmt.Sprintf(
			`SELECT namespace, key, value, created_at FROM items
			 WHERE %s
			 ORDER BY created_at, key
			 LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	} else {
		if s.embedder == nil {
			return nil, fmt.Errorf("postgres: search: no embedding provider configured")
		}
		vecs, embErr := s.embedder.Embed(ctx, []string{q.Text})
		if embErr != nil {
			return nil, fmt.Errorf("postgres: embed query: %w", embErr)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("postgres: embed query: empty response")
		}
		args = append(args, pgvector.NewVector(vecs[0]), limit, q.Offset)
		rows, err = s.pool.Query(ctx, fmt.Sprintf(
			`SELECT namespace, key, value, created_at FROM items
			 WHERE %s AND embedding IS NOT NULL
			 ORDER BY embedding <=> $%d
			 LIMIT $%d OFFSET $%d`, where, len(args)-2, len(args)-1, len(args)), args...)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: search %s: %w", ns, err)
	}
	defer rows.Close()

	var items []voynich.Item
	for rows.Next() {
		var item voynich.Item
		var nsStr string
		if err := rows.Scan(&nsStr, &item.Key, &item.Value, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		item.Namespace = voynich.ParseNamespace(nsStr)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }

// nsPrefixClause matches the namespace itself and all of its descendants.
func nsPrefixClause(ns voynich.Namespace) (string, []any) {
	return `(namespace = $1 OR namespace LIKE $2)`, []any{ns.String(), ns.String() + "/%"}
}

// buildFilters appends WHERE fragments for typed filters, translating each
// field to a JSONB expression over the stored value.
func buildFilters(filters []voynich.Filter, args []any) (string, []any) {
	var b strings.Builder
	for _, f := range filters {
		switch f.Field {
		case voynich.FieldDocumentID:
			args = append(args, f.Value)
			fmt.Fprintf(&b, ` AND value->>'document_id' = $%d`, len(args))
		case voynich.FieldSectionLevel:
			args = append(args, f.Value)
			op := "="
			if f.Op == voynich.OpGt {
				op = ">"
			}
			fmt.Fprintf(&b, ` AND (value->>'section_level')::int %s $%d`, op, len(args))
		case voynich.FieldHeading:
			args = append(args, f.Value)
			fmt.Fprintf(&b, ` AND value->'levels' @> to_jsonb($%d::text)`, len(args))
		}
	}
	return b.String(), args
}
