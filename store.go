package voynich

import (
	"context"
	"encoding/json"
	"strings"
)

// Namespace is a hierarchical key prefix scoping records in a Store.
// Chunks of one document live under NamespaceChunks.Child(docID), so both
// "all chunks of one document" and "all chunks" are prefix queries.
type Namespace []string

// Root namespaces used by the ingestion pipeline.
var (
	NamespaceDocuments = Namespace{"documents"}
	NamespaceChunks    = Namespace{"chunks"}
)

// String renders the namespace as a "/"-joined path.
func (n Namespace) String() string { return strings.Join(n, "/") }

// ParseNamespace is the inverse of String.
func ParseNamespace(s string) Namespace {
	if s == "" {
		return nil
	}
	return Namespace(strings.Split(s, "/"))
}

// Child returns a new namespace with elems appended.
func (n Namespace) Child(elems ...string) Namespace {
	child := make(Namespace, 0, len(n)+len(elems))
	child = append(child, n...)
	return append(child, elems...)
}

// Item is a stored value together with its addressing metadata.
type Item struct {
	Namespace Namespace       `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt int64           `json:"created_at"`
}

// FilterField names a value field that Search can match on.
type FilterField string

const (
	FieldDocumentID   FilterField = "document_id"
	FieldSectionLevel FilterField = "section_level"
	// FieldHeading matches chunks whose lineage contains the given heading
	// text at any depth.
	FieldHeading FilterField = "heading"
)

// FilterOp is the comparison applied by a Filter.
type FilterOp string

const (
	OpEq FilterOp = "eq"
	OpGt FilterOp = "gt"
)

// Filter is a typed search predicate. The supported field/op combinations
// are fixed so every Store backend implements the same semantics.
type Filter struct {
	Field FilterField
	Op    FilterOp
	Value any
}

// ByDocument filters results to one document's chunks.
func ByDocument(docID string) Filter {
	return Filter{Field: FieldDocumentID, Op: OpEq, Value: docID}
}

// BySectionLevel filters chunks by their heading nesting depth.
func BySectionLevel(level int) Filter {
	return Filter{Field: FieldSectionLevel, Op: OpEq, Value: level}
}

// ByHeading filters chunks whose lineage contains the given heading text.
func ByHeading(text string) Filter {
	return Filter{Field: FieldHeading, Op: OpEq, Value: text}
}

// DefaultSearchLimit caps Search results when the query does not set one.
const DefaultSearchLimit = 10

// SearchQuery describes one Search call. An empty Text turns the call into
// a listing (paginated, creation order); otherwise results are ordered by
// embedding similarity to Text, most similar first.
type SearchQuery struct {
	Text    string
	Limit   int
	Offset  int
	Filters []Filter
}

// Store is the retrieval façade: a namespaced key/value store with
// embedding-based similarity search. Implementations must be safe for
// concurrent use by multiple ingestions and searches.
type Store interface {
	// Put upserts value (JSON-marshaled) under ns/key. When index is true
	// the value's text field is embedded so the record participates in
	// similarity search; metadata records pass index=false.
	Put(ctx context.Context, ns Namespace, key string, value any, index bool) error
	// Get returns the item at ns/key, or ErrNotFound.
	Get(ctx context.Context, ns Namespace, key string) (Item, error)
	// Delete removes ns/key. Deleting an absent key is not an error.
	Delete(ctx context.Context, ns Namespace, key string) error
	// Search lists or ranks items under the namespace prefix ns.
	Search(ctx context.Context, ns Namespace, q SearchQuery) ([]Item, error)

	// Init creates backing schema. Safe to call more than once.
	Init(ctx context.Context) error
	Close() error
}

// EmbedText extracts the embeddable text of a record value: the "text"
// field of the JSON object, or empty if absent. Store backends use it to
// decide what to embed on an indexed Put.
func EmbedText(value json.RawMessage) string {
	var partial struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(value, &partial); err != nil {
		return ""
	}
	return partial.Text
}

// MatchFilters evaluates typed filters against a record value in-process.
// Backends without query-side JSON support (sqlite, memory) use it to apply
// Search filters after decoding; the postgres backend pushes the same
// predicates into SQL.
func MatchFilters(value json.RawMessage, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var rec struct {
		DocumentID   string               `json:"document_id"`
		SectionLevel int                  `json:"section_level"`
		Levels       [HeadingDepth]string `json:"levels"`
	}
	if err := json.Unmarshal(value, &rec); err != nil {
		return false
	}
	for _, f := range filters {
		switch f.Field {
		case FieldDocumentID:
			want, ok := f.Value.(string)
			if !ok || rec.DocumentID != want {
				return false
			}
		case FieldSectionLevel:
			want, ok := filterInt(f.Value)
			if !ok {
				return false
			}
			if f.Op == OpGt {
				if rec.SectionLevel <= want {
					return false
				}
			} else if rec.SectionLevel != want {
				return false
			}
		case FieldHeading:
			want, ok := f.Value.(string)
			if !ok {
				return false
			}
			found := false
			for _, lvl := range rec.Levels {
				if lvl == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// filterInt accepts the integer encodings a Filter value can arrive in,
// including float64 from JSON-decoded request bodies.
func filterInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
