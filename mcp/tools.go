package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	voynich "github.com/voynich-dev/voynich"
)

// toolItem is the serialized form of a store item in tool results.
type toolItem struct {
	Key       string          `json:"key"`
	Namespace []string        `json:"namespace"`
	Value     json.RawMessage `json:"value"`
	CreatedAt int64           `json:"created_at,omitempty"`
}

func toolItems(items []voynich.Item) []toolItem {
	out := make([]toolItem, len(items))
	for i, item := range items {
		out[i] = toolItem{
			Key:       item.Key,
			Namespace: item.Namespace,
			Value:     item.Value,
			CreatedAt: item.CreatedAt,
		}
	}
	return out
}

// DocumentTools returns the tool set exposing a store to MCP clients:
// search_documents, list_documents, and get_document.
func DocumentTools(store voynich.Store) []ToolHandler {
	return []ToolHandler{
		searchDocumentsTool(store),
		listDocumentsTool(store),
		getDocumentTool(store),
	}
}

func searchDocumentsTool(store voynich.Store) ToolHandler {
	type args struct {
		Query        string `json:"query"`
		Limit        int    `json:"limit"`
		Offset       int    `json:"offset"`
		DocumentID   string `json:"document_id"`
		SectionLevel *int   `json:"section_level"`
		Heading      string `json:"heading"`
	}
	return ToolHandler{
		Definition: ToolDefinition{
			Name:        "search_documents",
			Description: "Search ingested document chunks by vector similarity. Optionally narrow to one document, heading depth, or heading text.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":         map[string]any{"type": "string", "description": "Search query to match against chunks"},
					"limit":         map[string]any{"type": "integer", "description": "Maximum number of results (default 10)"},
					"offset":        map[string]any{"type": "integer", "description": "Number of results to skip"},
					"document_id":   map[string]any{"type": "string", "description": "Restrict to one document's chunks"},
					"section_level": map[string]any{"type": "integer", "description": "Match chunks at this heading depth"},
					"heading":       map[string]any{"type": "string", "description": "Match chunks whose heading lineage contains this text"},
				},
				"required": []string{"query"},
			},
		},
		Execute: func(ctx context.Context, raw json.RawMessage) ToolCallResult {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return ErrorResult("invalid arguments: " + err.Error())
			}
			if a.Query == "" {
				return ErrorResult("query is required")
			}

			ns := voynich.NamespaceChunks
			if a.DocumentID != "" {
				ns = ns.Child(a.DocumentID)
			}
			var filters []voynich.Filter
			if a.SectionLevel != nil {
				filters = append(filters, voynich.BySectionLevel(*a.SectionLevel))
			}
			if a.Heading != "" {
				filters = append(filters, voynich.ByHeading(a.Heading))
			}

			items, err := store.Search(ctx, ns, voynich.SearchQuery{
				Text:    a.Query,
				Limit:   a.Limit,
				Offset:  a.Offset,
				Filters: filters,
			})
			if err != nil {
				return ErrorResult("search: " + err.Error())
			}
			return JSONResult(map[string]any{
				"query":   a.Query,
				"results": toolItems(items),
				"total":   len(items),
			})
		},
	}
}

func listDocumentsTool(store voynich.Store) ToolHandler {
	type args struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	return ToolHandler{
		Definition: ToolDefinition{
			Name:        "list_documents",
			Description: "List ingested documents with their metadata (filename, content type, chunk count).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit":  map[string]any{"type": "integer", "description": "Maximum number of documents (default 100)"},
					"offset": map[string]any{"type": "integer", "description": "Number of documents to skip"},
				},
			},
		},
		Execute: func(ctx context.Context, raw json.RawMessage) ToolCallResult {
			var a args
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &a); err != nil {
					return ErrorResult("invalid arguments: " + err.Error())
				}
			}
			if a.Limit <= 0 {
				a.Limit = 100
			}

			items, err := store.Search(ctx, voynich.NamespaceDocuments, voynich.SearchQuery{
				Limit:  a.Limit,
				Offset: a.Offset,
			})
			if err != nil {
				return ErrorResult("list documents: " + err.Error())
			}
			return JSONResult(map[string]any{
				"documents": toolItems(items),
				"total":     len(items),
			})
		},
	}
}

func getDocumentTool(store voynich.Store) ToolHandler {
	type args struct {
		DocumentID    string `json:"document_id"`
		IncludeChunks bool   `json:"include_chunks"`
	}
	return ToolHandler{
		Definition: ToolDefinition{
			Name:        "get_document",
			Description: "Get one document's metadata by id, optionally with its full chunk set in order.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_id":    map[string]any{"type": "string", "description": "Document id"},
					"include_chunks": map[string]any{"type": "boolean", "description": "Also return the document's chunks"},
				},
				"required": []string{"document_id"},
			},
		},
		Execute: func(ctx context.Context, raw json.RawMessage) ToolCallResult {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return ErrorResult("invalid arguments: " + err.Error())
			}
			if a.DocumentID == "" {
				return ErrorResult("document_id is required")
			}

			item, err := store.Get(ctx, voynich.NamespaceDocuments, a.DocumentID)
			if errors.Is(err, voynich.ErrNotFound) {
				return JSONResult(map[string]any{"found": false, "document_id": a.DocumentID})
			}
			if err != nil {
				return ErrorResult("get document: " + err.Error())
			}

			result := map[string]any{
				"found":    true,
				"document": toolItems([]voynich.Item{item})[0],
			}
			if a.IncludeChunks {
				chunks, err := store.Search(ctx, voynich.NamespaceChunks.Child(a.DocumentID), voynich.SearchQuery{
					Limit: 10000,
				})
				if err != nil {
					return ErrorResult(fmt.Sprintf("list chunks of %s: %v", a.DocumentID, err))
				}
				sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Key < chunks[j].Key })
				result["chunks"] = toolItems(chunks)
			}
			return JSONResult(result)
		},
	}
}
