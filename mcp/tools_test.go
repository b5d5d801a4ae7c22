package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	voynich "github.com/voynich-dev/voynich"
	"github.com/voynich-dev/voynich/store/memory"
)

// stubEmbedder returns a fixed-direction vector per text length so that
// similarity search is deterministic in tests.
type stubEmbedder struct{}

func (stubEmbedder) Name() string    { return "stub" }
func (stubEmbedder) Dimensions() int { return 3 }

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := float32(len(text)%7 + 1)
		out[i] = []float32{v, 1, 0}
	}
	return out, nil
}

func seedStore(t *testing.T) voynich.Store {
	t.Helper()
	store := memory.New(memory.WithEmbedder(stubEmbedder{}))
	ctx := context.Background()

	doc := voynich.Document{ID: "doc1", Filename: "guide.md", ContentType: "text/markdown", ChunkCount: 2, CreatedAt: voynich.NowUnix()}
	if err := store.Put(ctx, voynich.NamespaceDocuments, doc.ID, doc, false); err != nil {
		t.Fatalf("put document: %v", err)
	}
	for i, text := range []string{"install the service", "configure the search"} {
		chunk := voynich.Chunk{DocumentID: "doc1", Filename: "guide.md", Index: i, Text: text}
		if err := store.Put(ctx, voynich.NamespaceChunks.Child("doc1"), voynich.ChunkKey(i), chunk, true); err != nil {
			t.Fatalf("put chunk: %v", err)
		}
	}
	return store
}

func callTool(t *testing.T, tools []ToolHandler, name, args string) ToolCallResult {
	t.Helper()
	for _, tool := range tools {
		if tool.Definition.Name == name {
			return tool.Execute(context.Background(), json.RawMessage(args))
		}
	}
	t.Fatalf("tool %q not registered", name)
	return ToolCallResult{}
}

func TestSearchDocumentsTool(t *testing.T) {
	tools := DocumentTools(seedStore(t))

	res := callTool(t, tools, "search_documents", `{"query":"configure","limit":5}`)
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	if len(res.Content) != 1 || !strings.Contains(res.Content[0].Text, "configure the search") {
		t.Errorf("expected result to contain matching chunk, got: %+v", res.Content)
	}
}

func TestSearchDocumentsToolRequiresQuery(t *testing.T) {
	tools := DocumentTools(seedStore(t))

	res := callTool(t, tools, "search_documents", `{}`)
	if !res.IsError {
		t.Error("expected isError=true when query missing")
	}
}

func TestListDocumentsTool(t *testing.T) {
	tools := DocumentTools(seedStore(t))

	res := callTool(t, tools, "list_documents", `{}`)
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	if !strings.Contains(res.Content[0].Text, "guide.md") {
		t.Errorf("expected listing to contain guide.md, got: %s", res.Content[0].Text)
	}
}

func TestGetDocumentTool(t *testing.T) {
	tools := DocumentTools(seedStore(t))

	res := callTool(t, tools, "get_document", `{"document_id":"doc1","include_chunks":true}`)
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	text := res.Content[0].Text
	if !strings.Contains(text, `"found": true`) {
		t.Errorf("expected found=true, got: %s", text)
	}
	if !strings.Contains(text, "install the service") {
		t.Errorf("expected chunks in result, got: %s", text)
	}
}

func TestGetDocumentToolMissing(t *testing.T) {
	tools := DocumentTools(seedStore(t))

	res := callTool(t, tools, "get_document", `{"document_id":"nope"}`)
	if res.IsError {
		t.Fatalf("missing document should not be a tool error: %+v", res.Content)
	}
	if !strings.Contains(res.Content[0].Text, `"found": false`) {
		t.Errorf("expected found=false, got: %s", res.Content[0].Text)
	}
}
