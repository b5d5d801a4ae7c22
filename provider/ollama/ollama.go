// Package ollama implements voynich.EmbeddingProvider against a local or
// remote Ollama server's /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	voynich "github.com/voynich-dev/voynich"
)

// Embedding implements voynich.EmbeddingProvider for Ollama embedding
// models such as nomic-embed-text or mxbai-embed-large.
type Embedding struct {
	host       string
	model      string
	dims       int
	httpClient *http.Client
}

var _ voynich.EmbeddingProvider = (*Embedding)(nil)

// Option configures an Embedding provider.
type Option func(*Embedding)

// WithHTTPClient replaces the default http.Client, e.g. to set timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.httpClient = c }
}

// NewEmbedding creates an Ollama embedding provider. host is the server
// base URL (e.g. "http://localhost:11434"); dims is the dimensionality of
// the model's output, used for store schema sizing.
func NewEmbedding(host, model string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		dims:       dims,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "ollama".
func (e *Embedding) Name() string { return "ollama" }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed embeds all texts in a single batched request.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal embed body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: embed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read embed response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ollama: parse embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: embed: got %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}
