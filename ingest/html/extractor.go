// Package html provides an HTML extractor for the ingest pipeline.
//
// It uses go-shiori/go-readability to isolate the main article content,
// dropping navigation, ads, and boilerplate before chunking.
package html

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/voynich-dev/voynich/ingest"
)

// Extractor implements ingest.Extractor for HTML documents. The article
// title becomes a level-1 Markdown heading so hierarchical splitting has a
// root section.
type Extractor struct{}

var _ ingest.Extractor = (*Extractor)(nil)

// NewExtractor creates an HTML extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract runs readability extraction and renders the result as Markdown.
func (e *Extractor) Extract(content []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(content), &url.URL{})
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	var b strings.Builder
	if title := strings.TrimSpace(article.Title); title != "" {
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(article.TextContent))
	return strings.TrimSpace(b.String()), nil
}
