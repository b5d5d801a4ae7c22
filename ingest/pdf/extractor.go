// Package pdf provides a PDF extractor for the ingest pipeline.
//
// It uses ledongthuc/pdf (BSD-3, pure Go, no CGO). This is a separate
// subpackage so the dependency is only pulled in by users who need PDF
// support.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/voynich-dev/voynich/ingest"
)

// Extractor implements ingest.Extractor for PDF documents. Pages become
// paragraphs separated by blank lines; PDFs carry no reliable heading
// structure, so the output is flat Markdown text.
type Extractor struct{}

var _ ingest.Extractor = (*Extractor)(nil)

// NewExtractor creates a PDF extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract extracts the text of every readable page.
func (e *Extractor) Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty pdf content")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}

	return strings.TrimSpace(text.String()), nil
}
