// Package docx provides a DOCX extractor for the ingest pipeline.
//
// It streams the ZIP-based OOXML format with encoding/xml, converting
// paragraph styles to Markdown headings and tables to Markdown tables.
// Pure Go, no CGO.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/voynich-dev/voynich/ingest"
)

// Extractor implements ingest.Extractor for DOCX documents. "Heading N"
// paragraph styles map to Markdown heading depth N, so hierarchical
// splitting works on converted Word documents.
type Extractor struct{}

var _ ingest.Extractor = (*Extractor)(nil)

// NewExtractor creates a DOCX extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract converts a DOCX document to Markdown.
func (e *Extractor) Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty docx content")
	}

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("read document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read document.xml: %w", err)
	}

	return renderDocument(data)
}

// docState tracks the streaming XML decoder state.
type docState struct {
	out strings.Builder

	inParagraph bool
	inRun       bool
	style       string
	paragraph   []string

	inTable   bool
	inRow     bool
	rowIdx    int
	headerLen int
	cells     []string
	cell      strings.Builder
}

// renderDocument streams OOXML tokens from document.xml into Markdown.
func renderDocument(data []byte) (string, error) {
	s := &docState{}
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			s.start(t)
		case xml.EndElement:
			s.end(t)
		case xml.CharData:
			s.chars(t)
		}
	}

	return strings.TrimSpace(s.out.String()), nil
}

func (s *docState) start(t xml.StartElement) {
	switch t.Name.Local {
	case "p":
		s.inParagraph = true
		s.style = ""
		s.paragraph = nil
	case "pStyle":
		for _, attr := range t.Attr {
			if attr.Name.Local == "val" {
				s.style = attr.Value
			}
		}
	case "r":
		s.inRun = true
	case "tbl":
		s.inTable = true
		s.rowIdx = 0
		s.headerLen = 0
	case "tr":
		s.inRow = true
		s.cells = nil
	case "tc":
		s.cell.Reset()
	case "br", "cr":
		if s.inParagraph && !s.inTable {
			s.paragraph = append(s.paragraph, "\n")
		}
	}
}

func (s *docState) end(t xml.EndElement) {
	switch t.Name.Local {
	case "r":
		s.inRun = false
	case "tc":
		s.cells = append(s.cells, strings.TrimSpace(s.cell.String()))
	case "tr":
		s.inRow = false
		if s.inTable {
			s.emitRow()
			s.rowIdx++
		}
	case "tbl":
		s.inTable = false
	case "p":
		s.endParagraph()
	}
}

func (s *docState) chars(data xml.CharData) {
	text := string(data)
	if s.inTable && s.inRow {
		s.cell.WriteString(text)
		return
	}
	if s.inParagraph && s.inRun {
		s.paragraph = append(s.paragraph, text)
	}
}

// emitRow writes one table row as a Markdown table line; the first row of
// each table is treated as the header and followed by a separator line.
func (s *docState) emitRow() {
	if len(s.cells) == 0 {
		return
	}

	var row strings.Builder
	row.WriteString("|")
	for _, c := range s.cells {
		row.WriteString(" ")
		row.WriteString(strings.ReplaceAll(c, "|", "\\|"))
		row.WriteString(" |")
	}

	if s.rowIdx == 0 {
		s.blankLine()
		s.headerLen = len(s.cells)
		s.out.WriteString(row.String())
		s.out.WriteByte('\n')
		s.out.WriteString("|")
		for range s.cells {
			s.out.WriteString(" --- |")
		}
	} else {
		s.out.WriteString(row.String())
	}
	s.out.WriteByte('\n')
}

// endParagraph emits a completed paragraph, prefixing heading-styled
// paragraphs with Markdown heading markers.
func (s *docState) endParagraph() {
	s.inParagraph = false
	if s.inTable {
		return // cell paragraphs are handled by the table logic
	}

	text := strings.TrimSpace(strings.Join(s.paragraph, ""))
	if text == "" {
		return
	}

	s.blankLine()
	if depth := headingDepth(s.style); depth > 0 {
		s.out.WriteString(strings.Repeat("#", depth))
		s.out.WriteByte(' ')
	}
	s.out.WriteString(text)
	s.out.WriteByte('\n')
}

func (s *docState) blankLine() {
	if s.out.Len() > 0 {
		s.out.WriteByte('\n')
	}
}

// headingDepth maps OOXML paragraph styles like "Heading1".."Heading6"
// (and "Title" as depth 1) to Markdown heading depth; 0 means body text.
func headingDepth(style string) int {
	if style == "Title" {
		return 1
	}
	rest, ok := strings.CutPrefix(style, "Heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0
	}
	if n > 6 {
		n = 6
	}
	return n
}
