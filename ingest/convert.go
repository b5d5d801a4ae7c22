package ingest

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	voynich "github.com/voynich-dev/voynich"
)

// ContentType identifies the declared MIME type of an input document.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeMarkdown  ContentType = "text/markdown"
	TypeHTML      ContentType = "text/html"
	TypeCSV       ContentType = "text/csv"
	TypeJSON      ContentType = "application/json"
	TypeDOCX      ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions to content types.
// Unknown extensions map to plain text.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "csv":
		return TypeCSV
	case "json":
		return TypeJSON
	case "docx":
		return TypeDOCX
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// Converter turns a staged document file into a single Markdown string.
type Converter interface {
	Convert(path string, contentType ContentType) (string, error)
}

// Extractor converts raw bytes of one non-Markdown format into Markdown
// text. Format-specific extractors with heavyweight dependencies live in
// subpackages (pdf, docx, html) and are registered via WithExtractor.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// DocConverter converts documents to Markdown: Markdown input passes
// through unchanged (after UTF-8 validation), everything else is delegated
// to a registered Extractor. All output is NFC-normalized.
type DocConverter struct {
	extractors map[ContentType]Extractor
}

// ConverterOption configures a DocConverter.
type ConverterOption func(*DocConverter)

// WithExtractor registers an Extractor for a content type, replacing any
// default registration.
func WithExtractor(ct ContentType, e Extractor) ConverterOption {
	return func(c *DocConverter) { c.extractors[ct] = e }
}

// NewDocConverter creates a converter with plain text, CSV, and JSON
// extractors built in.
func NewDocConverter(opts ...ConverterOption) *DocConverter {
	c := &DocConverter{
		extractors: map[ContentType]Extractor{
			TypePlainText: PlainTextExtractor{},
			TypeCSV:       CSVExtractor{},
			TypeJSON:      JSONExtractor{},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ Converter = (*DocConverter)(nil)

// Convert reads the file at path and returns its Markdown rendering.
// Every failure is reported as a *voynich.ConversionError carrying the
// original cause.
func (c *DocConverter) Convert(path string, contentType ContentType) (string, error) {
	fail := func(err error) (string, error) {
		return "", &voynich.ConversionError{Filename: path, ContentType: string(contentType), Err: err}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	ct := normalizeContentType(contentType)

	if ct == TypeMarkdown {
		if !utf8.Valid(content) {
			return fail(fmt.Errorf("markdown input is not valid UTF-8"))
		}
		return norm.NFC.String(string(content)), nil
	}

	extractor, ok := c.extractors[ct]
	if !ok {
		// Unknown but textual content degrades to plain text.
		if utf8.Valid(content) {
			extractor = PlainTextExtractor{}
		} else {
			return fail(fmt.Errorf("unsupported content type %q", contentType))
		}
	}

	text, err := extractor.Extract(content)
	if err != nil {
		return fail(err)
	}
	return norm.NFC.String(text), nil
}

// normalizeContentType strips MIME parameters ("text/markdown; charset=utf-8")
// and lowercases the media type.
func normalizeContentType(ct ContentType) ContentType {
	s, _, _ := strings.Cut(string(ct), ";")
	return ContentType(strings.ToLower(strings.TrimSpace(s)))
}

// PlainTextExtractor returns UTF-8 text content as-is.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("text input is not valid UTF-8")
	}
	return string(content), nil
}
