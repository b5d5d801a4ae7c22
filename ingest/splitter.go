package ingest

import (
	"fmt"
	"strings"

	voynich "github.com/voynich-dev/voynich"
)

// SplitterConfig bounds chunk size and overlap for both split modes.
type SplitterConfig struct {
	// ChunkSize is the target maximum characters per chunk. A single
	// atomic token longer than this may still exceed it.
	ChunkSize int
	// OverlapRatio is the fraction of ChunkSize shared between consecutive
	// chunks of the same section.
	OverlapRatio float64
}

// DefaultSplitterConfig returns the standard 1000-character / 10% overlap
// configuration.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{ChunkSize: 1000, OverlapRatio: 0.1}
}

func (c SplitterConfig) overlapChars() int {
	return int(float64(c.ChunkSize) * c.OverlapRatio)
}

func (c SplitterConfig) validate() error {
	if c.ChunkSize <= 0 {
		return &voynich.SplitError{Reason: fmt.Sprintf("chunk size must be positive, got %d", c.ChunkSize)}
	}
	if c.OverlapRatio < 0 {
		return &voynich.SplitError{Reason: fmt.Sprintf("overlap ratio must not be negative, got %g", c.OverlapRatio)}
	}
	if c.overlapChars() >= c.ChunkSize {
		return &voynich.SplitError{Reason: fmt.Sprintf("overlap %d must be smaller than chunk size %d", c.overlapChars(), c.ChunkSize)}
	}
	return nil
}

// Splitter turns a Markdown document into ordered chunk records.
// Index, Text, Levels, SectionPath, and SectionLevel are populated;
// document identity fields are attached later by the Ingestor.
type Splitter interface {
	Split(markdown string) []voynich.Chunk
}

// Section is a contiguous span of Markdown governed by one heading context:
// the content between a heading and the next heading of equal or shallower
// depth, with the stack of enclosing heading texts active at that point.
type Section struct {
	Levels  [voynich.HeadingDepth]string
	Content string
}

// SplitSections partitions Markdown into sections at heading boundaries.
// Heading lines themselves become lineage metadata, not content. Content
// preceding any heading forms a section with all levels empty. Headings
// inside fenced code blocks are ignored.
func SplitSections(markdown string) []Section {
	var sections []Section
	var levels [voynich.HeadingDepth]string
	var content strings.Builder
	fence := ""   // opening fence marker, "" when outside a fenced block
	seen := false // a heading has been consumed

	flush := func() {
		text := strings.TrimRight(content.String(), "\n")
		content.Reset()
		if strings.TrimSpace(text) == "" && !seen {
			return
		}
		sections = append(sections, Section{Levels: levels, Content: text})
	}

	lines := strings.Split(markdown, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case fence == "" && strings.HasPrefix(trimmed, "```"):
			fence = "```"
		case fence == "" && strings.HasPrefix(trimmed, "~~~"):
			fence = "~~~"
		case fence != "" && strings.HasPrefix(trimmed, fence):
			// Only the marker that opened the block closes it.
			fence = ""
		}

		if depth, text, ok := parseHeading(line); ok && fence == "" {
			flush()
			seen = true
			levels[depth-1] = text
			for i := depth; i < voynich.HeadingDepth; i++ {
				levels[i] = ""
			}
			continue
		}

		content.WriteString(line)
		content.WriteByte('\n')
	}
	flush()

	if len(sections) == 0 {
		// Blank document: one empty section so both modes behave alike.
		sections = append(sections, Section{})
	}
	return sections
}

// parseHeading reports whether line is an ATX heading, returning its depth
// (1-6) and trimmed text.
func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimSpace(line)
	depth := 0
	for depth < len(trimmed) && trimmed[depth] == '#' {
		depth++
	}
	if depth == 0 || depth > voynich.HeadingDepth {
		return 0, "", false
	}
	rest := trimmed[depth:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	// Trailing closing hashes ("## Title ##") are decoration.
	text := strings.TrimSpace(rest)
	text = strings.TrimSpace(strings.TrimRight(text, "#"))
	return depth, text, true
}

// HierarchicalSplitter splits Markdown into heading-scoped sections, then
// size-bounds each section's content. Chunk indices run across the whole
// document, not per section.
type HierarchicalSplitter struct {
	cfg SplitterConfig
}

var _ Splitter = (*HierarchicalSplitter)(nil)

// NewHierarchicalSplitter validates cfg and returns a splitter.
func NewHierarchicalSplitter(cfg SplitterConfig) (*HierarchicalSplitter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &HierarchicalSplitter{cfg: cfg}, nil
}

// Split emits chunk records with heading lineage and a document-global index.
func (s *HierarchicalSplitter) Split(markdown string) []voynich.Chunk {
	var chunks []voynich.Chunk
	index := 0

	for _, sec := range SplitSections(markdown) {
		for _, text := range splitText(sec.Content, s.cfg.ChunkSize, s.cfg.overlapChars()) {
			c := voynich.Chunk{
				Index:  index,
				Text:   text,
				Levels: sec.Levels,
			}
			c.DeriveSection()
			chunks = append(chunks, c)
			index++
		}
	}
	return chunks
}

// FlatSplitter size-bounds the whole document as a single section.
// All heading levels are empty and section level is 0.
type FlatSplitter struct {
	cfg SplitterConfig
}

var _ Splitter = (*FlatSplitter)(nil)

// NewFlatSplitter validates cfg and returns a splitter.
func NewFlatSplitter(cfg SplitterConfig) (*FlatSplitter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &FlatSplitter{cfg: cfg}, nil
}

// Split emits chunk records in flat order with empty lineage.
func (s *FlatSplitter) Split(markdown string) []voynich.Chunk {
	var chunks []voynich.Chunk
	for i, text := range splitText(markdown, s.cfg.ChunkSize, s.cfg.overlapChars()) {
		c := voynich.Chunk{Index: i, Text: text}
		c.DeriveSection()
		chunks = append(chunks, c)
	}
	return chunks
}
