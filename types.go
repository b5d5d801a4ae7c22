package voynich

import "strings"

// HeadingDepth is the number of Markdown heading levels (1-6) tracked for
// each chunk's lineage.
const HeadingDepth = 6

// SectionSeparator joins heading texts into a section path breadcrumb.
const SectionSeparator = " > "

// Document is the metadata record persisted once per ingested document.
// Its ID is derived from the raw content bytes (see ContentID), so
// re-uploading identical bytes converges on the same record.
type Document struct {
	ID                string `json:"id"`
	Filename          string `json:"filename"`
	ContentType       string `json:"content_type"`
	HierarchicalSplit bool   `json:"hierarchical_split"`
	ChunkCount        int    `json:"chunk_count"`
	CreatedAt         int64  `json:"created_at"`
}

// Chunk is a bounded span of a document's text, the unit embedded and
// retrieved for search. Levels holds the nearest enclosing heading text at
// each Markdown depth (index 0 = "#", index 5 = "######"); empty string
// means no enclosing heading at that depth.
type Chunk struct {
	DocumentID   string               `json:"document_id"`
	Filename     string               `json:"filename"`
	Index        int                  `json:"chunk_index"`
	Text         string               `json:"text"`
	Levels       [HeadingDepth]string `json:"levels"`
	SectionPath  string               `json:"section_path"`
	SectionLevel int                  `json:"section_level"`
}

// DeriveSection fills SectionPath and SectionLevel from Levels:
// the non-empty heading texts joined in depth order, and their count.
// Call after populating Levels; the two fields are never set independently.
func (c *Chunk) DeriveSection() {
	var parts []string
	for _, l := range c.Levels {
		if l != "" {
			parts = append(parts, l)
		}
	}
	c.SectionPath = strings.Join(parts, SectionSeparator)
	c.SectionLevel = len(parts)
}
