package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	voynich "github.com/voynich-dev/voynich"
)

// ChunkResponse is the wire form of one stored chunk.
type ChunkResponse struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	Content      string `json:"content"`
	Level1       string `json:"level1"`
	Level2       string `json:"level2"`
	Level3       string `json:"level3"`
	Level4       string `json:"level4"`
	Level5       string `json:"level5"`
	Level6       string `json:"level6"`
	SectionPath  string `json:"section_path,omitempty"`
	SectionLevel int    `json:"section_level,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// DocumentResponse is the wire form of document metadata.
type DocumentResponse struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   int64          `json:"created_at,omitempty"`
	ChunkCount  int            `json:"chunk_count"`
}

// DocumentListResponse is the paginated document listing.
type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Total     int                `json:"total"`
}

// DocumentDetailResponse is one document together with all of its chunks.
type DocumentDetailResponse struct {
	Document DocumentResponse `json:"document"`
	Chunks   []ChunkResponse  `json:"chunks"`
}

// SearchFilter narrows a search to one document, heading depth, or heading
// text.
type SearchFilter struct {
	DocumentID   string `json:"document_id,omitempty"`
	SectionLevel *int   `json:"section_level,omitempty"`
	Heading      string `json:"heading,omitempty"`
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query  string        `json:"query" validate:"required"`
	Limit  int           `json:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset int           `json:"offset" validate:"gte=0"`
	Filter *SearchFilter `json:"filter,omitempty"`
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	ChunkID          string `json:"chunk_id"`
	DocumentID       string `json:"document_id"`
	DocumentFilename string `json:"document_filename"`
	Content          string `json:"content"`
	SectionPath      string `json:"section_path,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// StatusResponse is the health check body.
type StatusResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

var validate = validator.New()

// validateStruct runs struct-tag validation and flattens failures into a
// field -> reason map.
func validateStruct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return fields
}

// documentFromItem decodes a stored metadata record into its wire form.
func documentFromItem(item voynich.Item) (DocumentResponse, error) {
	var doc voynich.Document
	if err := json.Unmarshal(item.Value, &doc); err != nil {
		return DocumentResponse{}, fmt.Errorf("decode document %s: %w", item.Key, err)
	}
	return DocumentResponse{
		ID:          item.Key,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Metadata:    map[string]any{"hierarchical_split": doc.HierarchicalSplit},
		CreatedAt:   doc.CreatedAt,
		ChunkCount:  doc.ChunkCount,
	}, nil
}

// chunkFromItem decodes a stored chunk record into its wire form.
func chunkFromItem(item voynich.Item) (ChunkResponse, error) {
	var chunk voynich.Chunk
	if err := json.Unmarshal(item.Value, &chunk); err != nil {
		return ChunkResponse{}, fmt.Errorf("decode chunk %s: %w", item.Key, err)
	}
	return ChunkResponse{
		ID:           item.Key,
		DocumentID:   chunk.DocumentID,
		Content:      chunk.Text,
		Level1:       chunk.Levels[0],
		Level2:       chunk.Levels[1],
		Level3:       chunk.Levels[2],
		Level4:       chunk.Levels[3],
		Level5:       chunk.Levels[4],
		Level6:       chunk.Levels[5],
		SectionPath:  chunk.SectionPath,
		SectionLevel: chunk.SectionLevel,
		ChunkIndex:   chunk.Index,
		CreatedAt:    item.CreatedAt,
	}, nil
}
