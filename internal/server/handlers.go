package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/yuin/goldmark"

	voynich "github.com/voynich-dev/voynich"
	"github.com/voynich-dev/voynich/ingest"
)

// listFetchLimit bounds how many records a listing endpoint pulls from the
// store before paginating in-process.
const listFetchLimit = 10000

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{Status: "ok", Version: Version, Database: "connected"}
	if _, err := s.store.Search(c.Context(), voynich.NamespaceDocuments, voynich.SearchQuery{Limit: 1}); err != nil {
		resp.Status = "degraded"
		resp.Database = "error"
	}
	return c.JSON(resp)
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "missing file field")
	}

	hierarchical := true
	if v := c.FormValue("hierarchical_split"); v != "" {
		hierarchical = v == "true" || v == "1"
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	contentType := ingest.ContentType(fileHeader.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ingest.ContentTypeFromExtension(filepath.Ext(fileHeader.Filename))
	}

	res, err := s.ingestor.Ingest(c.Context(), content, fileHeader.Filename, contentType, hierarchical)
	if err != nil {
		return err
	}

	action := "uploaded"
	if res.Replaced {
		action = "updated"
	}
	return c.JSON(UploadResponse{
		Status:     "success",
		DocumentID: res.Document.ID,
		Filename:   res.Document.Filename,
		ChunkCount: res.Document.ChunkCount,
		Message:    fmt.Sprintf("Document %s and processed into %d chunks", action, res.Document.ChunkCount),
	})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return NewError(fiber.StatusBadRequest, "invalid JSON request")
	}
	if fields := validateStruct(&req); len(fields) > 0 {
		return NewValidationError(fields)
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.DefaultSearchLimit
	}

	ns := voynich.NamespaceChunks
	var filters []voynich.Filter
	if f := req.Filter; f != nil {
		// A document id narrows the namespace instead of filtering, so the
		// store only scans that document's chunks.
		if f.DocumentID != "" {
			ns = ns.Child(f.DocumentID)
		}
		if f.SectionLevel != nil {
			filters = append(filters, voynich.BySectionLevel(*f.SectionLevel))
		}
		if f.Heading != "" {
			filters = append(filters, voynich.ByHeading(f.Heading))
		}
	}

	items, err := s.store.Search(c.Context(), ns, voynich.SearchQuery{
		Text:    req.Query,
		Limit:   limit,
		Offset:  req.Offset,
		Filters: filters,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		var chunk voynich.Chunk
		if err := json.Unmarshal(item.Value, &chunk); err != nil {
			return fmt.Errorf("decode chunk %s: %w", item.Key, err)
		}
		docID := chunk.DocumentID
		if docID == "" && len(item.Namespace) > 1 {
			docID = item.Namespace[len(item.Namespace)-1]
		}
		results = append(results, SearchResult{
			ChunkID:          item.Key,
			DocumentID:       docID,
			DocumentFilename: chunk.Filename,
			Content:          chunk.Text,
			SectionPath:      chunk.SectionPath,
		})
	}
	return c.JSON(SearchResponse{Query: req.Query, Results: results, Total: len(results)})
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 20)
	if skip < 0 || limit < 1 || limit > 100 {
		return NewValidationError(map[string]string{"skip/limit": "skip >= 0, 1 <= limit <= 100"})
	}
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	items, err := s.store.Search(c.Context(), voynich.NamespaceDocuments, voynich.SearchQuery{Limit: listFetchLimit})
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	var filtered []DocumentResponse
	for _, item := range items {
		doc, err := documentFromItem(item)
		if err != nil {
			return err
		}
		if search != "" && !strings.Contains(strings.ToLower(doc.Filename), search) {
			continue
		}
		filtered = append(filtered, doc)
	}

	total := len(filtered)
	if skip >= total {
		filtered = nil
	} else {
		filtered = filtered[skip:]
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	if filtered == nil {
		filtered = []DocumentResponse{}
	}
	return c.JSON(DocumentListResponse{Documents: filtered, Total: total})
}

func (s *Server) handleGetDocument(c *fiber.Ctx) error {
	docID := c.Params("id")
	item, err := s.store.Get(c.Context(), voynich.NamespaceDocuments, docID)
	if err != nil {
		return err
	}
	doc, err := documentFromItem(item)
	if err != nil {
		return err
	}

	chunks, err := s.fetchChunks(c, docID, 0, 1000)
	if err != nil {
		return err
	}
	return c.JSON(DocumentDetailResponse{Document: doc, Chunks: chunks})
}

func (s *Server) handleGetChunks(c *fiber.Ctx) error {
	docID := c.Params("id")
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 50)
	if skip < 0 || limit < 1 || limit > 200 {
		return NewValidationError(map[string]string{"skip/limit": "skip >= 0, 1 <= limit <= 200"})
	}

	if _, err := s.store.Get(c.Context(), voynich.NamespaceDocuments, docID); err != nil {
		return err
	}
	chunks, err := s.fetchChunks(c, docID, skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(chunks)
}

// handlePreview reassembles a document's chunks and renders them as HTML.
// Overlap regions repeat at chunk boundaries; the preview favors showing
// exactly what was indexed over reproducing the source byte-for-byte.
func (s *Server) handlePreview(c *fiber.Ctx) error {
	docID := c.Params("id")
	if _, err := s.store.Get(c.Context(), voynich.NamespaceDocuments, docID); err != nil {
		return err
	}

	chunks, err := s.fetchChunks(c, docID, 0, listFetchLimit)
	if err != nil {
		return err
	}

	var md strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			md.WriteString("\n\n")
		}
		md.WriteString(chunk.Content)
	}

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &html); err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(html.Bytes())
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	docID := c.Params("id")
	if err := ingest.DeleteDocument(c.Context(), s.store, docID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("Document %s deleted", docID),
	})
}

// fetchChunks lists one document's chunks in index order.
func (s *Server) fetchChunks(c *fiber.Ctx, docID string, skip, limit int) ([]ChunkResponse, error) {
	items, err := s.store.Search(c.Context(), voynich.NamespaceChunks.Child(docID), voynich.SearchQuery{
		Limit:  limit,
		Offset: skip,
	})
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	chunks := make([]ChunkResponse, 0, len(items))
	for _, item := range items {
		chunk, err := chunkFromItem(item)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks, nil
}
