package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	voynich "github.com/voynich-dev/voynich"
)

// chunkSweepBatch is the page size used when deleting a document's stale
// chunks before a replacement write.
const chunkSweepBatch = 1000

// Result holds the outcome of an ingest operation.
type Result struct {
	Document voynich.Document
	// Replaced reports that a document with the same content id already
	// existed and its chunk set was superseded.
	Replaced bool
}

// Ingestor runs the ingestion pipeline: convert to Markdown, split into
// chunks, derive the content-addressed document id, and persist through the
// retrieval façade. A single Ingestor is safe for concurrent use.
type Ingestor struct {
	store     voynich.Store
	converter Converter
	cfg       SplitterConfig
	tracer    voynich.Tracer
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithConverter replaces the default DocConverter. Use this to register
// the pdf, docx, and html extractors.
func WithConverter(c Converter) Option {
	return func(ing *Ingestor) { ing.converter = c }
}

// WithSplitterConfig sets chunk size and overlap for both split modes.
func WithSplitterConfig(cfg SplitterConfig) Option {
	return func(ing *Ingestor) { ing.cfg = cfg }
}

// WithTracer enables span emission around pipeline stages.
func WithTracer(t voynich.Tracer) Option {
	return func(ing *Ingestor) { ing.tracer = t }
}

// NewIngestor creates an Ingestor with the default converter and splitter
// configuration.
func NewIngestor(store voynich.Store, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:     store,
		converter: NewDocConverter(),
		cfg:       DefaultSplitterConfig(),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// Ingest processes one uploaded document. Re-ingesting identical bytes
// yields the same document id and replaces the previous chunk set in place.
// The staged input file is removed on every exit path.
func (ing *Ingestor) Ingest(ctx context.Context, content []byte, filename string, contentType ContentType, hierarchical bool) (Result, error) {
	ctx, span := ing.span(ctx, "ingest",
		voynich.StringAttr("filename", filename),
		voynich.BoolAttr("hierarchical", hierarchical),
	)
	defer span.End()

	res, err := ing.ingest(ctx, content, filename, contentType, hierarchical)
	if err != nil {
		span.Error(err)
		return Result{}, err
	}
	span.SetAttr(
		voynich.StringAttr("document_id", res.Document.ID),
		voynich.IntAttr("chunk_count", res.Document.ChunkCount),
	)
	return res, nil
}

func (ing *Ingestor) ingest(ctx context.Context, content []byte, filename string, contentType ContentType, hierarchical bool) (Result, error) {
	markdown, err := ing.convert(ctx, content, filename, contentType)
	if err != nil {
		return Result{}, err
	}

	chunks, err := ing.split(ctx, markdown, hierarchical)
	if err != nil {
		return Result{}, err
	}

	docID := voynich.ContentID(content)

	ctx, span := ing.span(ctx, "ingest.store", voynich.StringAttr("document_id", docID))
	defer span.End()

	replaced, err := ing.sweepExisting(ctx, docID)
	if err != nil {
		span.Error(err)
		return Result{}, err
	}

	// All chunk writes are independent: the index lives inside each record,
	// not in write order. Parallelism is bounded by the chunk count.
	chunkNS := voynich.NamespaceChunks.Child(docID)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range chunks {
		chunk := chunks[i]
		chunk.DocumentID = docID
		chunk.Filename = filename
		eg.Go(func() error {
			return ing.store.Put(egCtx, chunkNS, voynich.ChunkKey(chunk.Index), chunk, true)
		})
	}
	if err := eg.Wait(); err != nil {
		err = &voynich.StoreError{Op: "put chunk", Err: err}
		span.Error(err)
		return Result{}, err
	}

	// Metadata is finalized only after every chunk write has returned, so
	// chunk_count never overstates what is persisted.
	doc := voynich.Document{
		ID:                docID,
		Filename:          filename,
		ContentType:       string(contentType),
		HierarchicalSplit: hierarchical,
		ChunkCount:        len(chunks),
		CreatedAt:         voynich.NowUnix(),
	}
	if err := ing.store.Put(ctx, voynich.NamespaceDocuments, docID, doc, false); err != nil {
		err = &voynich.StoreError{Op: "put document", Err: err}
		span.Error(err)
		return Result{}, err
	}

	return Result{Document: doc, Replaced: replaced}, nil
}

// convert stages the raw bytes to a temporary file and runs the configured
// converter on it.
func (ing *Ingestor) convert(ctx context.Context, content []byte, filename string, contentType ContentType) (string, error) {
	_, span := ing.span(ctx, "ingest.convert", voynich.StringAttr("content_type", string(contentType)))
	defer span.End()

	tmp, err := os.CreateTemp("", "voynich-upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}

	markdown, err := ing.converter.Convert(tmp.Name(), contentType)
	if err != nil {
		span.Error(err)
		return "", err
	}
	return markdown, nil
}

func (ing *Ingestor) split(ctx context.Context, markdown string, hierarchical bool) ([]voynich.Chunk, error) {
	_, span := ing.span(ctx, "ingest.split")
	defer span.End()

	var (
		splitter Splitter
		err      error
	)
	if hierarchical {
		splitter, err = NewHierarchicalSplitter(ing.cfg)
	} else {
		splitter, err = NewFlatSplitter(ing.cfg)
	}
	if err != nil {
		span.Error(err)
		return nil, err
	}

	chunks := splitter.Split(markdown)
	span.SetAttr(voynich.IntAttr("chunk_count", len(chunks)))
	return chunks, nil
}

// sweepExisting deletes all chunks of an existing document with this id so
// the new chunk set fully supersedes the old one. The sweep finishes before
// any new chunk is written; concurrent uploads of the same content race
// with last-writer-wins semantics per chunk key.
func (ing *Ingestor) sweepExisting(ctx context.Context, docID string) (bool, error) {
	_, err := ing.store.Get(ctx, voynich.NamespaceDocuments, docID)
	if errors.Is(err, voynich.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &voynich.StoreError{Op: "get document", Err: err}
	}

	if _, err := sweepChunks(ctx, ing.store, docID); err != nil {
		return false, err
	}
	return true, nil
}

// sweepChunks deletes every chunk under one document's namespace and
// returns the number removed.
func sweepChunks(ctx context.Context, store voynich.Store, docID string) (int, error) {
	ns := voynich.NamespaceChunks.Child(docID)
	removed := 0
	for {
		items, err := store.Search(ctx, ns, voynich.SearchQuery{Limit: chunkSweepBatch})
		if err != nil {
			return removed, &voynich.StoreError{Op: "list chunks", Err: err}
		}
		if len(items) == 0 {
			return removed, nil
		}
		for _, item := range items {
			if err := store.Delete(ctx, ns, item.Key); err != nil {
				return removed, &voynich.StoreError{Op: "delete chunk", Err: err}
			}
			removed++
		}
	}
}

// DeleteDocument removes a document's metadata record and every chunk
// belonging to it. Returns voynich.ErrNotFound if no such document exists.
func DeleteDocument(ctx context.Context, store voynich.Store, docID string) error {
	_, err := store.Get(ctx, voynich.NamespaceDocuments, docID)
	if errors.Is(err, voynich.ErrNotFound) {
		return voynich.ErrNotFound
	}
	if err != nil {
		return &voynich.StoreError{Op: "get document", Err: err}
	}

	if _, err := sweepChunks(ctx, store, docID); err != nil {
		return err
	}
	if err := store.Delete(ctx, voynich.NamespaceDocuments, docID); err != nil {
		return &voynich.StoreError{Op: "delete document", Err: err}
	}
	return nil
}

// span starts a tracer span, or returns a no-op when tracing is disabled.
func (ing *Ingestor) span(ctx context.Context, name string, attrs ...voynich.SpanAttr) (context.Context, voynich.Span) {
	if ing.tracer == nil {
		return ctx, nopSpan{}
	}
	return ing.tracer.Start(ctx, name, attrs...)
}

type nopSpan struct{}

func (nopSpan) SetAttr(...voynich.SpanAttr) {}
func (nopSpan) Error(error)                 {}
func (nopSpan) End()                        {}
