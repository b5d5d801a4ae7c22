// Command voynichd runs the document ingestion and search HTTP service.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	voynich "github.com/voynich-dev/voynich"
	"github.com/voynich-dev/voynich/ingest"
	"github.com/voynich-dev/voynich/ingest/docx"
	htmlx "github.com/voynich-dev/voynich/ingest/html"
	"github.com/voynich-dev/voynich/ingest/pdf"
	"github.com/voynich-dev/voynich/internal/config"
	"github.com/voynich-dev/voynich/internal/server"
	"github.com/voynich-dev/voynich/observer"
	"github.com/voynich-dev/voynich/provider/ollama"
	"github.com/voynich-dev/voynich/store/memory"
	"github.com/voynich-dev/voynich/store/postgres"
	"github.com/voynich-dev/voynich/store/sqlite"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("VOYNICH_CONFIG"))

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var embedder voynich.EmbeddingProvider = ollama.NewEmbedding(
		cfg.Ollama.Host, cfg.Ollama.Model, cfg.Ollama.Dimensions)

	var (
		tracer voynich.Tracer
		inst   *observer.Instruments
	)
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("observer shutdown", "error", err)
			}
		}()
		embedder = observer.WrapEmbedding(embedder, inst)
		tracer = observer.NewTracer()
	}

	store, cleanup, err := openStore(ctx, cfg, embedder, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer cleanup()

	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}
	if inst != nil {
		store = observer.WrapStore(store, inst)
	}

	converter := ingest.NewDocConverter(
		ingest.WithExtractor(ingest.TypePDF, pdf.NewExtractor()),
		ingest.WithExtractor(ingest.TypeDOCX, docx.NewExtractor()),
		ingest.WithExtractor(ingest.TypeHTML, htmlx.NewExtractor()),
	)

	ingestOpts := []ingest.Option{
		ingest.WithConverter(converter),
		ingest.WithSplitterConfig(ingest.SplitterConfig{
			ChunkSize:    cfg.Chunking.ChunkSize,
			OverlapRatio: cfg.Chunking.OverlapRatio,
		}),
	}
	if tracer != nil {
		ingestOpts = append(ingestOpts, ingest.WithTracer(tracer))
	}
	ingestor := ingest.NewIngestor(store, ingestOpts...)

	srv := server.New(store, ingestor, server.Config{
		Addr:               cfg.Server.Addr,
		BodyLimit:          cfg.Server.BodyLimit,
		DefaultSearchLimit: cfg.Search.DefaultLimit,
	}, server.WithLogger(logger))

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// openStore builds the configured backend. The returned cleanup closes
// resources the store does not own itself.
func openStore(ctx context.Context, cfg config.Config, embedder voynich.EmbeddingProvider, logger *slog.Logger) (voynich.Store, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(pool, embedder,
			postgres.WithEmbeddingDimension(embedder.Dimensions()))
		return st, pool.Close, nil
	case "memory":
		st := memory.New(memory.WithEmbedder(embedder))
		return st, func() {}, nil
	default:
		st := sqlite.New(cfg.Database.Path,
			sqlite.WithEmbedder(embedder),
			sqlite.WithLogger(logger))
		return st, func() { _ = st.Close() }, nil
	}
}
