// Command voynich-mcp exposes the document store to MCP clients over stdio.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	voynich "github.com/voynich-dev/voynich"
	"github.com/voynich-dev/voynich/internal/config"
	"github.com/voynich-dev/voynich/mcp"
	"github.com/voynich-dev/voynich/provider/ollama"
	"github.com/voynich-dev/voynich/store/postgres"
	"github.com/voynich-dev/voynich/store/sqlite"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("VOYNICH_CONFIG"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder := ollama.NewEmbedding(cfg.Ollama.Host, cfg.Ollama.Model, cfg.Ollama.Dimensions)

	var store voynich.Store
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool, embedder,
			postgres.WithEmbeddingDimension(embedder.Dimensions()))
	default:
		st := sqlite.New(cfg.Database.Path, sqlite.WithEmbedder(embedder))
		defer st.Close()
		store = st
	}

	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}

	srv := mcp.New("voynich", "1.0.0")
	for _, tool := range mcp.DocumentTools(store) {
		srv.AddTool(tool)
	}

	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		log.Fatalf("mcp serve: %v", err)
	}
}
