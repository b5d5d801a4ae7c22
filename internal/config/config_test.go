package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "voynich.db" {
		t.Errorf("database defaults = %+v", cfg.Database)
	}
	if cfg.Ollama.Model != "nomic-embed-text" || cfg.Ollama.Dimensions != 768 {
		t.Errorf("ollama defaults = %+v", cfg.Ollama)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.OverlapRatio != 0.1 {
		t.Errorf("chunking defaults = %+v", cfg.Chunking)
	}
	if cfg.Observer.Enabled {
		t.Error("observer enabled by default")
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voynich.toml")
	data := `
[server]
addr = ":9000"

[database]
driver = "postgres"
url = "postgres://localhost/voynich"

[chunking]
chunk_size = 500
overlap_ratio = 0.2
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.URL != "postgres://localhost/voynich" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.OverlapRatio != 0.2 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Ollama.Model != "nomic-embed-text" {
		t.Errorf("Model = %q", cfg.Ollama.Model)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voynich.toml")
	if err := os.WriteFile(path, []byte("[server]\naddr = \":9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VOYNICH_ADDR", ":7000")
	t.Setenv("VOYNICH_DB_DRIVER", "memory")
	t.Setenv("VOYNICH_OLLAMA_DIMENSIONS", "1024")
	t.Setenv("VOYNICH_OVERLAP_RATIO", "0.25")
	t.Setenv("VOYNICH_OBSERVER_ENABLED", "1")

	cfg := Load(path)
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q, env should win over file", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Ollama.Dimensions != 1024 {
		t.Errorf("Dimensions = %d", cfg.Ollama.Dimensions)
	}
	if cfg.Chunking.OverlapRatio != 0.25 {
		t.Errorf("OverlapRatio = %v", cfg.Chunking.OverlapRatio)
	}
	if !cfg.Observer.Enabled {
		t.Error("Observer.Enabled not set from env")
	}
}

func TestDatabaseURLFallback(t *testing.T) {
	t.Setenv("VOYNICH_DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://fallback/db")

	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Database.URL != "postgres://fallback/db" {
		t.Errorf("URL = %q", cfg.Database.URL)
	}
}

func TestBadEnvNumbersIgnored(t *testing.T) {
	t.Setenv("VOYNICH_CHUNK_SIZE", "not-a-number")
	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Chunking.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want default 1000", cfg.Chunking.ChunkSize)
	}
}
