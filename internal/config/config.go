// Package config loads service configuration from a TOML file with
// environment-variable overrides.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Ollama   OllamaConfig   `toml:"ollama"`
	Chunking ChunkingConfig `toml:"chunking"`
	Search   SearchConfig   `toml:"search"`
	Observer ObserverConfig `toml:"observer"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// BodyLimit caps upload size in bytes.
	BodyLimit int `toml:"body_limit"`
}

type DatabaseConfig struct {
	// Driver selects the store backend: "postgres", "sqlite", or "memory".
	Driver string `toml:"driver"`
	// URL is the postgres connection string.
	URL string `toml:"url"`
	// Path is the sqlite database file.
	Path string `toml:"path"`
}

type OllamaConfig struct {
	Host       string `toml:"host"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

type ChunkingConfig struct {
	ChunkSize    int     `toml:"chunk_size"`
	OverlapRatio float64 `toml:"overlap_ratio"`
}

type SearchConfig struct {
	DefaultLimit int `toml:"default_limit"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8000", BodyLimit: 50 << 20},
		Database: DatabaseConfig{Driver: "sqlite", Path: "voynich.db"},
		Ollama:   OllamaConfig{Host: "http://localhost:11434", Model: "nomic-embed-text", Dimensions: 768},
		Chunking: ChunkingConfig{ChunkSize: 1000, OverlapRatio: 0.1},
		Search:   SearchConfig{DefaultLimit: 5},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "voynich.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("VOYNICH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VOYNICH_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("VOYNICH_DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("VOYNICH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VOYNICH_OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("VOYNICH_OLLAMA_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("VOYNICH_OLLAMA_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ollama.Dimensions = n
		}
	}
	if v := os.Getenv("VOYNICH_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.ChunkSize = n
		}
	}
	if v := os.Getenv("VOYNICH_OVERLAP_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chunking.OverlapRatio = f
		}
	}
	if os.Getenv("VOYNICH_OBSERVER_ENABLED") == "true" || os.Getenv("VOYNICH_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			cfg.Database.URL = v
		}
	}

	return cfg
}
