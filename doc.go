// Package voynich is a document ingestion and retrieval library.
//
// Documents in common formats (PDF, DOCX, HTML, CSV, JSON, Markdown) are
// converted to Markdown, split into bounded overlapping chunks that preserve
// heading lineage, and written to a namespaced key/value store with vector
// similarity search.
//
// The root package holds the domain types (Document, Chunk), the store
// contract, the error taxonomy, and identity helpers. Implementations live
// in subpackages:
//
//   - ingest: conversion, splitting, and the ingestion pipeline
//   - store/postgres, store/sqlite, store/memory: Store backends
//   - provider/ollama: embedding provider
//   - internal/server: HTTP API
//   - mcp: Model Context Protocol server over stdio
//   - observer: OpenTelemetry tracing and metrics
package voynich
