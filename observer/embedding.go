package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	voynich "github.com/voynich-dev/voynich"
)

// InstrumentedEmbedding wraps a voynich.EmbeddingProvider with OTEL traces
// and metrics. Every Embed call produces a span plus request count and
// duration measurements tagged with the provider name.
type InstrumentedEmbedding struct {
	inner voynich.EmbeddingProvider
	inst  *Instruments
}

var _ voynich.EmbeddingProvider = (*InstrumentedEmbedding)(nil)

// WrapEmbedding instruments an embedding provider.
func WrapEmbedding(p voynich.EmbeddingProvider, inst *Instruments) *InstrumentedEmbedding {
	return &InstrumentedEmbedding{inner: p, inst: inst}
}

func (e *InstrumentedEmbedding) Name() string    { return e.inner.Name() }
func (e *InstrumentedEmbedding) Dimensions() int { return e.inner.Dimensions() }

func (e *InstrumentedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	attrs := []attribute.KeyValue{
		attribute.String("embedding.provider", e.inner.Name()),
		attribute.Int("embedding.input_count", len(texts)),
	}

	ctx, span := e.inst.Tracer.Start(ctx, "embedding.embed", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	vecs, err := e.inner.Embed(ctx, texts)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	e.inst.EmbedRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	e.inst.EmbedDuration.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return vecs, nil
}
