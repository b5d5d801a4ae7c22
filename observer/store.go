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

// InstrumentedStore wraps a voynich.Store with OTEL traces and metrics.
// Search calls produce a span plus request count and duration measurements;
// indexed writes count toward the chunks-written counter.
type InstrumentedStore struct {
	inner voynich.Store
	inst  *Instruments
}

var _ voynich.Store = (*InstrumentedStore)(nil)

// WrapStore instruments a store.
func WrapStore(s voynich.Store, inst *Instruments) *InstrumentedStore {
	return &InstrumentedStore{inner: s, inst: inst}
}

func (s *InstrumentedStore) Init(ctx context.Context) error { return s.inner.Init(ctx) }
func (s *InstrumentedStore) Close() error                   { return s.inner.Close() }

func (s *InstrumentedStore) Put(ctx context.Context, ns voynich.Namespace, key string, value any, index bool) error {
	err := s.inner.Put(ctx, ns, key, value, index)
	if err == nil && index {
		s.inst.ChunksWritten.Add(ctx, 1,
			metric.WithAttributes(attribute.String("store.namespace", ns.String())))
	}
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, ns voynich.Namespace, key string) (voynich.Item, error) {
	return s.inner.Get(ctx, ns, key)
}

func (s *InstrumentedStore) Delete(ctx context.Context, ns voynich.Namespace, key string) error {
	return s.inner.Delete(ctx, ns, key)
}

func (s *InstrumentedStore) Search(ctx context.Context, ns voynich.Namespace, q voynich.SearchQuery) ([]voynich.Item, error) {
	attrs := []attribute.KeyValue{
		attribute.String("store.namespace", ns.String()),
		attribute.Bool("store.vector_search", q.Text != ""),
	}

	ctx, span := s.inst.Tracer.Start(ctx, "store.search", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	items, err := s.inner.Search(ctx, ns, q)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	s.inst.SearchRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.inst.SearchDuration.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("store.result_count", len(items)))
	return items, nil
}
