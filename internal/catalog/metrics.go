package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/xenking/catalog-browser/internal/catalog"

type metrics struct {
	fetches     metric.Int64Counter
	duration    metric.Float64Histogram
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)

	var (
		m   metrics
		err error
	)
	if m.fetches, err = meter.Int64Counter("catalog.fetch.count",
		metric.WithDescription("Remote catalog fetches by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "fetch counter")
	}
	if m.duration, err = meter.Float64Histogram("catalog.fetch.duration",
		metric.WithDescription("Remote catalog fetch latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "fetch duration")
	}
	if m.cacheHits, err = meter.Int64Counter("catalog.cache.hits"); err != nil {
		return nil, errors.Wrap(err, "cache hits counter")
	}
	if m.cacheMisses, err = meter.Int64Counter("catalog.cache.misses"); err != nil {
		return nil, errors.Wrap(err, "cache misses counter")
	}
	return &m, nil
}

func (m *metrics) recordFetch(ctx context.Context, outcome string, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.fetches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, took.Seconds(), attrs)
}

func (m *metrics) recordCache(ctx context.Context, hit bool) {
	if hit {
		m.cacheHits.Add(ctx, 1)
		return
	}
	m.cacheMisses.Add(ctx, 1)
}
