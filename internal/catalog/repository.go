// Package catalog implements the product repository backed by the remote
// product feed.
//
// Every product lookup is a projection over the full collection: FetchOne
// calls FetchAll and scans the result, so any product visible in the list is
// resolvable by ID. Transport failures are normalized into
// *product.AccessError before they leave the package.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

const (
	// fetchKey is the singleflight key: FetchAll takes no parameters, so all
	// concurrent callers share one request.
	fetchKey = "all"

	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 8 << 20
)

var _ product.Repository = (*Repository)(nil)

// Config holds the feed location and transport limits.
type Config struct {
	// URL of the endpoint serving the full product collection.
	URL string
	// Timeout bounds a single remote fetch. Zero means 10s.
	Timeout time.Duration
	// MaxBodyBytes caps the response size. Zero means 8 MiB.
	MaxBodyBytes int64
}

// Option configures optional Repository dependencies.
type Option func(*Repository)

// WithHTTPClient sets the HTTP client used to reach the feed.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Repository) { r.client = c }
}

// WithCache enables snapshot caching.
func WithCache(c SnapshotCache) Option {
	return func(r *Repository) { r.cache = c }
}

// WithObserver registers a snapshot observer.
func WithObserver(o Observer) Option {
	return func(r *Repository) { r.observers = append(r.observers, o) }
}

// WithLogger sets the logger for cache and observer failures.
func WithLogger(lg *zap.Logger) Option {
	return func(r *Repository) { r.lg = lg }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Repository) { r.mp = mp }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Repository) { r.tp = tp }
}

// Repository implements product.Repository over an HTTP product feed.
type Repository struct {
	url     string
	timeout time.Duration
	maxBody int64

	client    *http.Client
	cache     SnapshotCache
	observers []Observer
	lg        *zap.Logger
	mp        metric.MeterProvider
	tp        trace.TracerProvider
	now       func() time.Time

	tracer  trace.Tracer
	metrics *metrics
	group   singleflight.Group
}

// New creates a Repository for the feed described by cfg.
func New(cfg Config, opts ...Option) (*Repository, error) {
	if cfg.URL == "" {
		return nil, errors.New("feed URL is required")
	}
	r := &Repository{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		maxBody: cfg.MaxBodyBytes,
		lg:      zap.NewNop(),
		mp:      metricnoop.NewMeterProvider(),
		tp:      tracenoop.NewTracerProvider(),
		now:     time.Now,
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.maxBody <= 0 {
		r.maxBody = defaultMaxBodyBytes
	}
	for _, o := range opts {
		o(r)
	}
	if r.client == nil {
		r.client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(r.tp),
				otelhttp.WithMeterProvider(r.mp),
			),
		}
	}

	m, err := newMetrics(r.mp)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}
	r.metrics = m
	r.tracer = r.tp.Tracer(instrumentationName)

	return r, nil
}

// FetchAll returns the full catalog in the order the feed delivered it. The
// returned slice is a copy owned by the caller.
func (r *Repository) FetchAll(ctx context.Context) ([]product.Product, error) {
	s, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.notify(ctx, s)
	return product.Clone(s.Products), nil
}

// FetchOne returns the first product with the given ID. A product missing
// from the catalog is reported as ok=false with a nil error.
func (r *Repository) FetchOne(ctx context.Context, id int64) (product.Product, bool, error) {
	products, err := r.FetchAll(ctx)
	if err != nil {
		return product.Product{}, false, err
	}
	p, ok := product.Snapshot{Products: products}.Find(id)
	return p, ok, nil
}

// Ping checks that the catalog can be retrieved.
func (r *Repository) Ping(ctx context.Context) error {
	_, err := r.snapshot(ctx)
	return err
}

// snapshot returns a cached snapshot or joins the in-flight remote fetch.
func (r *Repository) snapshot(ctx context.Context) (product.Snapshot, error) {
	if s, ok := r.loadCached(ctx); ok {
		return s, nil
	}

	// The shared fetch must outlive any single caller: it is bounded by the
	// fetch timeout instead.
	ch := r.group.DoChan(fetchKey, func() (any, error) {
		return r.fetchRemote(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return product.Snapshot{}, res.Err
		}
		return res.Val.(product.Snapshot), nil
	case <-ctx.Done():
		return product.Snapshot{}, product.ClientError(ctx.Err().Error())
	}
}

func (r *Repository) fetchRemote(ctx context.Context) (_ product.Snapshot, rerr error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "catalog.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("catalog.url", r.url)),
	)
	start := r.now()
	defer func() {
		outcome := "ok"
		if ae, ok := product.AsAccessError(rerr); ok {
			outcome = ae.Kind.String()
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		r.metrics.recordFetch(ctx, outcome, r.now().Sub(start))
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return product.Snapshot{}, product.ClientError(err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return product.Snapshot{}, product.ClientError(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, r.maxBody))
		return product.Snapshot{}, product.ServerError(resp.StatusCode,
			fmt.Sprintf("http failure response for %s: %s", r.url, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return product.Snapshot{}, product.ClientError(err.Error())
	}
	if int64(len(body)) > r.maxBody {
		return product.Snapshot{}, product.ServerError(resp.StatusCode,
			fmt.Sprintf("http failure during parsing for %s: body exceeds %d bytes", r.url, r.maxBody))
	}

	products, err := product.DecodeList(body)
	if err != nil {
		return product.Snapshot{}, product.ServerError(resp.StatusCode,
			fmt.Sprintf("http failure during parsing for %s: %s", r.url, err))
	}
	span.SetAttributes(attribute.Int("catalog.products", len(products)))

	s := product.Snapshot{Products: products, FetchedAt: r.now()}
	r.storeCached(ctx, s)
	return s, nil
}

func (r *Repository) loadCached(ctx context.Context) (product.Snapshot, bool) {
	if r.cache == nil {
		return product.Snapshot{}, false
	}
	s, ok, err := r.cache.Load(ctx)
	if err != nil {
		r.lg.Warn("Catalog cache load failed", zap.Error(err))
		ok = false
	}
	r.metrics.recordCache(ctx, ok)
	if !ok {
		return product.Snapshot{}, false
	}
	s.Cached = true
	return s, true
}

func (r *Repository) storeCached(ctx context.Context, s product.Snapshot) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Store(ctx, s); err != nil {
		r.lg.Warn("Catalog cache store failed", zap.Error(err))
	}
}
