package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

// Observer receives every successfully fetched snapshot. It is a diagnostic
// side channel: it runs asynchronously and cannot influence the fetch result.
type Observer interface {
	ObserveSnapshot(ctx context.Context, s product.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, s product.Snapshot)

// ObserveSnapshot calls f.
func (f ObserverFunc) ObserveSnapshot(ctx context.Context, s product.Snapshot) { f(ctx, s) }

// LogObserver logs fetched snapshots at debug level.
type LogObserver struct {
	lg *zap.Logger
}

// NewLogObserver returns an Observer writing to lg.
func NewLogObserver(lg *zap.Logger) *LogObserver {
	return &LogObserver{lg: lg}
}

// ObserveSnapshot implements Observer.
func (o *LogObserver) ObserveSnapshot(_ context.Context, s product.Snapshot) {
	o.lg.Debug("Catalog fetched",
		zap.Int("count", len(s.Products)),
		zap.Int64s("ids", s.IDs()),
		zap.Time("fetched_at", s.FetchedAt),
		zap.Bool("cached", s.Cached),
	)
}

// notify fans the snapshot out to observers in the background. A panicking
// observer is logged and does not affect the others.
func (r *Repository) notify(ctx context.Context, s product.Snapshot) {
	if len(r.observers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, o := range r.observers {
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.lg.Error("Catalog observer panicked", zap.Any("panic", rec))
				}
			}()
			o.ObserveSnapshot(ctx, s)
		}()
	}
}
