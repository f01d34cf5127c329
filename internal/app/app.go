// Package app wires the catalog services together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-browser/internal/catalog"
	"github.com/xenking/catalog-browser/internal/feed"
	"github.com/xenking/catalog-browser/internal/storage/postgres"
	"github.com/xenking/catalog-browser/internal/storage/redis"
	"github.com/xenking/catalog-browser/internal/web"
	"github.com/xenking/catalog-browser/pkg/health"
	"github.com/xenking/catalog-browser/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers. *app.Telemetry from
// go-faster/sdk satisfies it.
type Telemetry = httpmiddleware.Telemetry

const (
	checkInterval   = 10 * time.Second
	goroutineLimit  = 10000
	readinessBudget = 5 * time.Second
)

// RunWeb starts catalog-web and blocks until ctx is done and the server has
// drained.
func RunWeb(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *WebConfig) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("feed", cfg.Feed.URL),
		zap.String("cache", cfg.Cache.Backend),
	)

	opts := []catalog.Option{
		catalog.WithLogger(lg.Named("catalog")),
		catalog.WithMeterProvider(m.MeterProvider()),
		catalog.WithTracerProvider(m.TracerProvider()),
		catalog.WithObserver(catalog.NewLogObserver(lg.Named("snapshot"))),
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(goroutineLimit))

	switch cfg.Cache.Backend {
	case CacheMemory:
		opts = append(opts, catalog.WithCache(catalog.NewMemoryCache(cfg.Cache.TTL)))
	case CacheRedis:
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		opts = append(opts, catalog.WithCache(redis.NewSnapshotCache(client, cfg.Redis.Key, cfg.Cache.TTL)))
	}

	repo, err := catalog.New(catalog.Config{
		URL:          cfg.Feed.URL,
		Timeout:      cfg.Feed.Timeout,
		MaxBodyBytes: cfg.Feed.MaxBodyBytes,
	}, opts...)
	if err != nil {
		return errors.Wrap(err, "create catalog repository")
	}
	healthSvc.AddReadinessCheck("feed", readinessBudget, health.PingCheck("feed", repo))

	router := web.NewServer(repo, web.WithLogger(lg.Named("web"))).Router()
	mountHealth(router, healthSvc)

	find := web.RouteFinder(router)
	handler := httpmiddleware.Wrap(router,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("catalog-web", find, m),
		httpmiddleware.LogRequests(find),
		httpmiddleware.Labeler(find),
	)

	return serve(ctx, lg, cfg.Addr, handler, healthSvc, cfg.Graceful)
}

// RunFeed starts catalog-feed and blocks until ctx is done and the server has
// drained.
func RunFeed(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *FeedConfig) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("source", cfg.Source),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(goroutineLimit))

	var src feed.Source
	switch cfg.Source {
	case SourcePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		store := postgres.NewProductStore(pool)
		healthSvc.AddReadinessCheck("postgres", readinessBudget, health.PingCheck("postgres", store))
		src = store
	case SourceFile:
		static, err := feed.LoadFile(cfg.File)
		if err != nil {
			return errors.Wrap(err, "load products")
		}
		src = static
	default:
		return errors.Errorf("unknown feed source %q", cfg.Source)
	}

	var feedOpts []feed.Option
	if cfg.FailStatus != 0 {
		lg.Warn("Feed failure injection enabled", zap.Int("status", cfg.FailStatus))
		feedOpts = append(feedOpts, feed.WithFailStatus(cfg.FailStatus))
	}

	router := feed.NewHandler(src, feedOpts...).Router()
	mountHealth(router, healthSvc)

	find := web.RouteFinder(router)
	handler := httpmiddleware.Wrap(router,
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("catalog-feed", find, m),
		httpmiddleware.LogRequests(find),
		httpmiddleware.Labeler(find),
	)

	return serve(ctx, lg, cfg.Addr, handler, healthSvc, cfg.Graceful)
}

func mountHealth(r chi.Router, h *health.Health) {
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
}

// serve runs the HTTP server. On ctx cancellation readiness drops first, the
// server keeps serving for ReadinessDelay so load balancers can react, then
// shuts down within ShutdownTimeout.
func serve(ctx context.Context, lg *zap.Logger, addr string, handler http.Handler, healthSvc *health.Health, g GracefulConfig) error {
	healthSvc.Start(ctx, checkInterval)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              addr,
		Handler:           handler,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", g.ReadinessDelay))
		time.Sleep(g.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", g.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
