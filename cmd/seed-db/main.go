package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-browser/db"
	"github.com/xenking/catalog-browser/internal/domain/product"
	"github.com/xenking/catalog-browser/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		dryRun       bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (default: embedded seed)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the products file without touching the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, dryRun); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, dryRun bool) error {
	data := db.SeedProducts
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))
		var err error
		if data, err = os.ReadFile(productsFile); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}

	if dryRun {
		products, err := loadProducts(data)
		if err != nil {
			return err
		}
		slog.Info("products are valid", slog.Int("count", len(products)))
		return nil
	}

	var (
		products []product.Product
		pool     *pgxpool.Pool
	)
	defer func() {
		if pool != nil {
			pool.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = loadProducts(data)
		return err
	})
	g.Go(func() error {
		slog.Info("connecting to database")
		p, err := postgres.NewPool(gctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		pool = p

		slog.Info("running migrations")
		if err := postgres.RunMigrations(gctx, p); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	if err := postgres.NewProductStore(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	for _, p := range products {
		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}
