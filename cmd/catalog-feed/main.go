package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/catalog-browser/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadFeedConfig()
		if err != nil {
			return err
		}
		return appkg.RunFeed(ctx, lg, m, cfg)
	})
}
