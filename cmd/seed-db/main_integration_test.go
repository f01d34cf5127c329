//go:build integration

package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/catalog-browser/internal/storage/postgres"
)

func TestRun_SeedsDatabase(t *testing.T) {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "catalog",
				"POSTGRES_PASSWORD": "catalog",
				"POSTGRES_DB":       "catalog",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	databaseURL := fmt.Sprintf("postgres://catalog:catalog@%s/catalog?sslmode=disable", endpoint)

	require.NoError(t, run(ctx, databaseURL, "", false))
	require.NoError(t, run(ctx, databaseURL, "", false), "seeding twice upserts")

	pool, err := postgres.NewPool(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	products, err := postgres.NewProductStore(pool).List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 5)
	assert.Equal(t, "Leaf Rake", products[0].Name)
}
