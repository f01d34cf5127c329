package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-browser/db"
)

func TestRun_DryRun(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, run(ctx, "", "", true))

	file := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(file, db.SeedProducts, 0o600))
	require.NoError(t, run(ctx, "", file, true))
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	err := run(ctx, "", filepath.Join(t.TempDir(), "missing.json"), true)
	assert.ErrorContains(t, err, "read products file")

	err = run(ctx, "postgres://catalog@%zz/catalog", "", false)
	assert.ErrorContains(t, err, "connect to database")
}
