package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/godilite/towergen/internal/config"
	"github.com/godilite/towergen/internal/generator"
	handler "github.com/godilite/towergen/internal/grpc"
	"github.com/godilite/towergen/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:   "test",
		DBDriver: "sqlite3",
		DBPath:   filepath.Join(t.TempDir(), "towergen.db"),
		CacheTTL: time.Minute,
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("rejects empty population", func(t *testing.T) {
		_, err := Seed(ctx, testConfig(t), logger, SeedOptions{Towers: 0})
		assert.ErrorIs(t, err, service.ErrInvalidInput)

		_, err = Seed(ctx, testConfig(t), logger, SeedOptions{Towers: 5, Tickets: -1})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("missing tables file", func(t *testing.T) {
		_, err := Seed(ctx, testConfig(t), logger, SeedOptions{Towers: 5, TablesPath: "/nonexistent/tables.yaml"})
		assert.Error(t, err)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DBDriver = "oracle"
		_, err := Seed(ctx, cfg, logger, SeedOptions{Towers: 5})
		assert.Error(t, err)
	})

	t.Run("persists and reseeds", func(t *testing.T) {
		cfg := testConfig(t)

		first, err := Seed(ctx, cfg, logger, SeedOptions{Towers: 300, Tickets: 500, StartID: 1})
		require.NoError(t, err)
		assert.Empty(t, first.PreviousVersion)
		assert.Equal(t, 300, first.Summary.Towers)
		assert.Equal(t, 500, first.Summary.Tickets)
		var towers, tickets int
		for _, tier := range first.Summary.Tiers {
			towers += tier.Towers
			tickets += tier.Tickets
		}
		assert.Equal(t, 300, towers)
		assert.Equal(t, 500, tickets)
		assert.GreaterOrEqual(t, first.Summary.ClampedRows, 0)

		second, err := Seed(ctx, cfg, logger, SeedOptions{Towers: 100, Tickets: 50, StartID: 1})
		require.NoError(t, err)
		assert.Equal(t, first.Version, second.PreviousVersion)
		assert.Equal(t, 100, second.Summary.Towers)
	})
}

func TestSeed_InvalidatesReplacedVersion(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()

	first, err := Seed(ctx, cfg, logger, SeedOptions{Towers: 50, Tickets: 20, StartID: 1})
	require.NoError(t, err)

	staleKey := handler.VersionPrefix(first.Version) + "tier_summaries"
	otherKey := handler.VersionPrefix("other") + "tier_summaries"
	require.NoError(t, mr.Set(staleKey, "[]"))
	require.NoError(t, mr.Set(otherKey, "[]"))

	tablesPath := filepath.Join(t.TempDir(), "tables.yaml")
	writeReseededTables(t, tablesPath)

	second, err := Seed(ctx, cfg, logger, SeedOptions{Towers: 50, Tickets: 20, StartID: 1, TablesPath: tablesPath})
	require.NoError(t, err)
	require.NotEqual(t, first.Version, second.Version)

	assert.False(t, mr.Exists(staleKey))
	assert.True(t, mr.Exists(otherKey))
}

func writeReseededTables(t *testing.T, path string) {
	t.Helper()
	tables := generator.DefaultTables()
	tables.Seed = "towergen-reseeded"
	data, err := yaml.Marshal(tables)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}
