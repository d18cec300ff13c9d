package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/godilite/towergen/internal/config"
	"github.com/godilite/towergen/internal/generator"
	handler "github.com/godilite/towergen/internal/grpc"
	"github.com/godilite/towergen/internal/service"
)

// SeedOptions sizes the synthetic population written by Seed.
type SeedOptions struct {
	Towers     int
	Tickets    int
	StartID    int
	TablesPath string
}

// Seed generates a synthetic dataset, replaces the stored one with it and
// drops cache entries of the replaced version.
func Seed(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts SeedOptions) (service.SeedResult, error) {
	if opts.Towers < 1 {
		return service.SeedResult{}, fmt.Errorf("%w: towers must be positive", service.ErrInvalidInput)
	}
	if opts.Tickets < 0 {
		return service.SeedResult{}, fmt.Errorf("%w: tickets must not be negative", service.ErrInvalidInput)
	}

	tablesPath := opts.TablesPath
	if tablesPath == "" {
		tablesPath = cfg.TablesPath
	}
	tables, err := generator.LoadTables(tablesPath)
	if err != nil {
		return service.SeedResult{}, err
	}

	gen, err := generator.New(tables,
		generator.WithLogger(logger),
		generator.WithWorkers(cfg.GeneratorWorkers),
		generator.WithDebug(cfg.GeneratorDebug),
	)
	if err != nil {
		return service.SeedResult{}, err
	}

	dbPool, repo, err := openStore(cfg, logger)
	if err != nil {
		return service.SeedResult{}, err
	}
	defer dbPool.Close()

	towers := generator.SyntheticTowers(opts.Towers, opts.StartID)
	tickets := generator.SyntheticTickets(opts.Tickets, nil)

	res, err := service.NewDatasetService(repo, gen, logger).Seed(ctx, towers, tickets)
	if err != nil {
		return service.SeedResult{}, err
	}

	if res.PreviousVersion != "" && res.PreviousVersion != res.Version {
		invalidateVersion(ctx, cfg, logger, res.PreviousVersion)
	}
	return res, nil
}

// invalidateVersion is best effort: stale entries also age out with their TTL.
func invalidateVersion(ctx context.Context, cfg *config.Config, logger *zap.Logger, version string) {
	c, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Warn("skipping cache invalidation", zap.Error(err))
		return
	}
	if c == nil {
		return
	}
	defer c.Close()

	n, err := c.DeletePrefix(ctx, handler.VersionPrefix(version))
	if err != nil {
		logger.Warn("cache invalidation failed", zap.String("version", version), zap.Error(err))
		return
	}
	logger.Info("invalidated cached responses", zap.String("version", version), zap.Int("keys", n))
}
