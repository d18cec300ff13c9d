package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/godilite/towergen/internal/config"
	handler "github.com/godilite/towergen/internal/grpc"
	"github.com/godilite/towergen/internal/metrics"
	"github.com/godilite/towergen/internal/repository"
	"github.com/godilite/towergen/internal/service"
	"github.com/godilite/towergen/pkg/cache"
	dbbuilder "github.com/godilite/towergen/pkg/database"
	grpcsrv "github.com/godilite/towergen/pkg/grpc/server"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger        *zap.Logger
	dbPool        *sql.DB
	cache         *cache.Cache
	grpcServer    *grpcsrv.Server
	metricsServer *http.Server
}

// openStore connects to the configured database and makes sure the schema
// exists.
func openStore(cfg *config.Config, logger *zap.Logger) (*sql.DB, *repository.TowerRepository, error) {
	dialect, err := repository.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, nil, err
	}
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithBootstrap(repository.Schema()...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized",
		zap.String("driver", cfg.DBDriver),
		zap.String("dialect", dialect.String()))
	return dbPool, repository.NewTowerRepository(dbPool, dialect), nil
}

// openCache connects to Redis when an address is configured. A nil cache
// disables caching.
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cache.Cache, error) {
	if cfg.RedisAddr == "" {
		logger.Info("Cache disabled, REDIS_ADDR not set")
		return nil, nil
	}
	c, err := cache.New(ctx, cache.WithAddress(cfg.RedisAddr))
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	return c, nil
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, repo, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	cacheClient, err := openCache(ctx, cfg, logger)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	recorder := metrics.NewRecorder()
	datasetService := service.NewDatasetService(repo, nil, logger)

	var cacher handler.Cacher
	if cacheClient != nil {
		cacher = cacheClient
	}
	grpcHandlers := handler.NewGRPCHandlers(datasetService, cacher, logger, cfg.CacheTTL, handler.WithRecorder(recorder))

	grpcServer, err := grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
		grpcsrv.WithRecovery(true),
		grpcsrv.WithObserver(recorder),
	)
	if err != nil {
		if cacheClient != nil {
			cacheClient.Close()
		}
		dbPool.Close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcServer.RegisterServiceWithHealth(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterTowerAnalyticsServer(s, grpcHandlers)
	})

	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return &App{
		logger:        logger,
		dbPool:        dbPool,
		cache:         cacheClient,
		grpcServer:    grpcServer,
		metricsServer: metricsServer,
	}, nil
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting")

	a.grpcServer.Start()

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("metrics server starting", zap.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return a.Shutdown(ctx)
}

// Shutdown stops the servers and releases the cache and database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.grpcServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	if len(errs) == 0 {
		a.logger.Info("graceful shutdown completed successfully")
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
