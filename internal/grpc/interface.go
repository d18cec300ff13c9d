package grpc

import (
	"context"
	"time"

	"github.com/godilite/towergen/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type DatasetService interface {
	DatasetInfo(ctx context.Context) (service.DatasetInfo, error)
	GetTower(ctx context.Context, cellID string) (service.Tower, error)
	GetWorstTowers(ctx context.Context, limit int) ([]service.Tower, error)
	GetTierSummaries(ctx context.Context) ([]service.TierSummary, error)
	GetSentimentByTier(ctx context.Context) ([]service.TierSentiment, error)
	GetTicketsForTower(ctx context.Context, cellID string) ([]service.Ticket, error)
}
