package service

import (
	"context"
	"time"

	"github.com/godilite/towergen/internal/generator"
	"github.com/godilite/towergen/internal/repository/models"
)

// TowerRepository defines the storage operations used by the service.
type TowerRepository interface {
	ReplaceDataset(ctx context.Context, ds generator.Dataset, generatedAt time.Time) error
	GetTower(ctx context.Context, cellID string) (models.TowerRow, error)
	GetWorstTowers(ctx context.Context, limit int) ([]models.TowerRow, error)
	GetTierSummaries(ctx context.Context) ([]models.TierSummaryRow, error)
	GetSentimentByTier(ctx context.Context) ([]models.TierSentimentRow, error)
	GetTicketsForTower(ctx context.Context, cellID string) ([]models.TicketRow, error)
	GetDatasetMeta(ctx context.Context) (models.DatasetMeta, error)
}

// DatasetGenerator produces a dataset from tower and ticket inputs.
type DatasetGenerator interface {
	Generate(ctx context.Context, towers []generator.TowerInput, tickets []generator.TicketInput) (generator.Dataset, error)
}
