package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/godilite/towergen/internal/generator"
	"github.com/godilite/towergen/internal/repository/models"
)

// MockTowerRepository is a mock implementation of the TowerRepository interface
// for testing the service layer.
type MockTowerRepository struct {
	ReplaceDatasetFunc     func(ctx context.Context, ds generator.Dataset, generatedAt time.Time) error
	GetTowerFunc           func(ctx context.Context, cellID string) (models.TowerRow, error)
	GetWorstTowersFunc     func(ctx context.Context, limit int) ([]models.TowerRow, error)
	GetTierSummariesFunc   func(ctx context.Context) ([]models.TierSummaryRow, error)
	GetSentimentByTierFunc func(ctx context.Context) ([]models.TierSentimentRow, error)
	GetTicketsForTowerFunc func(ctx context.Context, cellID string) ([]models.TicketRow, error)
	GetDatasetMetaFunc     func(ctx context.Context) (models.DatasetMeta, error)
}

func (m *MockTowerRepository) ReplaceDataset(ctx context.Context, ds generator.Dataset, generatedAt time.Time) error {
	if m.ReplaceDatasetFunc != nil {
		return m.ReplaceDatasetFunc(ctx, ds, generatedAt)
	}
	return errors.New("ReplaceDatasetFunc not implemented")
}

func (m *MockTowerRepository) GetTower(ctx context.Context, cellID string) (models.TowerRow, error) {
	if m.GetTowerFunc != nil {
		return m.GetTowerFunc(ctx, cellID)
	}
	return models.TowerRow{}, errors.New("GetTowerFunc not implemented")
}

func (m *MockTowerRepository) GetWorstTowers(ctx context.Context, limit int) ([]models.TowerRow, error) {
	if m.GetWorstTowersFunc != nil {
		return m.GetWorstTowersFunc(ctx, limit)
	}
	return nil, errors.New("GetWorstTowersFunc not implemented")
}

func (m *MockTowerRepository) GetTierSummaries(ctx context.Context) ([]models.TierSummaryRow, error) {
	if m.GetTierSummariesFunc != nil {
		return m.GetTierSummariesFunc(ctx)
	}
	return nil, errors.New("GetTierSummariesFunc not implemented")
}

func (m *MockTowerRepository) GetSentimentByTier(ctx context.Context) ([]models.TierSentimentRow, error) {
	if m.GetSentimentByTierFunc != nil {
		return m.GetSentimentByTierFunc(ctx)
	}
	return nil, errors.New("GetSentimentByTierFunc not implemented")
}

func (m *MockTowerRepository) GetTicketsForTower(ctx context.Context, cellID string) ([]models.TicketRow, error) {
	if m.GetTicketsForTowerFunc != nil {
		return m.GetTicketsForTowerFunc(ctx, cellID)
	}
	return nil, errors.New("GetTicketsForTowerFunc not implemented")
}

func (m *MockTowerRepository) GetDatasetMeta(ctx context.Context) (models.DatasetMeta, error) {
	if m.GetDatasetMetaFunc != nil {
		return m.GetDatasetMetaFunc(ctx)
	}
	return models.DatasetMeta{}, errors.New("GetDatasetMetaFunc not implemented")
}

// MockDatasetGenerator is a mock implementation of the DatasetGenerator interface.
type MockDatasetGenerator struct {
	GenerateFunc func(ctx context.Context, towers []generator.TowerInput, tickets []generator.TicketInput) (generator.Dataset, error)
}

func (m *MockDatasetGenerator) Generate(ctx context.Context, towers []generator.TowerInput, tickets []generator.TicketInput) (generator.Dataset, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, towers, tickets)
	}
	return generator.Dataset{}, errors.New("GenerateFunc not implemented")
}
