package mocks

import (
	"context"
	"errors"

	"github.com/godilite/towergen/internal/service"
)

// MockDatasetService is a mock implementation of the DatasetService interface
// for testing the handler layer. It uses function-based mocking for flexibility.
type MockDatasetService struct {
	DatasetInfoFunc        func(ctx context.Context) (service.DatasetInfo, error)
	GetTowerFunc           func(ctx context.Context, cellID string) (service.Tower, error)
	GetWorstTowersFunc     func(ctx context.Context, limit int) ([]service.Tower, error)
	GetTierSummariesFunc   func(ctx context.Context) ([]service.TierSummary, error)
	GetSentimentByTierFunc func(ctx context.Context) ([]service.TierSentiment, error)
	GetTicketsForTowerFunc func(ctx context.Context, cellID string) ([]service.Ticket, error)
}

// DatasetInfo implements the DatasetService interface. It reports a fixed
// version unless overridden.
func (m *MockDatasetService) DatasetInfo(ctx context.Context) (service.DatasetInfo, error) {
	if m.DatasetInfoFunc != nil {
		return m.DatasetInfoFunc(ctx)
	}
	return service.DatasetInfo{Version: "test-version"}, nil
}

func (m *MockDatasetService) GetTower(ctx context.Context, cellID string) (service.Tower, error) {
	if m.GetTowerFunc != nil {
		return m.GetTowerFunc(ctx, cellID)
	}
	return service.Tower{}, errors.New("GetTowerFunc not implemented")
}

func (m *MockDatasetService) GetWorstTowers(ctx context.Context, limit int) ([]service.Tower, error) {
	if m.GetWorstTowersFunc != nil {
		return m.GetWorstTowersFunc(ctx, limit)
	}
	return nil, errors.New("GetWorstTowersFunc not implemented")
}

func (m *MockDatasetService) GetTierSummaries(ctx context.Context) ([]service.TierSummary, error) {
	if m.GetTierSummariesFunc != nil {
		return m.GetTierSummariesFunc(ctx)
	}
	return nil, errors.New("GetTierSummariesFunc not implemented")
}

func (m *MockDatasetService) GetSentimentByTier(ctx context.Context) ([]service.TierSentiment, error) {
	if m.GetSentimentByTierFunc != nil {
		return m.GetSentimentByTierFunc(ctx)
	}
	return nil, errors.New("GetSentimentByTierFunc not implemented")
}

func (m *MockDatasetService) GetTicketsForTower(ctx context.Context, cellID string) ([]service.Ticket, error) {
	if m.GetTicketsForTowerFunc != nil {
		return m.GetTicketsForTowerFunc(ctx, cellID)
	}
	return nil, errors.New("GetTicketsForTowerFunc not implemented")
}
