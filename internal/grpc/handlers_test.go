package grpc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/towergen/internal/generator"
	"github.com/godilite/towergen/internal/grpc/mocks"
	"github.com/godilite/towergen/internal/service"
)

func ptr(f float64) *float64 { return &f }

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

// TestNewGRPCHandlers tests the constructor
func TestNewGRPCHandlers(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		mockSvc := &mocks.MockDatasetService{}
		mockCache := &mocks.MockCacher{}
		ttl := 5 * time.Minute

		handlers := NewGRPCHandlers(mockSvc, mockCache, zap.NewNop(), ttl)

		assert.NotNil(t, handlers)
		assert.Equal(t, mockSvc, handlers.svc)
		assert.Equal(t, mockCache, handlers.cache)
		assert.Equal(t, ttl, handlers.cacheTTL)
		assert.NotNil(t, handlers.logger)
	})

	t.Run("nil service panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewGRPCHandlers(nil, &mocks.MockCacher{}, zap.NewNop(), time.Minute)
		})
	})

	t.Run("non-positive TTL uses default", func(t *testing.T) {
		for _, ttl := range []time.Duration{0, -time.Minute} {
			handlers := NewGRPCHandlers(&mocks.MockDatasetService{}, nil, zap.NewNop(), ttl)
			assert.Equal(t, defaultCacheDuration, handlers.cacheTTL)
		}
	})

	t.Run("nil logger", func(t *testing.T) {
		handlers := NewGRPCHandlers(&mocks.MockDatasetService{}, nil, nil, time.Minute)
		assert.NotNil(t, handlers.logger)
	})
}

func TestGetTower(t *testing.T) {
	tower := service.Tower{
		CellID:         "42",
		Vendor:         "NOKIA",
		Tier:           "BAD",
		RRCFailureRate: ptr(12.5),
		Metrics:        generator.MetricBundle{RRCConnEstabAtt: 800, RRCConnEstabSucc: 700, PRBUtilDL: 61.25},
	}
	mockSvc := &mocks.MockDatasetService{
		GetTowerFunc: func(ctx context.Context, cellID string) (service.Tower, error) {
			if cellID != "42" {
				return service.Tower{}, fmt.Errorf("%w: tower %s", service.ErrNotFound, cellID)
			}
			return tower, nil
		},
	}
	handlers := NewGRPCHandlers(mockSvc, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		resp, err := handlers.GetTower(ctx, mustStruct(t, map[string]any{"cell_id": "42"}))
		require.NoError(t, err)

		got := resp.GetFields()["tower"].GetStructValue().GetFields()
		assert.Equal(t, "BAD", got["tier"].GetStringValue())
		assert.Equal(t, 12.5, got["rrc_failure_rate"].GetNumberValue())
		_, isNull := got["s1_success_rate"].GetKind().(*structpb.Value_NullValue)
		assert.True(t, isNull)

		m := got["metrics"].GetStructValue().GetFields()
		assert.Len(t, m, len(generator.Registry()))
		assert.Equal(t, 800.0, m[generator.MetricRRCConnEstabAtt].GetNumberValue())
		assert.Equal(t, 61.25, m[generator.MetricPRBUtilDL].GetNumberValue())

		ds := resp.GetFields()["dataset"].GetStructValue().GetFields()
		assert.Equal(t, "test-version", ds["version"].GetStringValue())
	})

	t.Run("numeric cell id", func(t *testing.T) {
		_, err := handlers.GetTower(ctx, mustStruct(t, map[string]any{"cell_id": 42}))
		assert.NoError(t, err)
	})

	t.Run("unknown tower", func(t *testing.T) {
		_, err := handlers.GetTower(ctx, mustStruct(t, map[string]any{"cell_id": "7"}))
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	invalid := map[string]map[string]any{
		"missing":    {},
		"blank":      {"cell_id": "  "},
		"fractional": {"cell_id": 4.5},
		"wrong type": {"cell_id": true},
	}
	for name, fields := range invalid {
		t.Run(name, func(t *testing.T) {
			resp, err := handlers.GetTower(ctx, mustStruct(t, fields))
			assert.Nil(t, resp)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestGetWorstTowers(t *testing.T) {
	var gotLimit int
	mockSvc := &mocks.MockDatasetService{
		GetWorstTowersFunc: func(ctx context.Context, limit int) ([]service.Tower, error) {
			gotLimit = limit
			return []service.Tower{{CellID: "9", Tier: "CATASTROPHIC"}, {CellID: "3", Tier: "PROBLEMATIC"}}, nil
		},
	}
	handlers := NewGRPCHandlers(mockSvc, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	t.Run("default limit", func(t *testing.T) {
		resp, err := handlers.GetWorstTowers(ctx, mustStruct(t, nil))
		require.NoError(t, err)
		assert.Equal(t, defaultWorstLimit, gotLimit)
		towers := resp.GetFields()["towers"].GetListValue().GetValues()
		require.Len(t, towers, 2)
		assert.Equal(t, "9", towers[0].GetStructValue().GetFields()["cell_id"].GetStringValue())
	})

	t.Run("explicit limit", func(t *testing.T) {
		_, err := handlers.GetWorstTowers(ctx, mustStruct(t, map[string]any{"limit": 25}))
		require.NoError(t, err)
		assert.Equal(t, 25, gotLimit)

		_, err = handlers.GetWorstTowers(ctx, mustStruct(t, map[string]any{"limit": "3"}))
		require.NoError(t, err)
		assert.Equal(t, 3, gotLimit)
	})

	for _, limit := range []any{0, service.MaxWorstTowers + 1, "many", 2.5} {
		t.Run(fmt.Sprintf("invalid %v", limit), func(t *testing.T) {
			_, err := handlers.GetWorstTowers(ctx, mustStruct(t, map[string]any{"limit": limit}))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestGetTierSummariesAndSentiment(t *testing.T) {
	mockSvc := &mocks.MockDatasetService{
		GetTierSummariesFunc: func(ctx context.Context) ([]service.TierSummary, error) {
			return []service.TierSummary{
				{Tier: "GOOD", Towers: 60, AvgRRCFailureRate: ptr(0.8), Tickets: 30, AvgSentiment: ptr(0.35)},
				{Tier: "BAD", Towers: 9, AvgRRCFailureRate: ptr(14)},
			}, nil
		},
		GetSentimentByTierFunc: func(ctx context.Context) ([]service.TierSentiment, error) {
			return []service.TierSentiment{{Tier: "GOOD", Tickets: 30, AvgSentiment: ptr(0.35), MinSentiment: ptr(-0.2), MaxSentiment: ptr(0.9)}}, nil
		},
	}
	handlers := NewGRPCHandlers(mockSvc, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	resp, err := handlers.GetTierSummaries(ctx, mustStruct(t, nil))
	require.NoError(t, err)
	tiers := resp.GetFields()["tiers"].GetListValue().GetValues()
	require.Len(t, tiers, 2)
	good := tiers[0].GetStructValue().GetFields()
	assert.Equal(t, 60.0, good["towers"].GetNumberValue())
	assert.Equal(t, 0.35, good["avg_sentiment"].GetNumberValue())
	bad := tiers[1].GetStructValue().GetFields()
	_, isNull := bad["avg_sentiment"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)

	resp, err = handlers.GetSentimentByTier(ctx, mustStruct(t, nil))
	require.NoError(t, err)
	sentiment := resp.GetFields()["tiers"].GetListValue().GetValues()
	require.Len(t, sentiment, 1)
	assert.Equal(t, 0.9, sentiment[0].GetStructValue().GetFields()["max_sentiment"].GetNumberValue())
}

func TestGetTowerTickets(t *testing.T) {
	mockSvc := &mocks.MockDatasetService{
		GetTicketsForTowerFunc: func(ctx context.Context, cellID string) ([]service.Ticket, error) {
			switch cellID {
			case "1":
				return []service.Ticket{{TicketID: "a", CellID: "1", Category: "service", SentimentScore: -0.6}}, nil
			case "2":
				return []service.Ticket{}, nil
			}
			return nil, service.ErrNotFound
		},
	}
	handlers := NewGRPCHandlers(mockSvc, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	resp, err := handlers.GetTowerTickets(ctx, mustStruct(t, map[string]any{"cell_id": "1"}))
	require.NoError(t, err)
	assert.Equal(t, "1", resp.GetFields()["cell_id"].GetStringValue())
	tickets := resp.GetFields()["tickets"].GetListValue().GetValues()
	require.Len(t, tickets, 1)
	assert.Equal(t, -0.6, tickets[0].GetStructValue().GetFields()["sentiment_score"].GetNumberValue())

	resp, err = handlers.GetTowerTickets(ctx, mustStruct(t, map[string]any{"cell_id": "2"}))
	require.NoError(t, err)
	assert.Empty(t, resp.GetFields()["tickets"].GetListValue().GetValues())

	_, err = handlers.GetTowerTickets(ctx, mustStruct(t, map[string]any{"cell_id": "3"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCurrentDataset(t *testing.T) {
	var calls atomic.Int32
	version := "v1"
	mockSvc := &mocks.MockDatasetService{
		DatasetInfoFunc: func(ctx context.Context) (service.DatasetInfo, error) {
			calls.Add(1)
			return service.DatasetInfo{Version: version}, nil
		},
	}
	handlers := NewGRPCHandlers(mockSvc, nil, zap.NewNop(), time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	handlers.now = func() time.Time { return now }
	ctx := context.Background()

	info, err := handlers.currentDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", info.Version)

	version = "v2"
	now = now.Add(datasetInfoTTL / 2)
	info, err = handlers.currentDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", info.Version)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(datasetInfoTTL)
	info, err = handlers.currentDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", info.Version)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoDataset(t *testing.T) {
	mockSvc := &mocks.MockDatasetService{
		DatasetInfoFunc: func(ctx context.Context) (service.DatasetInfo, error) {
			return service.DatasetInfo{}, fmt.Errorf("%w: dataset", service.ErrNotFound)
		},
	}
	handlers := NewGRPCHandlers(mockSvc, nil, zap.NewNop(), time.Minute)

	_, err := handlers.GetTierSummaries(context.Background(), mustStruct(t, nil))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCachedResponse(t *testing.T) {
	var fetched atomic.Int32
	mockSvc := &mocks.MockDatasetService{
		GetTowerFunc: func(ctx context.Context, cellID string) (service.Tower, error) {
			fetched.Add(1)
			return service.Tower{}, errors.New("should not be called")
		},
	}
	var gotKey string
	mockCache := &mocks.MockCacher{
		GetFunc: func(ctx context.Context, key string, dest any) error {
			gotKey = key
			*dest.(*service.Tower) = service.Tower{CellID: "5", Tier: "GOOD"}
			return nil
		},
		TTLFunc: func(ctx context.Context, key string) (time.Duration, error) {
			return 9 * time.Minute, nil
		},
	}
	handlers := NewGRPCHandlers(mockSvc, mockCache, zap.NewNop(), 10*time.Minute)

	resp, err := handlers.GetTower(context.Background(), mustStruct(t, map[string]any{"cell_id": "5"}))
	require.NoError(t, err)
	assert.Equal(t, "GOOD", resp.GetFields()["tower"].GetStructValue().GetFields()["tier"].GetStringValue())
	assert.Equal(t, "grpc:test-version:tower:5", gotKey)
	assert.Zero(t, fetched.Load())
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "grpc:abc:tier_summaries", normalizeKey("abc", cacheKeyTierSummaries))
	assert.Equal(t, "grpc:abc:worst_towers:10", normalizeKey("abc", cacheKeyWorstTowers, "10"))
	assert.Equal(t, "grpc:abc:tower_tickets:77", normalizeKey("abc", cacheKeyTowerTickets, "77"))
	assert.Equal(t, "grpc:abc:", VersionPrefix("abc"))
	assert.NotEqual(t, normalizeKey("v1", cacheKeyTower, "1"), normalizeKey("v2", cacheKeyTower, "1"))
}

// TestHandleError tests error handling and status code mapping
func TestHandleError(t *testing.T) {
	handlers := &GRPCHandlers{logger: zap.NewNop()}

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := handlers.handleError(ctx, "test_operation", errors.New("some error"))
		assert.Equal(t, codes.Canceled, status.Code(err))
		assert.Contains(t, err.Error(), "request canceled")
	})

	t.Run("context deadline exceeded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		err := handlers.handleError(ctx, "test_operation", errors.New("some error"))
		assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
		assert.Contains(t, err.Error(), "request timed out")
	})

	tests := []struct {
		name     string
		err      error
		code     codes.Code
		contains string
	}{
		{"not found", fmt.Errorf("%w: tower 9", service.ErrNotFound), codes.NotFound, "tower 9"},
		{"invalid input", fmt.Errorf("%w: limit", service.ErrInvalidInput), codes.InvalidArgument, "limit"},
		{"storage failure", fmt.Errorf("%w: disk", service.ErrStorageFailure), codes.Internal, "database error"},
		{"generation failure", service.ErrGeneration, codes.Internal, "test_operation failed"},
		{"unknown", errors.New("database connection lost"), codes.Internal, "database connection lost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handlers.handleError(context.Background(), "test_operation", tt.err)
			assert.Equal(t, tt.code, status.Code(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
