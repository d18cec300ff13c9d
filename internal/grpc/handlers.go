package grpc

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/towergen/internal/metrics"
	"github.com/godilite/towergen/internal/service"
)

const (
	defaultCacheDuration = 10 * time.Minute
	defaultGRPCTimeout   = 10 * time.Second
	datasetInfoTTL       = 5 * time.Second
	defaultWorstLimit    = 10

	datasetInfoKey = "dataset_info"
)

type GRPCHandlers struct {
	svc      DatasetService
	cache    Cacher
	logger   *zap.Logger
	recorder *metrics.Recorder
	sfGroup  singleflight.Group
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.Mutex
	dataset   service.DatasetInfo
	datasetAt time.Time
}

var _ TowerAnalyticsServer = (*GRPCHandlers)(nil)

type HandlerOption func(*GRPCHandlers)

// WithRecorder counts cache hits and misses on r.
func WithRecorder(r *metrics.Recorder) HandlerOption {
	return func(h *GRPCHandlers) { h.recorder = r }
}

// NewGRPCHandlers initializes the gRPC handlers. cache may be nil to disable
// caching.
func NewGRPCHandlers(svc DatasetService, cache Cacher, logger *zap.Logger, ttl time.Duration, opts ...HandlerOption) *GRPCHandlers {
	if svc == nil {
		panic("nil DatasetService provided to NewGRPCHandlers")
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &GRPCHandlers{
		svc:      svc,
		cache:    cache,
		logger:   logger.Named("grpc-handler"),
		cacheTTL: ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// currentDataset returns the stored dataset's metadata, re-read at most every
// datasetInfoTTL. Its version namespaces every cache key.
func (s *GRPCHandlers) currentDataset(ctx context.Context) (service.DatasetInfo, error) {
	s.mu.Lock()
	if s.dataset.Version != "" && s.now().Sub(s.datasetAt) < datasetInfoTTL {
		info := s.dataset
		s.mu.Unlock()
		return info, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sfGroup.Do(datasetInfoKey, func() (any, error) {
		return s.svc.DatasetInfo(ctx)
	})
	if err != nil {
		return service.DatasetInfo{}, err
	}
	info := v.(service.DatasetInfo)

	s.mu.Lock()
	if info.Version != s.dataset.Version && s.dataset.Version != "" {
		s.logger.Info("dataset version changed",
			zap.String("from", s.dataset.Version),
			zap.String("to", info.Version))
	}
	s.dataset, s.datasetAt = info, s.now()
	s.mu.Unlock()
	return info, nil
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		s := strings.TrimSpace(k.StringValue)
		if s == "" {
			return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
		return s, nil
	case *structpb.Value_NumberValue:
		if k.NumberValue == math.Trunc(k.NumberValue) && math.Abs(k.NumberValue) < 1<<53 {
			return strconv.FormatInt(int64(k.NumberValue), 10), nil
		}
	}
	return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
}

func intField(req *structpb.Struct, name string, def int) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return def, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return def, nil
	case *structpb.Value_NumberValue:
		if k.NumberValue == math.Trunc(k.NumberValue) && math.Abs(k.NumberValue) <= math.MaxInt32 {
			return int(k.NumberValue), nil
		}
	case *structpb.Value_StringValue:
		if n, err := strconv.Atoi(strings.TrimSpace(k.StringValue)); err == nil {
			return n, nil
		}
	}
	return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrNotFound):
		s.logger.Info("not found", zap.String("op", op), zap.Error(err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) respond(op string, info service.DatasetInfo, fields map[string]any) (*structpb.Struct, error) {
	fields["dataset"] = encodeDataset(info)
	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error("failed to encode response", zap.String("op", op), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "%s failed: encode response", op)
	}
	return out, nil
}

func (s *GRPCHandlers) GetTower(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cellID, err := stringField(req, "cell_id")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	info, err := s.currentDataset(ctx)
	if err != nil {
		return nil, s.handleError(ctx, MethodGetTower, err)
	}

	cacheKey := normalizeKey(info.Version, cacheKeyTower, cellID)
	tower, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey, s.cacheTTL, s.logger, s.recorder, func(fetchCtx context.Context) (service.Tower, error) {
		return s.svc.GetTower(fetchCtx, cellID)
	})
	if err != nil {
		return nil, s.handleError(ctx, MethodGetTower, err)
	}

	return s.respond(MethodGetTower, info, map[string]any{"tower": encodeTower(tower)})
}

func (s *GRPCHandlers) GetWorstTowers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := intField(req, "limit", defaultWorstLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > service.MaxWorstTowers {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be between 1 and %d", service.MaxWorstTowers)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	info, err := s.currentDataset(ctx)
	if err != nil {
		return nil, s.handleError(ctx, MethodGetWorstTowers, err)
	}

	cacheKey := normalizeKey(info.Version, cacheKeyWorstTowers, strconv.Itoa(limit))
	towers, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey, s.cacheTTL, s.logger, s.recorder, func(fetchCtx context.Context) ([]service.Tower, error) {
		return s.svc.GetWorstTowers(fetchCtx, limit)
	})
	if err != nil {
		return nil, s.handleError(ctx, MethodGetWorstTowers, err)
	}

	return s.respond(MethodGetWorstTowers, info, map[string]any{"towers": encodeTowers(towers)})
}

func (s *GRPCHandlers) GetTierSummaries(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	info, err := s.currentDataset(ctx)
	if err != nil {
		return nil, s.handleError(ctx, MethodGetTierSummaries, err)
	}

	cacheKey := normalizeKey(info.Version, cacheKeyTierSummaries)
	tiers, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey, s.cacheTTL, s.logger, s.recorder, func(fetchCtx context.Context) ([]service.TierSummary, error) {
		return s.svc.GetTierSummaries(fetchCtx)
	})
	if err != nil {
		return nil, s.handleError(ctx, MethodGetTierSummaries, err)
	}

	return s.respond(MethodGetTierSummaries, info, map[string]any{"tiers": encodeTierSummaries(tiers)})
}

func (s *GRPCHandlers) GetSentimentByTier(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	info, err := s.currentDataset(ctx)
	if err != nil {
		return nil, s.handleError(ctx, MethodGetSentimentByTier, err)
	}

	cacheKey := normalizeKey(info.Version, cacheKeySentiment)
	tiers, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey, s.cacheTTL, s.logger, s.recorder, func(fetchCtx context.Context) ([]service.TierSentiment, error) {
		return s.svc.GetSentimentByTier(fetchCtx)
	})
	if err != nil {
		return nil, s.handleError(ctx, MethodGetSentimentByTier, err)
	}

	return s.respond(MethodGetSentimentByTier, info, map[string]any{"tiers": encodeSentiment(tiers)})
}

func (s *GRPCHandlers) GetTowerTickets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cellID, err := stringField(req, "cell_id")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	info, err := s.currentDataset(ctx)
	if err != nil {
		return nil, s.handleError(ctx, MethodGetTowerTickets, err)
	}

	cacheKey := normalizeKey(info.Version, cacheKeyTowerTickets, cellID)
	tickets, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey, s.cacheTTL, s.logger, s.recorder, func(fetchCtx context.Context) ([]service.Ticket, error) {
		return s.svc.GetTicketsForTower(fetchCtx, cellID)
	})
	if err != nil {
		return nil, s.handleError(ctx, MethodGetTowerTickets, err)
	}

	return s.respond(MethodGetTowerTickets, info, map[string]any{
		"cell_id": cellID,
		"tickets": encodeTickets(tickets),
	})
}
