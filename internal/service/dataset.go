package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/godilite/towergen/internal/generator"
	"github.com/godilite/towergen/internal/repository"
	"github.com/godilite/towergen/internal/repository/models"
)

const (
	dbTimeout      = 1 * time.Second
	persistTimeout = 5 * time.Minute

	MaxWorstTowers = 500
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrStorageFailure = errors.New("storage failure")
	ErrGeneration     = errors.New("generation failed")
)

// DatasetService seeds the tower dataset and serves the read views over it.
type DatasetService struct {
	storage   TowerRepository
	generator DatasetGenerator
	logger    *zap.Logger
	now       func() time.Time
}

// NewDatasetService creates a new DatasetService instance. gen may be nil for
// read-only deployments, in which case Seed fails.
func NewDatasetService(storage TowerRepository, gen DatasetGenerator, logger *zap.Logger) *DatasetService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &DatasetService{
		storage:   storage,
		generator: gen,
		logger:    logger.Named("dataset"),
		now:       time.Now,
	}
}

func storageError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

func generationError(err error) error {
	switch {
	case errors.Is(err, generator.ErrEmptyIdentity),
		errors.Is(err, generator.ErrDuplicateIdentity),
		errors.Is(err, generator.ErrNoTowers):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}
}

// Seed generates a dataset from the inputs and replaces the stored one with it.
func (s *DatasetService) Seed(ctx context.Context, towers []generator.TowerInput, tickets []generator.TicketInput) (SeedResult, error) {
	if s.generator == nil {
		return SeedResult{}, fmt.Errorf("%w: no generator configured", ErrGeneration)
	}
	if len(towers) == 0 {
		return SeedResult{}, fmt.Errorf("%w: no towers to generate", ErrInvalidInput)
	}

	var previous string
	if meta, err := s.DatasetInfo(ctx); err == nil {
		previous = meta.Version
	} else if !errors.Is(err, ErrNotFound) {
		return SeedResult{}, err
	}

	ds, err := s.generator.Generate(ctx, towers, tickets)
	if err != nil {
		return SeedResult{}, generationError(err)
	}

	generatedAt := s.now().UTC().Truncate(time.Second)
	dbCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := s.storage.ReplaceDataset(dbCtx, ds, generatedAt); err != nil {
		s.logger.Error("failed to persist dataset", zap.String("version", ds.Version), zap.Error(err))
		return SeedResult{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	summary := generator.Summarize(ds)
	s.logger.Info("dataset seeded",
		zap.String("version", ds.Version),
		zap.String("previous_version", previous),
		zap.Int("towers", summary.Towers),
		zap.Int("tickets", summary.Tickets),
		zap.Int("clamped_rows", summary.ClampedRows))

	return SeedResult{
		Version:         ds.Version,
		PreviousVersion: previous,
		GeneratedAt:     generatedAt,
		Summary:         summary,
	}, nil
}

// DatasetInfo returns the version and size of the stored dataset.
func (s *DatasetService) DatasetInfo(ctx context.Context) (DatasetInfo, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	meta, err := s.storage.GetDatasetMeta(dbCtx)
	if err != nil {
		return DatasetInfo{}, storageError(err)
	}
	return DatasetInfo{
		Version:     meta.Version,
		GeneratedAt: meta.GeneratedAt,
		Towers:      meta.Towers,
		Tickets:     meta.Tickets,
	}, nil
}

// GetTower returns one tower with its derived rates.
func (s *DatasetService) GetTower(ctx context.Context, cellID string) (Tower, error) {
	cellID = strings.TrimSpace(cellID)
	if cellID == "" {
		return Tower{}, fmt.Errorf("%w: cell id is required", ErrInvalidInput)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row, err := s.storage.GetTower(dbCtx, cellID)
	if err != nil {
		return Tower{}, storageError(err)
	}
	return towerFromRow(row), nil
}

// GetWorstTowers lists up to limit towers, worst tier first.
func (s *DatasetService) GetWorstTowers(ctx context.Context, limit int) ([]Tower, error) {
	if limit < 1 || limit > MaxWorstTowers {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxWorstTowers)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.storage.GetWorstTowers(dbCtx, limit)
	if err != nil {
		return nil, storageError(err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no towers stored", ErrNotFound)
	}

	out := make([]Tower, len(rows))
	for i, r := range rows {
		out[i] = towerFromRow(r)
	}
	return out, nil
}

// GetTierSummaries merges the per-tier KPI and sentiment aggregates, fetched
// concurrently.
func (s *DatasetService) GetTierSummaries(ctx context.Context) ([]TierSummary, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		kpis      []models.TierSummaryRow
		sentiment []models.TierSentimentRow
	)
	g, gctx := errgroup.WithContext(dbCtx)
	g.Go(func() error {
		var err error
		kpis, err = s.storage.GetTierSummaries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sentiment, err = s.storage.GetSentimentByTier(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storageError(err)
	}
	if len(kpis) == 0 {
		return nil, fmt.Errorf("%w: no towers stored", ErrNotFound)
	}

	byTier := make(map[string]models.TierSentimentRow, len(sentiment))
	for _, r := range sentiment {
		byTier[r.Tier] = r
	}

	out := make([]TierSummary, len(kpis))
	for i, k := range kpis {
		sr := byTier[k.Tier]
		out[i] = TierSummary{
			Tier:               k.Tier,
			Towers:             k.Towers,
			AvgRRCFailureRate:  k.AvgRRCFailureRate,
			AvgDLLatency:       k.AvgDLLatency,
			AvgDLPRBUtil:       k.AvgDLPRBUtil,
			AvgAbnormalRelease: k.AvgAbnormalRelease,
			AvgERABSuccessRate: k.AvgERABSuccessRate,
			AvgS1SuccessRate:   k.AvgS1SuccessRate,
			Tickets:            sr.Tickets,
			AvgSentiment:       sr.AvgSentiment,
			MinSentiment:       sr.MinSentiment,
			MaxSentiment:       sr.MaxSentiment,
		}
	}
	return out, nil
}

// GetSentimentByTier returns ticket sentiment grouped by the tier of the bound
// tower.
func (s *DatasetService) GetSentimentByTier(ctx context.Context) ([]TierSentiment, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.storage.GetSentimentByTier(dbCtx)
	if err != nil {
		return nil, storageError(err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no tickets stored", ErrNotFound)
	}

	out := make([]TierSentiment, len(rows))
	for i, r := range rows {
		out[i] = TierSentiment{
			Tier:         r.Tier,
			Tickets:      r.Tickets,
			AvgSentiment: r.AvgSentiment,
			MinSentiment: r.MinSentiment,
			MaxSentiment: r.MaxSentiment,
		}
	}
	return out, nil
}

// GetTicketsForTower lists the tickets bound to a tower. A tower without
// tickets yields an empty list; an unknown tower yields ErrNotFound.
func (s *DatasetService) GetTicketsForTower(ctx context.Context, cellID string) ([]Ticket, error) {
	cellID = strings.TrimSpace(cellID)
	if cellID == "" {
		return nil, fmt.Errorf("%w: cell id is required", ErrInvalidInput)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.storage.GetTicketsForTower(dbCtx, cellID)
	if err != nil {
		return nil, storageError(err)
	}
	if len(rows) == 0 {
		if _, err := s.storage.GetTower(dbCtx, cellID); err != nil {
			return nil, storageError(err)
		}
		return []Ticket{}, nil
	}

	out := make([]Ticket, len(rows))
	for i, r := range rows {
		out[i] = Ticket{
			TicketID:       r.TicketID,
			Request:        r.Request,
			CellID:         r.CellID,
			Category:       r.Category,
			SentimentScore: r.SentimentScore,
		}
	}
	return out, nil
}

func towerFromRow(r models.TowerRow) Tower {
	return Tower{
		CellID:          r.CellID,
		Descriptor:      r.Descriptor,
		Vendor:          r.Vendor,
		Tier:            r.Tier,
		Technology:      r.Technology,
		Geography:       r.Geography,
		CauseCode:       r.CauseCode,
		Metrics:         r.Metrics,
		RRCFailureRate:  rate(r.Metrics.RRCFailureRate()),
		S1SuccessRate:   rate(r.Metrics.S1SuccessRate()),
		ERABSuccessRate: rate(r.Metrics.ERABSuccessRate()),
	}
}

func rate(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
