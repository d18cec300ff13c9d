package generator

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/godilite/towergen/internal/metrics"
)

const (
	minChunk      = 256
	ctxCheckEvery = 512
)

// Dataset is one complete generation result.
type Dataset struct {
	Version string
	Towers  []Tower
	Tickets []Ticket
}

// Generator turns identities into towers and tickets using fixed tables.
type Generator struct {
	tables   *Tables
	order    []int
	version  string
	logger   *zap.Logger
	workers  int
	debug    bool
	recorder *metrics.Recorder
}

type Option func(*Generator)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithWorkers bounds the number of goroutines used per batch.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithDebug logs a warning for every clamped value.
func WithDebug(debug bool) Option {
	return func(g *Generator) {
		g.debug = debug
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(g *Generator) {
		g.recorder = r
	}
}

// New validates tables and prepares the metric evaluation order.
func New(tables *Tables, opts ...Option) (*Generator, error) {
	if tables == nil {
		return nil, fmt.Errorf("%w: nil tables", ErrInvalidTables)
	}
	if !tables.compiled {
		if err := tables.Validate(); err != nil {
			return nil, err
		}
	}
	order, err := topoOrder(registry)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		tables:  tables,
		order:   order,
		version: tables.Fingerprint(),
		logger:  zap.NewNop(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("generator")
	return g, nil
}

// Tables returns the tables the generator was built with.
func (g *Generator) Tables() *Tables {
	return g.tables
}

// Version identifies the dataset produced by these tables.
func (g *Generator) Version() string {
	return g.version
}

// GenerateTowers derives a tower per input. Output order matches input order.
func (g *Generator) GenerateTowers(ctx context.Context, inputs []TowerInput) ([]Tower, error) {
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		if in.CellID == "" {
			return nil, fmt.Errorf("%w: tower at index %d", ErrEmptyIdentity, i)
		}
		if _, dup := seen[in.CellID]; dup {
			return nil, fmt.Errorf("%w: cell %s", ErrDuplicateIdentity, in.CellID)
		}
		seen[in.CellID] = struct{}{}
	}

	start := time.Now()
	out := make([]Tower, len(inputs))
	err := g.parallel(ctx, len(inputs), func(i int) {
		out[i] = g.tables.buildTower(g.order, inputs[i])
	})
	if err != nil {
		return nil, err
	}

	clamped := 0
	for i := range out {
		tw := &out[i]
		g.recorder.TowerGenerated(tw.Tier.String(), tw.Vendor)
		if len(tw.Clamped) == 0 {
			continue
		}
		clamped++
		for _, name := range tw.Clamped {
			g.recorder.Clamped(name)
			if g.debug {
				g.logger.Warn("clamped derived value",
					zap.String("cell_id", tw.CellID),
					zap.String("metric", name),
					zap.Stringer("tier", tw.Tier))
			}
		}
	}
	g.recorder.ObserveGeneration("towers", time.Since(start))
	g.logger.Debug("generated towers",
		zap.Int("count", len(out)),
		zap.Int("clamped_rows", clamped),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// CorrelateTickets binds tickets to towers and assigns their sentiment. It
// must run after the towers are generated.
func (g *Generator) CorrelateTickets(ctx context.Context, towers []Tower, inputs []TicketInput) ([]Ticket, error) {
	if len(towers) == 0 {
		return nil, ErrNoTowers
	}
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		if in.TicketID == "" {
			return nil, fmt.Errorf("%w: ticket at index %d", ErrEmptyIdentity, i)
		}
		if _, dup := seen[in.TicketID]; dup {
			return nil, fmt.Errorf("%w: ticket %s", ErrDuplicateIdentity, in.TicketID)
		}
		seen[in.TicketID] = struct{}{}
	}

	start := time.Now()
	binder := newTicketBinder(g.tables, towers)
	if len(binder.problematic) == 0 {
		g.logger.Warn("no towers in the problematic tiers, tickets keep their general assignment",
			zap.Int("problematic_worst", g.tables.Tickets.ProblematicWorst))
	}

	out := make([]Ticket, len(inputs))
	err := g.parallel(ctx, len(inputs), func(i int) {
		out[i] = binder.bind(inputs[i])
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		g.recorder.TicketCorrelated(out[i].Tier.String(), out[i].Category)
	}
	g.recorder.ObserveGeneration("tickets", time.Since(start))
	return out, nil
}

// Generate runs the full pipeline: towers first, then tickets against them.
func (g *Generator) Generate(ctx context.Context, towers []TowerInput, tickets []TicketInput) (Dataset, error) {
	tw, err := g.GenerateTowers(ctx, towers)
	if err != nil {
		return Dataset{}, fmt.Errorf("generate towers: %w", err)
	}
	tk, err := g.CorrelateTickets(ctx, tw, tickets)
	if err != nil {
		return Dataset{}, fmt.Errorf("correlate tickets: %w", err)
	}
	g.logger.Info("generated dataset",
		zap.String("version", g.version),
		zap.Int("towers", len(tw)),
		zap.Int("tickets", len(tk)))
	return Dataset{Version: g.version, Towers: tw, Tickets: tk}, nil
}

// parallel runs fn over [0, n) in contiguous chunks. Each index is written by
// exactly one goroutine.
func (g *Generator) parallel(ctx context.Context, n int, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}
	chunk := (n + g.workers - 1) / g.workers
	if chunk < minChunk {
		chunk = minChunk
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%ctxCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				fn(i)
			}
			return nil
		})
	}
	return eg.Wait()
}
