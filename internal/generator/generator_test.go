package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/godilite/towergen/internal/metrics"
)

func newTestGenerator(t testing.TB, tables *Tables, opts ...Option) *Generator {
	t.Helper()
	if tables == nil {
		tables = DefaultTables()
	}
	g, err := New(tables, opts...)
	require.NoError(t, err)
	return g
}

func generateTowers(t testing.TB, g *Generator, n int) []Tower {
	t.Helper()
	towers, err := g.GenerateTowers(context.Background(), SyntheticTowers(n, 1))
	require.NoError(t, err)
	return towers
}

func TestNew(t *testing.T) {
	t.Run("nil tables", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrInvalidTables)
	})

	t.Run("defaults", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		assert.NotNil(t, g.logger)
		assert.Positive(t, g.workers)
		assert.Len(t, g.order, len(registry))
		assert.NotEmpty(t, g.Version())
	})

	t.Run("options", func(t *testing.T) {
		rec := metrics.NewRecorder()
		g := newTestGenerator(t, nil, WithWorkers(3), WithDebug(true), WithMetrics(rec), WithLogger(zaptest.NewLogger(t)))
		assert.Equal(t, 3, g.workers)
		assert.True(t, g.debug)
		assert.Same(t, rec, g.recorder)
	})

	t.Run("invalid tables are rejected", func(t *testing.T) {
		tb := DefaultTables()
		tb.Vendors[0].Percent = 10
		tb.compiled = false
		_, err := New(tb)
		assert.ErrorIs(t, err, ErrInvalidTables)
	})
}

func TestGenerateTowers_AttemptSuccessInvariant(t *testing.T) {
	g := newTestGenerator(t, nil)
	towers := generateTowers(t, g, 10000)

	for _, tw := range towers {
		m := tw.Metrics
		pairs := [][2]int64{
			{m.RRCConnEstabAtt, m.RRCConnEstabSucc},
			{m.S1SigConnEstabAtt, m.S1SigConnEstabSucc},
			{m.ERABEstabAttInit, m.ERABEstabSuccInit},
		}
		for _, p := range pairs {
			require.GreaterOrEqual(t, p[1], int64(0), "cell %s", tw.CellID)
			require.LessOrEqual(t, p[1], p[0], "cell %s", tw.CellID)
		}
		for _, pct := range []float64{m.PRBUtilDL, m.PRBUtilUL, m.ERABRelAbnormalENBAct, m.ERABRelAbnormalENB} {
			require.GreaterOrEqual(t, pct, 0.0)
			require.LessOrEqual(t, pct, 100.0)
		}
		require.LessOrEqual(t, m.PDCPLatPktTransDL, m.PDCPLatTimeDL)
		require.LessOrEqual(t, m.PRBUtilUL, m.PRBUtilDL)
		require.LessOrEqual(t, m.PDCPVolDLDRBLastTTI, m.PDCPVolDLDRB)
	}
}

func TestGenerateTowers_Deterministic(t *testing.T) {
	inputs := SyntheticTowers(3000, 1000)

	one, err := newTestGenerator(t, nil, WithWorkers(1)).GenerateTowers(context.Background(), inputs)
	require.NoError(t, err)
	many, err := newTestGenerator(t, nil, WithWorkers(8)).GenerateTowers(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, one, many)
	for i := range inputs {
		assert.Equal(t, inputs[i].CellID, many[i].CellID)
	}
}

func TestGenerateTowers_VendorConvergence(t *testing.T) {
	g := newTestGenerator(t, nil)
	towers := generateTowers(t, g, 10000)

	counts := make(map[string]int)
	for _, tw := range towers {
		counts[tw.Vendor]++
	}
	for _, v := range g.Tables().Vendors {
		got := float64(counts[v.Name]) / float64(len(towers)) * 100
		assert.InDelta(t, v.Percent, got, 2, "vendor %s", v.Name)
	}
}

func TestAssignTier_ConditionalConvergence(t *testing.T) {
	tb := DefaultTables()
	const n = 10000
	ids := SyntheticTowers(n, 1)

	for vendor, dist := range tb.Tiers {
		counts := make(map[Tier]int)
		for _, in := range ids {
			counts[tb.AssignTier(in.CellID, vendor)]++
		}
		for _, sh := range dist {
			tier, err := ParseTier(sh.Name)
			require.NoError(t, err)
			got := float64(counts[tier]) / n * 100
			assert.InDelta(t, sh.Percent, got, 2, "vendor %s tier %s", vendor, tier)
		}
	}
}

func TestGenerateTowers_Monotonicity(t *testing.T) {
	g := newTestGenerator(t, nil)
	towers := generateTowers(t, g, 20000)
	s := Summarize(Dataset{Towers: towers})

	for i := 1; i < len(s.Tiers); i++ {
		better, worse := s.Tiers[i-1], s.Tiers[i]
		require.Positive(t, worse.Towers, "tier %s", worse.Tier)
		assert.Greater(t, worse.MeanRRCFailureRate, better.MeanRRCFailureRate, "failure %s vs %s", worse.Tier, better.Tier)
		assert.Greater(t, worse.MeanDLLatency, better.MeanDLLatency, "latency %s vs %s", worse.Tier, better.Tier)
		assert.Greater(t, worse.MeanDLPRBUtil, better.MeanDLPRBUtil, "utilization %s vs %s", worse.Tier, better.Tier)
		assert.Greater(t, worse.MeanAbnormalRelease, better.MeanAbnormalRelease, "abnormal release %s vs %s", worse.Tier, better.Tier)
	}
}

func TestGenerateTowers_VendorSplitScenario(t *testing.T) {
	tb := DefaultTables()
	tb.Vendors = Distribution{{Name: "A", Percent: 50}, {Name: "B", Percent: 50}}
	tb.Tiers = map[string]Distribution{
		"A": {{Name: "GOOD", Percent: 100}},
		"B": {{Name: "BAD", Percent: 100}},
	}
	for _, mb := range tb.Metrics {
		kept := mb.Overrides[:0]
		for _, o := range mb.Overrides {
			if o.Vendor == "" {
				kept = append(kept, o)
			}
		}
		mb.Overrides = kept
	}
	require.NoError(t, tb.Validate())

	g := newTestGenerator(t, tb)
	towers := generateTowers(t, g, 1000)

	var goodA, badB []float64
	for _, tw := range towers {
		fr, ok := tw.Metrics.RRCFailureRate()
		require.True(t, ok)
		switch {
		case tw.Vendor == "A" && tw.Tier == TierGood:
			goodA = append(goodA, fr)
		case tw.Vendor == "B" && tw.Tier == TierBad:
			badB = append(badB, fr)
		default:
			t.Fatalf("unexpected vendor/tier %s/%s", tw.Vendor, tw.Tier)
		}
	}
	assert.InDelta(t, 500, len(goodA), 50)
	assert.InDelta(t, 500, len(badB), 50)

	succ := tb.Metrics[MetricRRCConnEstabSucc]
	separation := (1-succ.byTier[TierBad].Hi)*100 - (1-succ.byTier[TierGood].Lo)*100
	require.Positive(t, separation)
	assert.GreaterOrEqual(t, mean(badB)-mean(goodA), separation)
}

func TestGenerateTowers_Clamping(t *testing.T) {
	tb := DefaultTables()
	succ := tb.Metrics[MetricRRCConnEstabSucc]
	succ.Overrides = nil
	succ.Tiers = nil
	succ.Default = &Band{Lo: 1, Hi: 1}
	succ.Jitter = 0.05
	require.NoError(t, tb.Validate())

	core, logs := observer.New(zap.WarnLevel)
	rec := metrics.NewRecorder()
	g := newTestGenerator(t, tb, WithDebug(true), WithMetrics(rec), WithLogger(zap.New(core)))
	towers := generateTowers(t, g, 500)

	clamped := 0
	for _, tw := range towers {
		assert.LessOrEqual(t, tw.Metrics.RRCConnEstabSucc, tw.Metrics.RRCConnEstabAtt)
		if len(tw.Clamped) > 0 {
			clamped++
			assert.Contains(t, tw.Clamped, MetricRRCConnEstabSucc)
			assert.Equal(t, tw.Metrics.RRCConnEstabAtt, tw.Metrics.RRCConnEstabSucc)
		}
	}
	assert.Positive(t, clamped)
	assert.Equal(t, clamped, logs.FilterMessage("clamped derived value").Len())
	assert.Equal(t, clamped, Summarize(Dataset{Towers: towers}).ClampedRows)
}

func TestGenerateTowers_ZeroAttempts(t *testing.T) {
	tb := DefaultTables()
	att := tb.Metrics[MetricRRCConnEstabAtt]
	att.Tiers = nil
	att.Default = &Band{}
	require.NoError(t, tb.Validate())

	g := newTestGenerator(t, tb)
	for _, tw := range generateTowers(t, g, 200) {
		assert.Zero(t, tw.Metrics.RRCConnEstabAtt)
		assert.Zero(t, tw.Metrics.RRCConnEstabSucc)
		_, ok := tw.Metrics.RRCFailureRate()
		assert.False(t, ok)
		assert.Empty(t, tw.Clamped)
	}
}

func TestGenerateTowers_InvalidInput(t *testing.T) {
	g := newTestGenerator(t, nil)
	ctx := context.Background()

	_, err := g.GenerateTowers(ctx, []TowerInput{{CellID: "1"}, {CellID: ""}})
	assert.ErrorIs(t, err, ErrEmptyIdentity)

	_, err = g.GenerateTowers(ctx, []TowerInput{{CellID: "1"}, {CellID: "1"}})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	towers, err := g.GenerateTowers(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, towers)
}

func TestGenerateTowers_ContextCanceled(t *testing.T) {
	g := newTestGenerator(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateTowers(ctx, SyntheticTowers(1000, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCorrelateTickets_SentimentOrdering(t *testing.T) {
	g := newTestGenerator(t, nil)
	inputs := SyntheticTowers(5000, 1)
	towers, err := g.GenerateTowers(context.Background(), inputs)
	require.NoError(t, err)

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		ids[i] = in.CellID
	}
	tickets, err := g.CorrelateTickets(context.Background(), towers, SyntheticTickets(20000, ids))
	require.NoError(t, err)

	s := Summarize(Dataset{Towers: towers, Tickets: tickets})
	best, worst := s.Tiers[TierGood], s.Tiers[TierCatastrophic]
	require.Positive(t, best.Tickets)
	require.Positive(t, worst.Tickets)
	assert.Less(t, worst.MeanSentiment, best.MeanSentiment)

	// Worse towers draw a disproportionate share of tickets.
	problematic := 0
	for _, tk := range tickets {
		if tk.Tier >= TierBad {
			problematic++
		}
		assert.GreaterOrEqual(t, tk.SentimentScore, -1.0)
		assert.LessOrEqual(t, tk.SentimentScore, 1.0)
	}
	assert.Greater(t, float64(problematic)/float64(len(tickets)), 0.6)
}

func TestCorrelateTickets_UpgradeIsPositive(t *testing.T) {
	g := newTestGenerator(t, nil)
	towers := generateTowers(t, g, 2000)

	inputs := SyntheticTickets(500, nil)
	for i := range inputs {
		inputs[i].Request = "Looking to UPGRADE my handset"
	}
	tickets, err := g.CorrelateTickets(context.Background(), towers, inputs)
	require.NoError(t, err)

	tiers := make(map[Tier]bool)
	for _, tk := range tickets {
		assert.Equal(t, "sales", tk.Category)
		assert.GreaterOrEqual(t, tk.SentimentScore, 0.30)
		assert.LessOrEqual(t, tk.SentimentScore, 0.80)
		tiers[tk.Tier] = true
	}
	assert.Greater(t, len(tiers), 1)
}

func TestCorrelateTickets_Binding(t *testing.T) {
	ctx := context.Background()

	t.Run("no towers", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		_, err := g.CorrelateTickets(ctx, nil, []TicketInput{{TicketID: "t1"}})
		assert.ErrorIs(t, err, ErrNoTowers)
	})

	t.Run("invalid ticket ids", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		towers := generateTowers(t, g, 10)
		_, err := g.CorrelateTickets(ctx, towers, []TicketInput{{TicketID: ""}})
		assert.ErrorIs(t, err, ErrEmptyIdentity)
		_, err = g.CorrelateTickets(ctx, towers, []TicketInput{{TicketID: "a"}, {TicketID: "a"}})
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	})

	t.Run("empty problematic partition keeps general assignment", func(t *testing.T) {
		tb := DefaultTables()
		for v := range tb.Tiers {
			tb.Tiers[v] = Distribution{{Name: "GOOD", Percent: 100}}
		}
		require.NoError(t, tb.Validate())

		core, logs := observer.New(zap.WarnLevel)
		g := newTestGenerator(t, tb, WithLogger(zap.New(core)))
		towers := generateTowers(t, g, 50)

		tickets, err := g.CorrelateTickets(ctx, towers, []TicketInput{
			{TicketID: "keep", CellID: towers[7].CellID, Request: "bill"},
			{TicketID: "reassign", CellID: "no-such-cell", Request: "bill"},
		})
		require.NoError(t, err)
		assert.Equal(t, towers[7].CellID, tickets[0].CellID)
		assert.NotEqual(t, "no-such-cell", tickets[1].CellID)
		assert.Equal(t, TierGood, tickets[1].Tier)
		assert.Equal(t, 1, logs.FilterMessageSnippet("no towers in the problematic tiers").Len())
	})

	t.Run("independent of tower order", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		towers := generateTowers(t, g, 300)
		reversed := make([]Tower, len(towers))
		for i := range towers {
			reversed[len(towers)-1-i] = towers[i]
		}
		inputs := SyntheticTickets(400, nil)

		a, err := g.CorrelateTickets(ctx, towers, inputs)
		require.NoError(t, err)
		b, err := g.CorrelateTickets(ctx, reversed, inputs)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestGenerate(t *testing.T) {
	rec := metrics.NewRecorder()
	g := newTestGenerator(t, nil, WithMetrics(rec), WithLogger(zaptest.NewLogger(t)))

	towers := SyntheticTowers(100, 1)
	ds, err := g.Generate(context.Background(), towers, SyntheticTickets(50, nil))
	require.NoError(t, err)
	assert.Equal(t, g.Version(), ds.Version)
	assert.Len(t, ds.Towers, 100)
	assert.Len(t, ds.Tickets, 50)

	_, err = g.Generate(context.Background(), nil, SyntheticTickets(5, nil))
	assert.ErrorIs(t, err, ErrNoTowers)
}

func BenchmarkGenerateTowers(b *testing.B) {
	g := newTestGenerator(b, nil)
	inputs := SyntheticTowers(10000, 1)
	ctx := context.Background()

	for b.Loop() {
		if _, err := g.GenerateTowers(ctx, inputs); err != nil {
			b.Fatal(err)
		}
	}
}
