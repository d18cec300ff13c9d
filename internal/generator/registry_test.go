package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopoOrder(t *testing.T) {
	t.Run("registry parents come first", func(t *testing.T) {
		order, err := topoOrder(registry)
		require.NoError(t, err)
		require.Len(t, order, len(registry))

		pos := make(map[string]int, len(order))
		for p, i := range order {
			pos[registry[i].Name] = p
		}
		for _, d := range registry {
			if d.Parent != "" {
				assert.Less(t, pos[d.Parent], pos[d.Name], "%s before %s", d.Parent, d.Name)
			}
		}
	})

	t.Run("children declared before parents", func(t *testing.T) {
		defs := []MetricDef{
			{Name: "pkt", Kind: KindScaled, Parent: "time"},
			{Name: "att", Kind: KindBand},
			{Name: "time", Kind: KindBand},
		}
		order, err := topoOrder(defs)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 0}, order)
	})

	tests := []struct {
		name string
		defs []MetricDef
	}{
		{
			name: "cycle",
			defs: []MetricDef{
				{Name: "a", Kind: KindScaled, Parent: "b"},
				{Name: "b", Kind: KindScaled, Parent: "a"},
			},
		},
		{
			name: "unknown parent",
			defs: []MetricDef{{Name: "a", Kind: KindRatio, Parent: "ghost"}},
		},
		{
			name: "ratio without parent",
			defs: []MetricDef{{Name: "a", Kind: KindRatio}},
		},
		{
			name: "duplicate",
			defs: []MetricDef{{Name: "a"}, {Name: "a"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := topoOrder(tt.defs)
			assert.ErrorIs(t, err, ErrMetricGraph)
		})
	}
}

func TestMetricBundle_ValueMatchesRegistry(t *testing.T) {
	g := newTestGenerator(t, nil)
	tw := generateTowers(t, g, 1)[0]

	vals := tw.Metrics.Values()
	require.Len(t, vals, len(registry))
	for i, d := range registry {
		v, ok := tw.Metrics.Value(d.Name)
		require.True(t, ok)
		assert.Equal(t, vals[i], v, d.Name)
	}
	rebuilt, err := NewMetricBundle(vals)
	require.NoError(t, err)
	assert.Equal(t, tw.Metrics, rebuilt)

	_, err = NewMetricBundle(vals[1:])
	assert.Error(t, err)

	_, ok := tw.Metrics.Value("nope")
	assert.False(t, ok)
}

func TestMetricBundle_Rates(t *testing.T) {
	m := MetricBundle{
		RRCConnEstabAtt: 200, RRCConnEstabSucc: 150,
		S1SigConnEstabAtt: 1000, S1SigConnEstabSucc: 900,
		ERABEstabAttInit: 0, ERABEstabSuccInit: 0,
	}

	fr, ok := m.RRCFailureRate()
	assert.True(t, ok)
	assert.InDelta(t, 25.0, fr, 1e-9)

	sr, ok := m.S1SuccessRate()
	assert.True(t, ok)
	assert.InDelta(t, 90.0, sr, 1e-9)

	er, ok := m.ERABSuccessRate()
	assert.False(t, ok)
	assert.Zero(t, er)
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 3.0, roundTo(2.5, 0))
	assert.Equal(t, 1.24, roundTo(1.2351, 2))
	assert.Equal(t, -0.81, roundTo(-0.8149, 2))
}
