package generator

import (
	"fmt"
	"math"
)

// MetricBundle is the per-tower set of generated KPIs.
type MetricBundle struct {
	RRCConnEstabAtt    int64
	RRCConnEstabSucc   int64
	S1SigConnEstabAtt  int64
	S1SigConnEstabSucc int64
	ERABEstabAttInit   int64
	ERABEstabSuccInit  int64

	PDCPLatTimeDL     float64
	PDCPLatPktTransDL float64
	PDCPLatTimeUL     float64
	PDCPLatPktTransUL float64

	PRBUtilDL float64
	PRBUtilUL float64

	ERABRelAbnormalENBAct float64
	ERABRelAbnormalENB    float64
	ERABRelNormalENB      int64
	ERABRelMME            int64

	RSRPServ  float64
	RSRPDelta float64
	RSRQServ  float64
	RSRQDelta float64

	ThpTimeDL           float64
	PDCPVolDLDRB        int64
	PDCPVolDLDRBLastTTI int64
}

// RRCFailureRate is the RRC setup failure percentage. ok is false when there
// were no attempts.
func (m MetricBundle) RRCFailureRate() (float64, bool) {
	if m.RRCConnEstabAtt <= 0 {
		return 0, false
	}
	return float64(m.RRCConnEstabAtt-m.RRCConnEstabSucc) / float64(m.RRCConnEstabAtt) * 100, true
}

// S1SuccessRate is the S1 signalling setup success percentage.
func (m MetricBundle) S1SuccessRate() (float64, bool) {
	if m.S1SigConnEstabAtt <= 0 {
		return 0, false
	}
	return float64(m.S1SigConnEstabSucc) / float64(m.S1SigConnEstabAtt) * 100, true
}

// ERABSuccessRate is the initial E-RAB setup success percentage.
func (m MetricBundle) ERABSuccessRate() (float64, bool) {
	if m.ERABEstabAttInit <= 0 {
		return 0, false
	}
	return float64(m.ERABEstabSuccInit) / float64(m.ERABEstabAttInit) * 100, true
}

// Value looks a metric up by registry name.
func (m MetricBundle) Value(name string) (float64, bool) {
	i, ok := registryIndex[name]
	if !ok {
		return 0, false
	}
	return m.Values()[i], true
}

// Values lists the metrics in registry order.
func (m MetricBundle) Values() []float64 {
	return []float64{
		float64(m.RRCConnEstabAtt),
		float64(m.RRCConnEstabSucc),
		float64(m.S1SigConnEstabAtt),
		float64(m.S1SigConnEstabSucc),
		float64(m.ERABEstabAttInit),
		float64(m.ERABEstabSuccInit),
		m.PDCPLatTimeDL,
		m.PDCPLatPktTransDL,
		m.PDCPLatTimeUL,
		m.PDCPLatPktTransUL,
		m.PRBUtilDL,
		m.PRBUtilUL,
		m.ERABRelAbnormalENBAct,
		m.ERABRelAbnormalENB,
		float64(m.ERABRelNormalENB),
		float64(m.ERABRelMME),
		m.RSRPServ,
		m.RSRPDelta,
		m.RSRQServ,
		m.RSRQDelta,
		m.ThpTimeDL,
		float64(m.PDCPVolDLDRB),
		float64(m.PDCPVolDLDRBLastTTI),
	}
}

// NewMetricBundle rebuilds a bundle from values in registry order, as
// returned by Values.
func NewMetricBundle(values []float64) (MetricBundle, error) {
	if len(values) != len(registry) {
		return MetricBundle{}, fmt.Errorf("metric bundle needs %d values, got %d", len(registry), len(values))
	}
	return bundleFromValues(values), nil
}

func bundleFromValues(v []float64) MetricBundle {
	return MetricBundle{
		RRCConnEstabAtt:       int64(v[0]),
		RRCConnEstabSucc:      int64(v[1]),
		S1SigConnEstabAtt:     int64(v[2]),
		S1SigConnEstabSucc:    int64(v[3]),
		ERABEstabAttInit:      int64(v[4]),
		ERABEstabSuccInit:     int64(v[5]),
		PDCPLatTimeDL:         v[6],
		PDCPLatPktTransDL:     v[7],
		PDCPLatTimeUL:         v[8],
		PDCPLatPktTransUL:     v[9],
		PRBUtilDL:             v[10],
		PRBUtilUL:             v[11],
		ERABRelAbnormalENBAct: v[12],
		ERABRelAbnormalENB:    v[13],
		ERABRelNormalENB:      int64(v[14]),
		ERABRelMME:            int64(v[15]),
		RSRPServ:              v[16],
		RSRPDelta:             v[17],
		RSRQServ:              v[18],
		RSRQDelta:             v[19],
		ThpTimeDL:             v[20],
		PDCPVolDLDRB:          int64(v[21]),
		PDCPVolDLDRBLastTTI:   int64(v[22]),
	}
}

func roundTo(v float64, precision int) float64 {
	if precision <= 0 {
		return math.Round(v)
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// deriveMetrics computes every registered metric for one tower in dependency
// order. It returns the names of metrics that had to be clamped.
func (t *Tables) deriveMetrics(order []int, id, vendor string, tier Tier, tags []string) (MetricBundle, []string) {
	vals := make([]float64, len(registry))
	var clamped []string
	for _, i := range order {
		def := registry[i]
		mb := t.Metrics[def.Name]
		band := mb.band(tier, vendor, tags)
		f := Fraction(t.Seed, id, def.Name, t.Resolution)

		var v float64
		switch def.Kind {
		case KindBand:
			v = band.At(f)
		case KindRatio:
			parent := vals[registryIndex[def.Parent]]
			if parent <= 0 {
				v = 0
				break
			}
			v = math.Round(parent * band.At(f))
			if mb.Jitter > 0 {
				j := Fraction(t.Seed, id, def.Name+saltJitterSfx, t.Resolution)*2 - 1
				v = math.Round(v + j*mb.Jitter*parent)
			}
			if v > parent {
				v = parent
				clamped = append(clamped, def.Name)
			} else if v < 0 {
				v = 0
				clamped = append(clamped, def.Name)
			}
		case KindScaled:
			v = vals[registryIndex[def.Parent]] * band.At(f)
		}

		v = roundTo(v, def.Precision)
		if def.Percent && (v < 0 || v > 100) {
			v = math.Max(0, math.Min(100, v))
			clamped = append(clamped, def.Name)
		}
		vals[i] = v
	}
	return bundleFromValues(vals), clamped
}
