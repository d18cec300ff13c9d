package generator

import (
	"gonum.org/v1/gonum/stat"
)

// TierSummary aggregates the generated data of one tier.
type TierSummary struct {
	Tier                Tier
	Towers              int
	MeanRRCFailureRate  float64
	StdRRCFailureRate   float64
	MeanDLLatency       float64
	MeanDLPRBUtil       float64
	MeanAbnormalRelease float64
	Tickets             int
	MeanSentiment       float64
}

// Summary is the verification view over a dataset.
type Summary struct {
	Version     string
	Towers      int
	Tickets     int
	ClampedRows int
	VendorShare map[string]float64
	Tiers       []TierSummary
}

// Summarize computes per-tier and per-vendor aggregates. Tiers without towers
// or tickets report zero means.
func Summarize(ds Dataset) Summary {
	type acc struct {
		failure, latency, prb, abnormal, sentiment []float64
		towers                                     int
	}
	var byTier [len(tierNames)]acc
	vendors := make(map[string]int)
	clamped := 0

	for _, tw := range ds.Towers {
		a := &byTier[tw.Tier]
		a.towers++
		vendors[tw.Vendor]++
		if len(tw.Clamped) > 0 {
			clamped++
		}
		if fr, ok := tw.Metrics.RRCFailureRate(); ok {
			a.failure = append(a.failure, fr)
		}
		a.latency = append(a.latency, tw.Metrics.PDCPLatTimeDL)
		a.prb = append(a.prb, tw.Metrics.PRBUtilDL)
		a.abnormal = append(a.abnormal, tw.Metrics.ERABRelAbnormalENBAct)
	}
	for _, tk := range ds.Tickets {
		a := &byTier[tk.Tier]
		a.sentiment = append(a.sentiment, tk.SentimentScore)
	}

	s := Summary{
		Version:     ds.Version,
		Towers:      len(ds.Towers),
		Tickets:     len(ds.Tickets),
		ClampedRows: clamped,
		VendorShare: make(map[string]float64, len(vendors)),
	}
	for v, n := range vendors {
		s.VendorShare[v] = float64(n) / float64(len(ds.Towers)) * 100
	}
	for _, tier := range AllTiers() {
		a := byTier[tier]
		s.Tiers = append(s.Tiers, TierSummary{
			Tier:                tier,
			Towers:              a.towers,
			MeanRRCFailureRate:  mean(a.failure),
			StdRRCFailureRate:   stddev(a.failure),
			MeanDLLatency:       mean(a.latency),
			MeanDLPRBUtil:       mean(a.prb),
			MeanAbnormalRelease: mean(a.abnormal),
			Tickets:             len(a.sentiment),
			MeanSentiment:       mean(a.sentiment),
		})
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}
