package grpc

import (
	"time"

	"github.com/godilite/towergen/internal/generator"
	"github.com/godilite/towergen/internal/service"
)

// Payloads are built from plain maps and slices so structpb.NewStruct accepts
// them. Missing rates encode as null.

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func encodeMetrics(m generator.MetricBundle) map[string]any {
	defs := generator.Registry()
	vals := m.Values()
	out := make(map[string]any, len(defs))
	for i, d := range defs {
		out[d.Name] = vals[i]
	}
	return out
}

func encodeTower(t service.Tower) map[string]any {
	return map[string]any{
		"cell_id":           t.CellID,
		"descriptor":        t.Descriptor,
		"vendor":            t.Vendor,
		"tier":              t.Tier,
		"technology":        t.Technology,
		"geography":         t.Geography,
		"cause_code":        t.CauseCode,
		"rrc_failure_rate":  optional(t.RRCFailureRate),
		"s1_success_rate":   optional(t.S1SuccessRate),
		"erab_success_rate": optional(t.ERABSuccessRate),
		"metrics":           encodeMetrics(t.Metrics),
	}
}

func encodeTowers(ts []service.Tower) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = encodeTower(t)
	}
	return out
}

func encodeTierSummaries(ss []service.TierSummary) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = map[string]any{
			"tier":                  s.Tier,
			"towers":                float64(s.Towers),
			"avg_rrc_failure_rate":  optional(s.AvgRRCFailureRate),
			"avg_dl_latency":        optional(s.AvgDLLatency),
			"avg_dl_prb_util":       optional(s.AvgDLPRBUtil),
			"avg_abnormal_release":  optional(s.AvgAbnormalRelease),
			"avg_erab_success_rate": optional(s.AvgERABSuccessRate),
			"avg_s1_success_rate":   optional(s.AvgS1SuccessRate),
			"tickets":               float64(s.Tickets),
			"avg_sentiment":         optional(s.AvgSentiment),
			"min_sentiment":         optional(s.MinSentiment),
			"max_sentiment":         optional(s.MaxSentiment),
		}
	}
	return out
}

func encodeSentiment(ss []service.TierSentiment) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = map[string]any{
			"tier":          s.Tier,
			"tickets":       float64(s.Tickets),
			"avg_sentiment": optional(s.AvgSentiment),
			"min_sentiment": optional(s.MinSentiment),
			"max_sentiment": optional(s.MaxSentiment),
		}
	}
	return out
}

func encodeTickets(ts []service.Ticket) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = map[string]any{
			"ticket_id":       t.TicketID,
			"request":         t.Request,
			"cell_id":         t.CellID,
			"category":        t.Category,
			"sentiment_score": t.SentimentScore,
		}
	}
	return out
}

func encodeDataset(info service.DatasetInfo) map[string]any {
	return map[string]any{
		"version":      info.Version,
		"generated_at": info.GeneratedAt.UTC().Format(time.RFC3339),
		"towers":       float64(info.Towers),
		"tickets":      float64(info.Tickets),
	}
}
