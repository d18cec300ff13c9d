package models

import (
	"time"

	"github.com/godilite/towergen/internal/generator"
)

type TowerRow struct {
	CellID     string
	Descriptor string
	Vendor     string
	Tier       string
	TierRank   int
	Technology string
	Geography  string
	CauseCode  string
	Metrics    generator.MetricBundle
}

type TicketRow struct {
	TicketID       string
	Request        string
	CellID         string
	Category       string
	SentimentScore float64
}

// TierSummaryRow is the SQL aggregate over one tier. Averages are nil when no
// row contributed a value.
type TierSummaryRow struct {
	Tier               string
	TierRank           int
	Towers             int64
	AvgRRCFailureRate  *float64
	AvgDLLatency       *float64
	AvgDLPRBUtil       *float64
	AvgAbnormalRelease *float64
	AvgERABSuccessRate *float64
	AvgS1SuccessRate   *float64
}

type TierSentimentRow struct {
	Tier         string
	TierRank     int
	Tickets      int64
	AvgSentiment *float64
	MinSentiment *float64
	MaxSentiment *float64
}

type DatasetMeta struct {
	Version     string
	GeneratedAt time.Time
	Towers      int64
	Tickets     int64
}
