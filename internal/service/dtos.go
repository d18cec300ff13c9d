package service

import (
	"time"

	"github.com/godilite/towergen/internal/generator"
)

// Tower is a stored tower with its headline rates. Rates are nil when the
// denominator was zero.
type Tower struct {
	CellID          string
	Descriptor      string
	Vendor          string
	Tier            string
	Technology      string
	Geography       string
	CauseCode       string
	Metrics         generator.MetricBundle
	RRCFailureRate  *float64
	S1SuccessRate   *float64
	ERABSuccessRate *float64
}

type Ticket struct {
	TicketID       string
	Request        string
	CellID         string
	Category       string
	SentimentScore float64
}

// TierSummary merges the KPI and sentiment aggregates of one tier.
type TierSummary struct {
	Tier               string
	Towers             int64
	AvgRRCFailureRate  *float64
	AvgDLLatency       *float64
	AvgDLPRBUtil       *float64
	AvgAbnormalRelease *float64
	AvgERABSuccessRate *float64
	AvgS1SuccessRate   *float64
	Tickets            int64
	AvgSentiment       *float64
	MinSentiment       *float64
	MaxSentiment       *float64
}

type TierSentiment struct {
	Tier         string
	Tickets      int64
	AvgSentiment *float64
	MinSentiment *float64
	MaxSentiment *float64
}

type DatasetInfo struct {
	Version     string
	GeneratedAt time.Time
	Towers      int64
	Tickets     int64
}

// SeedResult describes a freshly persisted dataset. PreviousVersion is empty
// when nothing was stored before.
type SeedResult struct {
	Version         string
	PreviousVersion string
	GeneratedAt     time.Time
	Summary         generator.Summary
}
