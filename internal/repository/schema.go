package repository

import (
	"strings"

	"github.com/godilite/towergen/internal/generator"
)

var towerBaseColumns = []string{
	"cell_id", "descriptor", "vendor", "tier", "tier_rank",
	"technology", "geography", "cause_code",
}

var ticketColumns = []string{
	"ticket_id", "request", "cell_id", "category", "sentiment_score", "dataset_version",
}

// metricColumns are the generated KPI columns, named after the registry.
var metricColumns = func() []string {
	defs := generator.Registry()
	cols := make([]string, len(defs))
	for i, d := range defs {
		cols[i] = d.Name
	}
	return cols
}()

// towerSelectColumns is the projection scanned by scanTower.
var towerSelectColumns = strings.Join(append(append([]string{}, towerBaseColumns...), metricColumns...), ", ")

var towerInsertColumns = append(append(append([]string{}, towerBaseColumns...), metricColumns...), "dataset_version")

// Schema returns the idempotent DDL for the tower and ticket tables. The
// statements run unchanged on sqlite3 and postgres.
func Schema() []string {
	var towers strings.Builder
	towers.WriteString(`CREATE TABLE IF NOT EXISTS towers (
	cell_id TEXT PRIMARY KEY,
	descriptor TEXT NOT NULL,
	vendor TEXT NOT NULL,
	tier TEXT NOT NULL,
	tier_rank INTEGER NOT NULL,
	technology TEXT NOT NULL,
	geography TEXT NOT NULL,
	cause_code TEXT NOT NULL,
`)
	for _, c := range metricColumns {
		towers.WriteString("\t" + c + " DOUBLE PRECISION NOT NULL,\n")
	}
	towers.WriteString("\tdataset_version TEXT NOT NULL\n)")

	return []string{
		towers.String(),
		`CREATE INDEX IF NOT EXISTS idx_towers_tier_rank ON towers (tier_rank)`,
		`CREATE TABLE IF NOT EXISTS tickets (
	ticket_id TEXT PRIMARY KEY,
	request TEXT NOT NULL,
	cell_id TEXT NOT NULL REFERENCES towers (cell_id),
	category TEXT NOT NULL,
	sentiment_score DOUBLE PRECISION NOT NULL,
	dataset_version TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_cell_id ON tickets (cell_id)`,
		`CREATE TABLE IF NOT EXISTS dataset_meta (
	id INTEGER PRIMARY KEY,
	version TEXT NOT NULL,
	generated_at TIMESTAMP NOT NULL,
	towers BIGINT NOT NULL,
	tickets BIGINT NOT NULL
)`,
	}
}
