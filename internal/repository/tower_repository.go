package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godilite/towergen/internal/generator"
	"github.com/godilite/towergen/internal/repository/models"
)

var ErrNotFound = errors.New("not found")

const (
	towerBatchSize  = 25
	ticketBatchSize = 150
)

// rrcFailureExpr is the per-row RRC failure percentage, NULL without attempts.
const rrcFailureExpr = `100.0 * (rrc_conn_estab_att - rrc_conn_estab_succ) / NULLIF(rrc_conn_estab_att, 0)`

type TowerRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewTowerRepository(db *sql.DB, dialect Dialect) *TowerRepository {
	return &TowerRepository{db: db, dialect: dialect}
}

// EnsureSchema creates the tables when missing.
func (r *TowerRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ReplaceDataset swaps the stored dataset for ds in a single transaction.
func (r *TowerRepository) ReplaceDataset(ctx context.Context, ds generator.Dataset, generatedAt time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ReplaceDataset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM tickets`, `DELETE FROM towers`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear dataset: %w", err)
		}
	}

	for lo := 0; lo < len(ds.Towers); lo += towerBatchSize {
		hi := min(lo+towerBatchSize, len(ds.Towers))
		if err = r.insertTowers(ctx, tx, ds.Version, ds.Towers[lo:hi]); err != nil {
			return err
		}
	}
	for lo := 0; lo < len(ds.Tickets); lo += ticketBatchSize {
		hi := min(lo+ticketBatchSize, len(ds.Tickets))
		if err = r.insertTickets(ctx, tx, ds.Version, ds.Tickets[lo:hi]); err != nil {
			return err
		}
	}

	const meta = `
		INSERT INTO dataset_meta (id, version, generated_at, towers, tickets)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			generated_at = excluded.generated_at,
			towers = excluded.towers,
			tickets = excluded.tickets
	`
	if _, err = tx.ExecContext(ctx, r.dialect.Rebind(meta), ds.Version, generatedAt.UTC(), len(ds.Towers), len(ds.Tickets)); err != nil {
		return fmt.Errorf("upsert dataset_meta: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ReplaceDataset: %w", err)
	}
	return nil
}

func (r *TowerRepository) insertTowers(ctx context.Context, tx *sql.Tx, version string, towers []generator.Tower) error {
	query := upsertQuery("towers", towerInsertColumns, "cell_id", len(towers))
	args := make([]any, 0, len(towers)*len(towerInsertColumns))
	for _, t := range towers {
		args = append(args, t.CellID, t.Descriptor, t.Vendor, t.Tier.String(), int(t.Tier),
			t.Technology, t.Geography, t.CauseCode)
		for _, v := range t.Metrics.Values() {
			args = append(args, v)
		}
		args = append(args, version)
	}
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("insert towers: %w", err)
	}
	return nil
}

func (r *TowerRepository) insertTickets(ctx context.Context, tx *sql.Tx, version string, tickets []generator.Ticket) error {
	query := upsertQuery("tickets", ticketColumns, "ticket_id", len(tickets))
	args := make([]any, 0, len(tickets)*len(ticketColumns))
	for _, t := range tickets {
		args = append(args, t.TicketID, t.Request, t.CellID, t.Category, t.SentimentScore, version)
	}
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	return nil
}

// upsertQuery builds a multi-row INSERT ... ON CONFLICT DO UPDATE statement.
func upsertQuery(table string, cols []string, key string, rows int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = row
	}
	var sets []string
	for _, c := range cols {
		if c != key {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), strings.Join(values, ", "), key, strings.Join(sets, ", "))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTower(s rowScanner) (models.TowerRow, error) {
	var t models.TowerRow
	vals := make([]float64, len(metricColumns))
	dest := []any{&t.CellID, &t.Descriptor, &t.Vendor, &t.Tier, &t.TierRank, &t.Technology, &t.Geography, &t.CauseCode}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := s.Scan(dest...); err != nil {
		return models.TowerRow{}, err
	}
	m, err := generator.NewMetricBundle(vals)
	if err != nil {
		return models.TowerRow{}, err
	}
	t.Metrics = m
	return t, nil
}

// GetTower fetches one tower by cell id.
func (r *TowerRepository) GetTower(ctx context.Context, cellID string) (models.TowerRow, error) {
	query := `SELECT ` + towerSelectColumns + ` FROM towers WHERE cell_id = ?`
	t, err := scanTower(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), cellID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TowerRow{}, fmt.Errorf("tower %s: %w", cellID, ErrNotFound)
		}
		return models.TowerRow{}, fmt.Errorf("query GetTower: %w", err)
	}
	return t, nil
}

// GetWorstTowers returns up to limit towers, worst tier first, then highest
// RRC failure rate.
func (r *TowerRepository) GetWorstTowers(ctx context.Context, limit int) ([]models.TowerRow, error) {
	query := `SELECT ` + towerSelectColumns + ` FROM towers
		ORDER BY tier_rank DESC, COALESCE(` + rrcFailureExpr + `, 0) DESC, cell_id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("query GetWorstTowers: %w", err)
	}
	defer rows.Close()

	var results []models.TowerRow
	for rows.Next() {
		t, err := scanTower(rows)
		if err != nil {
			return nil, fmt.Errorf("scan GetWorstTowers row: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetWorstTowers: %w", err)
	}
	return results, nil
}

// GetTierSummaries aggregates tower KPIs per tier entirely in SQL.
func (r *TowerRepository) GetTierSummaries(ctx context.Context) ([]models.TierSummaryRow, error) {
	const query = `
		SELECT
			tier,
			tier_rank,
			COUNT(*) AS towers,
			AVG(` + rrcFailureExpr + `) AS avg_rrc_failure_rate,
			AVG(pdcp_lat_time_dl) AS avg_dl_latency,
			AVG(prb_util_dl) AS avg_dl_prb_util,
			AVG(erab_rel_abnormal_enb_act) AS avg_abnormal_release,
			AVG(100.0 * erab_estab_succ_init / NULLIF(erab_estab_att_init, 0)) AS avg_erab_success_rate,
			AVG(100.0 * s1_sig_conn_estab_succ / NULLIF(s1_sig_conn_estab_att, 0)) AS avg_s1_success_rate
		FROM towers
		GROUP BY tier, tier_rank
		ORDER BY tier_rank
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query GetTierSummaries: %w", err)
	}
	defer rows.Close()

	var results []models.TierSummaryRow
	for rows.Next() {
		var s models.TierSummaryRow
		var failure, latency, prb, abnormal, erab, s1 sql.NullFloat64
		if err := rows.Scan(&s.Tier, &s.TierRank, &s.Towers, &failure, &latency, &prb, &abnormal, &erab, &s1); err != nil {
			return nil, fmt.Errorf("scan GetTierSummaries row: %w", err)
		}
		s.AvgRRCFailureRate = nullable(failure)
		s.AvgDLLatency = nullable(latency)
		s.AvgDLPRBUtil = nullable(prb)
		s.AvgAbnormalRelease = nullable(abnormal)
		s.AvgERABSuccessRate = nullable(erab)
		s.AvgS1SuccessRate = nullable(s1)
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetTierSummaries: %w", err)
	}
	return results, nil
}

// GetSentimentByTier aggregates ticket sentiment by the tier of the bound tower.
func (r *TowerRepository) GetSentimentByTier(ctx context.Context) ([]models.TierSentimentRow, error) {
	const query = `
		SELECT
			tw.tier,
			tw.tier_rank,
			COUNT(tk.ticket_id) AS tickets,
			AVG(tk.sentiment_score) AS avg_sentiment,
			MIN(tk.sentiment_score) AS min_sentiment,
			MAX(tk.sentiment_score) AS max_sentiment
		FROM tickets AS tk
		JOIN towers AS tw ON tw.cell_id = tk.cell_id
		GROUP BY tw.tier, tw.tier_rank
		ORDER BY tw.tier_rank
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query GetSentimentByTier: %w", err)
	}
	defer rows.Close()

	var results []models.TierSentimentRow
	for rows.Next() {
		var s models.TierSentimentRow
		var avg, lo, hi sql.NullFloat64
		if err := rows.Scan(&s.Tier, &s.TierRank, &s.Tickets, &avg, &lo, &hi); err != nil {
			return nil, fmt.Errorf("scan GetSentimentByTier row: %w", err)
		}
		s.AvgSentiment, s.MinSentiment, s.MaxSentiment = nullable(avg), nullable(lo), nullable(hi)
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetSentimentByTier: %w", err)
	}
	return results, nil
}

// GetTicketsForTower lists the tickets bound to a tower, ordered by id.
func (r *TowerRepository) GetTicketsForTower(ctx context.Context, cellID string) ([]models.TicketRow, error) {
	const query = `
		SELECT ticket_id, request, cell_id, category, sentiment_score
		FROM tickets
		WHERE cell_id = ?
		ORDER BY ticket_id
	`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), cellID)
	if err != nil {
		return nil, fmt.Errorf("query GetTicketsForTower: %w", err)
	}
	defer rows.Close()

	var results []models.TicketRow
	for rows.Next() {
		var t models.TicketRow
		if err := rows.Scan(&t.TicketID, &t.Request, &t.CellID, &t.Category, &t.SentimentScore); err != nil {
			return nil, fmt.Errorf("scan GetTicketsForTower row: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetTicketsForTower: %w", err)
	}
	return results, nil
}

// GetDatasetMeta returns the version and size of the stored dataset.
func (r *TowerRepository) GetDatasetMeta(ctx context.Context) (models.DatasetMeta, error) {
	const query = `SELECT version, generated_at, towers, tickets FROM dataset_meta WHERE id = 1`

	var m models.DatasetMeta
	err := r.db.QueryRowContext(ctx, query).Scan(&m.Version, &m.GeneratedAt, &m.Towers, &m.Tickets)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DatasetMeta{}, fmt.Errorf("dataset: %w", ErrNotFound)
		}
		return models.DatasetMeta{}, fmt.Errorf("query GetDatasetMeta: %w", err)
	}
	return m, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
