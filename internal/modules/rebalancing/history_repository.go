package rebalancing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// RunSummary is one row of the rebalance history
type RunSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	CommonCurrency string    `json:"common_currency"`
	DryRun         bool      `json:"dry_run"`
	MaxDeviation   float64   `json:"max_allocation_deviation"`
}

// HistoryRepository stores rebalance results in the history database.
// Full results are kept as msgpack payloads.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "rebalance_history").Logger(),
	}
}

// Record appends a result
func (r *HistoryRepository) Record(ctx context.Context, result *Result) error {
	payload, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode rebalance %s: %w", result.ID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO rebalance_runs (id, created_at, common_currency, dry_run, max_deviation, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID, result.CreatedAt.Unix(), result.CommonCurrency, boolToInt(result.DryRun),
		result.MaxAllocationDeviation, payload)
	if err != nil {
		return fmt.Errorf("failed to store rebalance %s: %w", result.ID, err)
	}

	r.log.Debug().Str("run_id", result.ID).Int("bytes", len(payload)).Msg("Recorded rebalance")
	return nil
}

// List returns the most recent runs first, at most limit rows
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, common_currency, dry_run, max_deviation
		 FROM rebalance_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance history: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var run RunSummary
		var createdAt int64
		if err := rows.Scan(&run.ID, &createdAt, &run.CommonCurrency, &run.DryRun, &run.MaxDeviation); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rebalance history: %w", err)
	}

	return runs, nil
}

// Get returns the full result of one run
func (r *HistoryRepository) Get(ctx context.Context, id string) (*Result, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM rebalance_runs WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: rebalance %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rebalance %s: %w", id, err)
	}

	var result Result
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode rebalance %s: %w", id, err)
	}
	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
