// Package clientdata caches market data fetched by the external clients.
// Entries are JSON blobs with an expiry, read fresh-first with a stale fallback.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Table names a cache table in the cache database
type Table string

const (
	// TableExchangeRates caches rates keyed by "FROM:TO"
	TableExchangeRates Table = "exchangerate"
	// TableCurrentPrices caches quotes keyed by ticker
	TableCurrentPrices Table = "current_prices"
)

// AllTables lists every cache table, in cleanup order
var AllTables = []Table{TableExchangeRates, TableCurrentPrices}

var keyColumns = map[Table]string{
	TableExchangeRates: "pair",
	TableCurrentPrices: "ticker",
}

// Repository reads and writes cached client data
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// keyColumn doubles as the table allow-list; table names are interpolated into SQL
func keyColumn(table Table) (string, error) {
	col, ok := keyColumns[table]
	if !ok {
		return "", fmt.Errorf("invalid cache table: %s", table)
	}
	return col, nil
}

// Store upserts data under key, expiring ttl from now
func (r *Repository) Store(ctx context.Context, table Table, key string, data interface{}, ttl time.Duration) error {
	col, err := keyColumn(table)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry %s: %w", table, key, err)
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)", table, col)
	if _, err := r.db.ExecContext(ctx, query, key, string(payload), time.Now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store %s entry %s: %w", table, key, err)
	}
	return nil
}

// GetIfFresh returns the entry for key if it has not expired.
// A missing or expired entry returns nil, nil.
func (r *Repository) GetIfFresh(ctx context.Context, table Table, key string) (json.RawMessage, error) {
	col, err := keyColumn(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ? AND expires_at > ?", table, col)
	return r.scan(ctx, table, key, query, key, time.Now().Unix())
}

// Get returns the entry for key whether or not it has expired.
// Callers use it as a fallback when the upstream API is unreachable.
func (r *Repository) Get(ctx context.Context, table Table, key string) (json.RawMessage, error) {
	col, err := keyColumn(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", table, col)
	return r.scan(ctx, table, key, query, key)
}

func (r *Repository) scan(ctx context.Context, table Table, key, query string, args ...interface{}) (json.RawMessage, error) {
	var data string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s entry %s: %w", table, key, err)
	}
	return json.RawMessage(data), nil
}

// Delete removes the entry for key
func (r *Repository) Delete(ctx context.Context, table Table, key string) error {
	col, err := keyColumn(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, col)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s entry %s: %w", table, key, err)
	}
	return nil
}

// DeleteExpired removes expired entries from table and returns how many went
func (r *Repository) DeleteExpired(ctx context.Context, table Table) (int64, error) {
	if _, err := keyColumn(table); err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired %s entries: %w", table, err)
	}
	return result.RowsAffected()
}

// DeleteAllExpired runs DeleteExpired over AllTables.
// On error the counts gathered so far are returned alongside it.
func (r *Repository) DeleteAllExpired(ctx context.Context) (map[Table]int64, error) {
	results := make(map[Table]int64, len(AllTables))
	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(ctx, table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}
	return results, nil
}
