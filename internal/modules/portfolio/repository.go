package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
)

const settingSellingAllowed = "selling_allowed"

// Repository persists portfolio state between runs
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Load reads the stored portfolio. Holdings keep their stored price snapshot
// and the stored insertion order of assets and cash pools.
func (r *Repository) Load(ctx context.Context, prices domain.PriceProvider, rates domain.RateProvider) (*Portfolio, error) {
	p := New(prices, rates)

	rows, err := r.db.QueryContext(ctx,
		`SELECT currency, amount FROM portfolio_cash ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash pools: %w", err)
	}
	for rows.Next() {
		var currency string
		var amount float64
		if err := rows.Scan(&currency, &amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cash pool: %w", err)
		}
		p.AddCash(amount, currency)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating cash pools: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx,
		`SELECT ticker, quantity, price, currency FROM portfolio_assets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var asset Asset
		var price float64
		var currency string
		if err := rows.Scan(&asset.Ticker, &asset.Quantity, &price, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		asset.Price = domain.NewMoney(price, currency)
		p.PutAsset(asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	var value string
	err = r.db.QueryRowContext(ctx,
		`SELECT value FROM portfolio_settings WHERE key = ?`, settingSellingAllowed).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	default:
		allowed, parseErr := strconv.ParseBool(value)
		if parseErr != nil {
			r.log.Warn().Str("value", value).Msg("Ignoring malformed selling_allowed setting")
		}
		p.SetSellingAllowed(allowed)
	}

	r.log.Debug().
		Int("assets", len(p.Tickers())).
		Int("cash_pools", len(p.CashCurrencies())).
		Msg("Loaded portfolio")

	return p, nil
}

// Save replaces the stored portfolio with p in a single transaction
func (r *Repository) Save(ctx context.Context, p *Portfolio) error {
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio_assets`); err != nil {
			return fmt.Errorf("failed to clear assets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio_cash`); err != nil {
			return fmt.Errorf("failed to clear cash pools: %w", err)
		}

		for i, asset := range p.Assets() {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO portfolio_assets (ticker, position, quantity, price, currency, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				asset.Ticker, i, asset.Quantity, asset.Price.Amount, asset.Price.Currency, now)
			if err != nil {
				return fmt.Errorf("failed to insert asset %s: %w", asset.Ticker, err)
			}
		}

		for i, pool := range p.CashPools() {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO portfolio_cash (currency, position, amount, updated_at) VALUES (?, ?, ?, ?)`,
				pool.Currency, i, pool.Amount, now)
			if err != nil {
				return fmt.Errorf("failed to insert cash pool %s: %w", pool.Currency, err)
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO portfolio_settings (key, value) VALUES (?, ?)`,
			settingSellingAllowed, strconv.FormatBool(p.SellingAllowed()))
		if err != nil {
			return fmt.Errorf("failed to store settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}

	r.log.Debug().
		Int("assets", len(p.Tickers())).
		Int("cash_pools", len(p.CashCurrencies())).
		Msg("Saved portfolio")
	return nil
}
