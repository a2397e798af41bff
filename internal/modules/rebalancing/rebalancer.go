// Package rebalancing moves a portfolio toward a target allocation: it
// optimizes purchase values, resolves them into whole units, settles the
// required currencies and executes the trades on a copy before committing.
package rebalancing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// TargetSumTolerance is how far target percentages may sum from 100
	TargetSumTolerance = 0.01
	// FundsTolerance is how far below zero a pool may end after settlement
	FundsTolerance = 0.01
)

// State is a stage of a rebalance run
type State string

const (
	StateInitiated     State = "INITIATED"
	StateValidated     State = "VALIDATED"
	StateSnapshotted   State = "SNAPSHOTTED"
	StateOptimized     State = "OPTIMIZED"
	StateUnitsResolved State = "UNITS_RESOLVED"
	StateSettled       State = "SETTLED"
	StateCommitted     State = "COMMITTED"
)

// Optimizer finds per-asset purchase values; see optimization.RebalanceOptimizer
type Optimizer interface {
	Optimize(current, target []float64, totalCash float64) ([]float64, error)
}

// Options controls a single rebalance run
type Options struct {
	// DryRun computes the full result without committing it
	DryRun bool
	// RunID identifies the run; a new one is generated when zero
	RunID uuid.UUID
	// OnState is called on every state transition
	OnState func(runID uuid.UUID, state State)
}

// Result describes a rebalance run
type Result struct {
	ID             string    `json:"id" msgpack:"id"`
	CreatedAt      time.Time `json:"created_at" msgpack:"created_at"`
	DryRun         bool      `json:"dry_run" msgpack:"dry_run"`
	CommonCurrency string    `json:"common_currency" msgpack:"common_currency"`
	// Tickers in portfolio order
	Tickers []string `json:"tickers" msgpack:"tickers"`

	NewUnits        map[string]int          `json:"new_units" msgpack:"new_units"`
	Prices          map[string]domain.Money `json:"prices" msgpack:"prices"`
	Cost            map[string]float64      `json:"cost" msgpack:"cost"`
	CurrencyCost    []CurrencyCost          `json:"currency_cost" msgpack:"currency_cost"`
	ExchangeHistory []domain.ExchangeRecord `json:"exchange_history" msgpack:"exchange_history"`

	MaxAllocationDeviation float64            `json:"max_allocation_deviation" msgpack:"max_allocation_deviation"`
	OldAllocation          map[string]float64 `json:"old_allocation" msgpack:"old_allocation"`
	NewAllocation          map[string]float64 `json:"new_allocation" msgpack:"new_allocation"`
	TargetAllocation       map[string]float64 `json:"target_allocation" msgpack:"target_allocation"`

	RemainingCash []domain.Money `json:"remaining_cash" msgpack:"remaining_cash"`
	ValueBefore   float64        `json:"value_before" msgpack:"value_before"`
	ValueAfter    float64        `json:"value_after" msgpack:"value_after"`
}

// Rebalancer runs the rebalance state machine against a portfolio
type Rebalancer struct {
	optimizer Optimizer
	log       zerolog.Logger
}

// NewRebalancer creates a new rebalancer
func NewRebalancer(optimizer Optimizer, log zerolog.Logger) *Rebalancer {
	return &Rebalancer{
		optimizer: optimizer,
		log:       log.With().Str("component", "rebalancer").Logger(),
	}
}

// ReindexTargets returns target percentages in the order of tickers.
// The key set must match tickers exactly and the values must sum to 100.
func ReindexTargets(tickers []string, targets map[string]float64) ([]float64, error) {
	held := make(map[string]bool, len(tickers))
	var missing []string
	ordered := make([]float64, len(tickers))
	sum := 0.0

	for i, ticker := range tickers {
		held[ticker] = true
		pct, ok := targets[ticker]
		if !ok {
			missing = append(missing, ticker)
			continue
		}
		if pct < 0 || math.IsNaN(pct) {
			return nil, fmt.Errorf("%w: target for %s must be non-negative, got %v", domain.ErrValidation, ticker, pct)
		}
		ordered[i] = pct
		sum += pct
	}

	var unexpected []string
	for ticker := range targets {
		if !held[ticker] {
			unexpected = append(unexpected, ticker)
		}
	}
	sort.Strings(unexpected)

	if len(missing) > 0 || len(unexpected) > 0 {
		return nil, fmt.Errorf("%w: target tickers do not match holdings (missing: [%s], not held: [%s])",
			domain.ErrValidation, strings.Join(missing, ", "), strings.Join(unexpected, ", "))
	}
	if math.Abs(sum-100) > TargetSumTolerance {
		return nil, fmt.Errorf("%w: target allocation sums to %.4f%%, expected 100%%", domain.ErrValidation, sum)
	}

	return ordered, nil
}

// Rebalance moves p toward targets (ticker → percent). All work happens on
// a copy; p is replaced in one assignment only when the run commits, and is
// left untouched on any error or in a dry run.
func (r *Rebalancer) Rebalance(p *portfolio.Portfolio, targets map[string]float64, opts Options) (*Result, error) {
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	log := r.log.With().Str("run_id", runID.String()).Bool("dry_run", opts.DryRun).Logger()
	transition := func(state State) {
		log.Debug().Str("state", string(state)).Msg("Rebalance state")
		if opts.OnState != nil {
			opts.OnState(runID, state)
		}
	}

	transition(StateInitiated)

	tickers := p.Tickers()
	percentages, err := ReindexTargets(tickers, targets)
	if err != nil {
		return nil, err
	}
	fractions := make([]float64, len(percentages))
	for i, pct := range percentages {
		fractions[i] = pct / 100.0
	}
	transition(StateValidated)

	work := p.Clone()
	common := work.CommonCurrency()
	if work.SellingAllowed() {
		work.SellEverything()
	}
	if err := work.CombineCash(common); err != nil {
		return nil, err
	}
	totalCash := work.Cash(common).Amount
	current := make([]float64, len(tickers))
	for i, asset := range work.Assets() {
		if current[i], err = asset.MarketValueIn(common, work.Rates()); err != nil {
			return nil, err
		}
	}
	transition(StateSnapshotted)

	solution, err := r.optimizer.Optimize(current, fractions, totalCash)
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}
	transition(StateOptimized)

	plan, err := ResolveUnits(p, solution, common)
	if err != nil {
		return nil, err
	}
	transition(StateUnitsResolved)

	work.RestoreFrom(p)
	settlement, err := SmartExchange(work, plan.CurrencyCost, log)
	if err != nil {
		return nil, fmt.Errorf("settlement failed: %w", err)
	}
	for _, ticker := range tickers {
		if _, err := work.BuyAsset(ticker, plan.NewUnits[ticker]); err != nil {
			return nil, err
		}
	}
	transition(StateSettled)

	result, err := r.buildResult(runID, p, work, common, tickers, percentages, plan, settlement)
	if err != nil {
		return nil, err
	}
	result.DryRun = opts.DryRun

	var overdrawn []string
	for _, pool := range work.CashPools() {
		if pool.Amount < -FundsTolerance {
			overdrawn = append(overdrawn, pool.String())
		}
	}
	if len(overdrawn) > 0 {
		if !settlement.Funded() {
			return nil, fmt.Errorf("%w: settlement leaves %s (unfunded %s)",
				domain.ErrInsufficientFunds, strings.Join(overdrawn, ", "), settlement)
		}
		return nil, fmt.Errorf("%w: settlement leaves %s", domain.ErrInsufficientFunds, strings.Join(overdrawn, ", "))
	}

	if opts.DryRun {
		log.Info().Float64("max_deviation", result.MaxAllocationDeviation).Msg("Dry-run rebalance computed")
		return result, nil
	}

	p.Replace(work)
	transition(StateCommitted)

	log.Info().
		Str("common_currency", common).
		Int("exchanges", len(result.ExchangeHistory)).
		Float64("max_deviation", result.MaxAllocationDeviation).
		Msg("Rebalance committed")

	return result, nil
}

func (r *Rebalancer) buildResult(
	runID uuid.UUID,
	before, after *portfolio.Portfolio,
	common string,
	tickers []string,
	percentages []float64,
	plan UnitPlan,
	settlement Settlement,
) (*Result, error) {
	oldAllocation, err := before.AssetAllocation(common)
	if err != nil {
		return nil, err
	}
	newAllocation, err := after.AssetAllocation(common)
	if err != nil {
		return nil, err
	}
	valueBefore, err := before.Value(common)
	if err != nil {
		return nil, err
	}
	valueAfter, err := after.Value(common)
	if err != nil {
		return nil, err
	}

	targetAllocation := make(map[string]float64, len(tickers))
	prices := make(map[string]domain.Money, len(tickers))
	maxDeviation := 0.0
	for i, ticker := range tickers {
		targetAllocation[ticker] = percentages[i]
		maxDeviation = math.Max(maxDeviation, math.Abs(newAllocation[ticker]-percentages[i]))
		asset, _ := after.Asset(ticker)
		prices[ticker] = asset.Price
	}

	exchanges := settlement.Exchanges
	if exchanges == nil {
		exchanges = []domain.ExchangeRecord{}
	}

	return &Result{
		ID:                     runID.String(),
		CreatedAt:              time.Now().UTC(),
		CommonCurrency:         common,
		Tickers:                tickers,
		NewUnits:               plan.NewUnits,
		Prices:                 prices,
		Cost:                   plan.Cost,
		CurrencyCost:           plan.CurrencyCost,
		ExchangeHistory:        exchanges,
		MaxAllocationDeviation: maxDeviation,
		OldAllocation:          oldAllocation,
		NewAllocation:          newAllocation,
		TargetAllocation:       targetAllocation,
		RemainingCash:          after.CashPools(),
		ValueBefore:            valueBefore,
		ValueAfter:             valueAfter,
	}, nil
}
