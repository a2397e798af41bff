package rebalancing

import (
	"context"
	"errors"

	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HistoryStore keeps a record of rebalance runs
type HistoryStore interface {
	Record(ctx context.Context, result *Result) error
	List(ctx context.Context, limit int) ([]RunSummary, error)
	Get(ctx context.Context, id string) (*Result, error)
}

// Service rebalances the live portfolio and records every run
type Service struct {
	portfolios *portfolio.Service
	rebalancer *Rebalancer
	history    HistoryStore
	events     *events.Manager
	log        zerolog.Logger
}

// NewService creates a new rebalancing service
func NewService(
	portfolios *portfolio.Service,
	rebalancer *Rebalancer,
	history HistoryStore,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios: portfolios,
		rebalancer: rebalancer,
		history:    history,
		events:     eventManager,
		log:        log.With().Str("service", "rebalancing").Logger(),
	}
}

// Rebalance moves the live portfolio toward targets (ticker → percent).
// A dry run works on a snapshot and changes nothing.
func (s *Service) Rebalance(ctx context.Context, targets map[string]float64, dryRun bool) (*Result, error) {
	runID := uuid.New()
	last := StateInitiated
	opts := Options{
		DryRun: dryRun,
		RunID:  runID,
		OnState: func(id uuid.UUID, state State) {
			last = state
			s.events.EmitTyped("rebalancing", &events.RebalanceStateChangedData{
				RunID: id.String(),
				State: string(state),
			})
		},
	}

	var result *Result
	var err error
	if dryRun {
		result, err = s.rebalancer.Rebalance(s.portfolios.Snapshot(), targets, opts)
	} else {
		err = s.portfolios.Update(ctx, func(p *portfolio.Portfolio) error {
			var rebalanceErr error
			result, rebalanceErr = s.rebalancer.Rebalance(p, targets, opts)
			return rebalanceErr
		})
	}

	if err != nil {
		s.log.Warn().Err(err).Str("run_id", runID.String()).Str("state", string(last)).Msg("Rebalance failed")
		s.events.EmitTyped("rebalancing", &events.RebalanceFailedData{
			RunID: runID.String(),
			State: string(last),
			Error: err.Error(),
		})
		return nil, err
	}

	if s.history != nil {
		if err := s.history.Record(ctx, result); err != nil {
			s.log.Error().Err(err).Str("run_id", result.ID).Msg("Failed to record rebalance history")
		}
	}

	if !dryRun {
		for _, record := range result.ExchangeHistory {
			s.events.EmitTyped("rebalancing", &events.CurrencyExchangedData{
				FromAmount:   record.FromAmount,
				FromCurrency: record.FromCurrency,
				ToAmount:     record.ToAmount,
				ToCurrency:   record.ToCurrency,
				Rate:         record.Rate,
			})
		}
	}
	s.events.EmitTyped("rebalancing", &events.RebalanceCompletedData{
		RunID:          result.ID,
		DryRun:         result.DryRun,
		CommonCurrency: result.CommonCurrency,
		NewUnits:       result.NewUnits,
		Exchanges:      len(result.ExchangeHistory),
		MaxDeviation:   result.MaxAllocationDeviation,
	})
	if !dryRun {
		s.events.EmitTyped("rebalancing", &events.PortfolioChangedData{
			Reason: "rebalance",
			Assets: len(result.Tickers),
			Pools:  len(result.RemainingCash),
		})
	}

	return result, nil
}

// ErrHistoryDisabled is returned by history queries when no store is configured
var ErrHistoryDisabled = errors.New("rebalance history is not configured")

// History lists recent runs
func (s *Service) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, limit)
}

// GetRun returns the full result of one run
func (s *Service) GetRun(ctx context.Context, id string) (*Result, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}
