package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
)

// RateRefresher refreshes cached rates quoted against a base currency
type RateRefresher interface {
	Refresh(ctx context.Context, base string) (int, error)
}

// SyncRatesJob keeps the rate cache warm for every currency the portfolio uses
type SyncRatesJob struct {
	rates      RateRefresher
	currencies func() []string
	events     *events.Manager
	timeout    time.Duration
	log        zerolog.Logger
}

// NewSyncRatesJob creates a job refreshing rates for the currencies returned by currencies
func NewSyncRatesJob(rates RateRefresher, currencies func() []string, eventManager *events.Manager, log zerolog.Logger) *SyncRatesJob {
	return &SyncRatesJob{
		rates:      rates,
		currencies: currencies,
		events:     eventManager,
		timeout:    time.Minute,
		log:        log.With().Str("job", "sync_rates").Logger(),
	}
}

// Name returns the job name
func (j *SyncRatesJob) Name() string {
	return "sync_rates"
}

// Run refreshes each base currency. It fails only when every refresh fails.
func (j *SyncRatesJob) Run() error {
	currencies := j.currencies()
	if len(currencies) < 2 {
		j.log.Debug().Strs("currencies", currencies).Msg("Nothing to sync")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	pairs, failures := 0, 0
	var lastErr error
	for _, base := range currencies {
		n, err := j.rates.Refresh(ctx, base)
		if err != nil {
			failures++
			lastErr = err
			j.log.Warn().Err(err).Str("base", base).Msg("Failed to refresh rates")
			continue
		}
		pairs += n
	}

	j.events.EmitTyped("scheduler", &events.RatesSyncedData{Pairs: pairs, Errors: failures})

	if failures == len(currencies) {
		return fmt.Errorf("all %d rate refreshes failed: %w", failures, lastErr)
	}
	j.log.Info().Int("pairs", pairs).Int("errors", failures).Msg("Rates synced")
	return nil
}
