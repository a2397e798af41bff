package portfolio

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
)

// Store persists portfolio state
type Store interface {
	Load(ctx context.Context, prices domain.PriceProvider, rates domain.RateProvider) (*Portfolio, error)
	Save(ctx context.Context, p *Portfolio) error
}

// Service owns the live portfolio and serializes every change to it.
//
// Changes are applied to a clone, persisted, then swapped in, so a failed
// change never leaves the live portfolio half-updated.
type Service struct {
	mu      sync.RWMutex
	current *Portfolio
	store   Store
	prices  domain.PriceProvider
	rates   domain.RateProvider
	events  *events.Manager
	log     zerolog.Logger
}

// NewService creates a new portfolio service holding an empty portfolio
func NewService(
	store Store,
	prices domain.PriceProvider,
	rates domain.RateProvider,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		current: New(prices, rates),
		store:   store,
		prices:  prices,
		rates:   rates,
		events:  eventManager,
		log:     log.With().Str("service", "portfolio").Logger(),
	}
}

// Init loads the stored portfolio as the live portfolio
func (s *Service) Init(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	loaded, err := s.store.Load(ctx, s.prices, s.rates)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.log.Info().
		Strs("tickers", loaded.Tickers()).
		Strs("currencies", loaded.CashCurrencies()).
		Msg("Portfolio loaded")
	return nil
}

// Snapshot returns an independent copy of the live portfolio
func (s *Service) Snapshot() *Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update runs fn against a copy of the live portfolio and, if it succeeds,
// persists the copy and makes it live. Updates never run concurrently.
func (s *Service) Update(ctx context.Context, fn func(p *Portfolio) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.current.Clone()
	if err := fn(working); err != nil {
		return err
	}

	if s.store != nil {
		if err := s.store.Save(ctx, working); err != nil {
			return err
		}
	}

	s.current.Replace(working)
	return nil
}

// AddCash deposits amount into the pool of currency
func (s *Service) AddCash(ctx context.Context, amount float64, currency string) (domain.Money, error) {
	var balance domain.Money
	err := s.Update(ctx, func(p *Portfolio) error {
		p.AddCash(amount, currency)
		balance = p.Cash(currency)
		return nil
	})
	if err != nil {
		return domain.Money{}, err
	}

	s.events.EmitTyped("portfolio", &events.CashUpdatedData{
		Currency: balance.Currency,
		Amount:   amount,
		Balance:  balance.Amount,
	})
	return balance, nil
}

// AddAsset starts tracking ticker (or adds to an existing holding)
func (s *Service) AddAsset(ctx context.Context, ticker string, quantity int) (Asset, error) {
	var asset Asset
	err := s.Update(ctx, func(p *Portfolio) error {
		if err := p.AddAsset(ticker, quantity); err != nil {
			return err
		}
		asset, _ = p.Asset(ticker)
		return nil
	})
	if err != nil {
		return Asset{}, err
	}

	s.events.EmitTyped("portfolio", &events.AssetAddedData{
		Ticker:   asset.Ticker,
		Quantity: asset.Quantity,
		Price:    asset.Price.Amount,
		Currency: asset.Price.Currency,
	})
	return asset, nil
}

// SetSellingAllowed updates whether rebalances may sell holdings
func (s *Service) SetSellingAllowed(ctx context.Context, allowed bool) error {
	err := s.Update(ctx, func(p *Portfolio) error {
		p.SetSellingAllowed(allowed)
		return nil
	})
	if err != nil {
		return err
	}

	s.events.EmitTyped("portfolio", &events.SettingsChangedData{
		Key:   settingSellingAllowed,
		Value: allowed,
	})
	return nil
}

// ExchangeCurrency converts cash between two pools of the live portfolio
func (s *Service) ExchangeCurrency(ctx context.Context, toCurrency, fromCurrency string, toAmount, fromAmount *float64) (domain.ExchangeRecord, error) {
	var record domain.ExchangeRecord
	err := s.Update(ctx, func(p *Portfolio) error {
		var err error
		record, err = p.ExchangeCurrency(toCurrency, fromCurrency, toAmount, fromAmount)
		return err
	})
	if err != nil {
		return domain.ExchangeRecord{}, err
	}

	s.events.EmitTyped("portfolio", &events.CurrencyExchangedData{
		FromAmount:   record.FromAmount,
		FromCurrency: record.FromCurrency,
		ToAmount:     record.ToAmount,
		ToCurrency:   record.ToCurrency,
		Rate:         record.Rate,
	})
	return record, nil
}

// Summary describes the live portfolio valued in its common currency
type Summary struct {
	CommonCurrency string             `json:"common_currency"`
	Assets         []Asset            `json:"assets"`
	Cash           []domain.Money     `json:"cash"`
	Allocation     map[string]float64 `json:"allocation"`
	MarketValue    float64            `json:"market_value"`
	CashValue      float64            `json:"cash_value"`
	TotalValue     float64            `json:"total_value"`
	SellingAllowed bool               `json:"selling_allowed"`
}

// GetSummary values the live portfolio in its common currency
func (s *Service) GetSummary() (Summary, error) {
	p := s.Snapshot()
	currency := p.CommonCurrency()

	allocation, err := p.AssetAllocation(currency)
	if err != nil {
		return Summary{}, err
	}
	market, err := p.MarketValue(currency)
	if err != nil {
		return Summary{}, err
	}
	cash, err := p.CashValue(currency)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		CommonCurrency: currency,
		Assets:         p.Assets(),
		Cash:           p.CashPools(),
		Allocation:     allocation,
		MarketValue:    market,
		CashValue:      cash,
		TotalValue:     market + cash,
		SellingAllowed: p.SellingAllowed(),
	}, nil
}
