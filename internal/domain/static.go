package domain

import (
	"fmt"
	"sort"
	"sync"
)

// StaticRates is an in-memory rate table. Missing pairs are derived from the
// inverse pair or, failing that, through a single pivot currency.
type StaticRates struct {
	mu    sync.RWMutex
	rates map[string]float64
}

// NewStaticRates creates a rate table from "FROM:TO" -> rate entries
func NewStaticRates(rates map[string]float64) *StaticRates {
	s := &StaticRates{rates: make(map[string]float64, len(rates))}
	for pair, rate := range rates {
		s.rates[pair] = rate
	}
	return s
}

func pairKey(from, to string) string {
	return from + ":" + to
}

// Set stores the rate for a currency pair
func (s *StaticRates) Set(fromCurrency, toCurrency string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pairKey(NormalizeCurrency(fromCurrency), NormalizeCurrency(toCurrency))] = rate
}

// GetRate implements RateProvider
func (s *StaticRates) GetRate(fromCurrency, toCurrency string) (float64, error) {
	from := NormalizeCurrency(fromCurrency)
	to := NormalizeCurrency(toCurrency)
	if from == to {
		return 1.0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rate, ok := s.direct(from, to); ok {
		return rate, nil
	}

	for _, pivot := range s.currencies() {
		if pivot == from || pivot == to {
			continue
		}
		first, ok := s.direct(from, pivot)
		if !ok {
			continue
		}
		second, ok := s.direct(pivot, to)
		if !ok {
			continue
		}
		return first * second, nil
	}

	return 0, fmt.Errorf("%w: no rate for %s->%s", ErrDataUnavailable, from, to)
}

func (s *StaticRates) direct(from, to string) (float64, bool) {
	if rate, ok := s.rates[pairKey(from, to)]; ok && ValidRate(rate) {
		return rate, true
	}
	if rate, ok := s.rates[pairKey(to, from)]; ok && ValidRate(rate) {
		return 1.0 / rate, true
	}
	return 0, false
}

// currencies lists every currency in the table in sorted order
func (s *StaticRates) currencies() []string {
	seen := make(map[string]bool)
	for pair := range s.rates {
		for i := 0; i < len(pair); i++ {
			if pair[i] == ':' {
				seen[pair[:i]] = true
				seen[pair[i+1:]] = true
				break
			}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// StaticPrices is an in-memory price table keyed by ticker
type StaticPrices map[string]Money

// GetPrice implements PriceProvider
func (p StaticPrices) GetPrice(ticker string) (Money, error) {
	price, ok := p[ticker]
	if !ok {
		return Money{}, fmt.Errorf("%w: no price for %s", ErrDataUnavailable, ticker)
	}
	return NewMoney(price.Amount, price.Currency), nil
}
