// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// Money represents a monetary value with currency.
// It is a value type: changing an amount means replacing the value.
type Money struct {
	Amount   float64 `json:"amount" msgpack:"amount"`
	Currency string  `json:"currency" msgpack:"currency"`
}

// NewMoney creates a new Money value with a normalized currency code
func NewMoney(amount float64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: NormalizeCurrency(currency),
	}
}

// NormalizeCurrency returns the upper-case form of a currency code
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// In converts the value into the given currency.
// Converting into its own currency is the identity and never consults rates.
func (m Money) In(currency string, rates RateProvider) (Money, error) {
	currency = NormalizeCurrency(currency)
	if currency == m.Currency {
		return m, nil
	}
	if rates == nil {
		return Money{}, fmt.Errorf("%w: no rate provider for %s->%s", ErrDataUnavailable, m.Currency, currency)
	}

	rate, err := rates.GetRate(m.Currency, currency)
	if err != nil {
		return Money{}, fmt.Errorf("%w: rate %s->%s: %v", ErrDataUnavailable, m.Currency, currency, err)
	}
	if !ValidRate(rate) {
		return Money{}, fmt.Errorf("%w: invalid rate %s->%s: %v", ErrDataUnavailable, m.Currency, currency, rate)
	}

	return Money{Amount: m.Amount * rate, Currency: currency}, nil
}

// ValidRate reports whether rate is a finite positive number
func ValidRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0) && !math.IsNaN(rate)
}

// AmountIn is a shorthand for In(...).Amount
func (m Money) AmountIn(currency string, rates RateProvider) (float64, error) {
	converted, err := m.In(currency, rates)
	if err != nil {
		return 0, err
	}
	return converted.Amount, nil
}

// Add returns a copy with amount added
func (m Money) Add(amount float64) Money {
	return Money{Amount: m.Amount + amount, Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Amount, m.Currency)
}

// ExchangeRecord is an immutable log entry of one currency conversion
type ExchangeRecord struct {
	FromAmount   float64 `json:"from_amount" msgpack:"from_amount"`
	FromCurrency string  `json:"from_currency" msgpack:"from_currency"`
	ToAmount     float64 `json:"to_amount" msgpack:"to_amount"`
	ToCurrency   string  `json:"to_currency" msgpack:"to_currency"`
	Rate         float64 `json:"rate" msgpack:"rate"`
}

func (r ExchangeRecord) String() string {
	return fmt.Sprintf("%.2f %s -> %.2f %s (rate %.6f)", r.FromAmount, r.FromCurrency, r.ToAmount, r.ToCurrency, r.Rate)
}
