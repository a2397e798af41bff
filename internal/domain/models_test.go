package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		expected Money
	}{
		{
			name:     "upper case currency",
			amount:   100.50,
			currency: "CAD",
			expected: Money{Amount: 100.50, Currency: "CAD"},
		},
		{
			name:     "lower case currency is normalized",
			amount:   20.4,
			currency: "cad",
			expected: Money{Amount: 20.4, Currency: "CAD"},
		},
		{
			name:     "padded currency is trimmed",
			amount:   0,
			currency: " usd ",
			expected: Money{Amount: 0, Currency: "USD"},
		},
		{
			name:     "negative amount",
			amount:   -10.0,
			currency: "gbp",
			expected: Money{Amount: -10.0, Currency: "GBP"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewMoney(tt.amount, tt.currency))
		})
	}
}

func TestMoney_In_IdentitySkipsLookup(t *testing.T) {
	called := false
	rates := RateProviderFunc(func(from, to string) (float64, error) {
		called = true
		return 2, nil
	})

	converted, err := NewMoney(42, "usd").In("USD", rates)

	require.NoError(t, err)
	assert.False(t, called, "identity conversion must not call the rate provider")
	assert.Equal(t, 42.0, converted.Amount)
}

func TestMoney_In_UsesRate(t *testing.T) {
	rates := NewStaticRates(map[string]float64{"USD:CAD": 1.35})

	converted, err := NewMoney(100, "USD").In("cad", rates)

	require.NoError(t, err)
	assert.Equal(t, "CAD", converted.Currency)
	assert.InDelta(t, 135.0, converted.Amount, 1e-9)
}

func TestMoney_In_Errors(t *testing.T) {
	_, err := NewMoney(1, "USD").In("CAD", nil)
	assert.True(t, errors.Is(err, ErrDataUnavailable))

	failing := RateProviderFunc(func(from, to string) (float64, error) {
		return 0, errors.New("boom")
	})
	_, err = NewMoney(1, "USD").In("CAD", failing)
	assert.True(t, errors.Is(err, ErrDataUnavailable))

	for _, bad := range []float64{0, -1.2, math.NaN(), math.Inf(1), math.Inf(-1)} {
		rate := bad
		provider := RateProviderFunc(func(from, to string) (float64, error) { return rate, nil })
		_, err = NewMoney(1, "USD").In("CAD", provider)
		assert.True(t, errors.Is(err, ErrDataUnavailable), "rate %v", rate)
	}
}

func TestValidRate(t *testing.T) {
	assert.True(t, ValidRate(1.35))
	assert.True(t, ValidRate(1e-9))
	assert.False(t, ValidRate(0))
	assert.False(t, ValidRate(-1))
	assert.False(t, ValidRate(math.NaN()))
	assert.False(t, ValidRate(math.Inf(1)))
}

func TestStaticRates_Derivation(t *testing.T) {
	rates := NewStaticRates(map[string]float64{
		"USD:CAD": 1.25,
		"GBP:CAD": 1.75,
	})

	direct, err := rates.GetRate("USD", "CAD")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, direct, 1e-12)

	inverse, err := rates.GetRate("CAD", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, inverse, 1e-12)

	pivot, err := rates.GetRate("GBP", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 1.75/1.25, pivot, 1e-12)

	identity, err := rates.GetRate("eur", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1.0, identity)

	_, err = rates.GetRate("JPY", "CAD")
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestStaticPrices(t *testing.T) {
	prices := StaticPrices{"VCN.TO": {Amount: 33.5, Currency: "cad"}}

	price, err := prices.GetPrice("VCN.TO")
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 33.5, Currency: "CAD"}, price)

	_, err = prices.GetPrice("NOPE")
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}
