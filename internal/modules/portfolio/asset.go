package portfolio

import (
	"fmt"

	"github.com/aristath/rebalancer/internal/domain"
)

// Asset is a holding of one traded instrument.
// The price is a snapshot taken when the asset was added.
type Asset struct {
	Ticker   string       `json:"ticker" msgpack:"ticker"`
	Quantity int          `json:"quantity" msgpack:"quantity"`
	Price    domain.Money `json:"price" msgpack:"price"`
}

// NewAsset looks up the current price of ticker and creates a holding of quantity units
func NewAsset(ticker string, quantity int, prices domain.PriceProvider) (*Asset, error) {
	if prices == nil {
		return nil, fmt.Errorf("%w: no price provider for %s", domain.ErrDataUnavailable, ticker)
	}
	price, err := prices.GetPrice(ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get price for %s: %w", ticker, err)
	}
	if price.Amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive price for %s: %v", domain.ErrDataUnavailable, ticker, price.Amount)
	}
	return &Asset{
		Ticker:   ticker,
		Quantity: quantity,
		Price:    domain.NewMoney(price.Amount, price.Currency),
	}, nil
}

// Currency returns the currency the asset trades in
func (a *Asset) Currency() string {
	return a.Price.Currency
}

// MarketValue returns quantity * price in the asset's own currency
func (a *Asset) MarketValue() domain.Money {
	return domain.Money{Amount: float64(a.Quantity) * a.Price.Amount, Currency: a.Price.Currency}
}

// MarketValueIn returns the market value converted into currency
func (a *Asset) MarketValueIn(currency string, rates domain.RateProvider) (float64, error) {
	value, err := a.MarketValue().AmountIn(currency, rates)
	if err != nil {
		return 0, fmt.Errorf("failed to value %s in %s: %w", a.Ticker, currency, err)
	}
	return value, nil
}

// PriceIn returns the unit price converted into currency
func (a *Asset) PriceIn(currency string, rates domain.RateProvider) (float64, error) {
	price, err := a.Price.AmountIn(currency, rates)
	if err != nil {
		return 0, fmt.Errorf("failed to price %s in %s: %w", a.Ticker, currency, err)
	}
	return price, nil
}

// CostOf returns the own-currency cost of trading units (negative for sales)
func (a *Asset) CostOf(units int) float64 {
	return float64(units) * a.Price.Amount
}

// Buy changes the quantity by units (negative sells) and returns the own-currency cost
func (a *Asset) Buy(units int) float64 {
	a.Quantity += units
	return a.CostOf(units)
}
