// Package portfolio provides the portfolio aggregate: assets, cash pools,
// valuation and the currency exchange primitive.
package portfolio

import (
	"fmt"

	"github.com/aristath/rebalancer/internal/domain"
)

// DefaultCommonCurrency is the valuation currency used when the portfolio holds
// neither cash nor assets to pick one from.
const DefaultCommonCurrency = "CAD"

// Portfolio owns a set of assets and a set of cash pools, both kept in
// insertion order. It is not safe for concurrent mutation.
type Portfolio struct {
	assets     map[string]*Asset
	assetOrder []string

	cash      map[string]domain.Money
	cashOrder []string

	sellingAllowed bool

	prices domain.PriceProvider
	rates  domain.RateProvider
}

// New creates an empty portfolio using the given market data collaborators
func New(prices domain.PriceProvider, rates domain.RateProvider) *Portfolio {
	return &Portfolio{
		assets: make(map[string]*Asset),
		cash:   make(map[string]domain.Money),
		prices: prices,
		rates:  rates,
	}
}

// Rates returns the rate provider used for conversions
func (p *Portfolio) Rates() domain.RateProvider {
	return p.rates
}

// Prices returns the price provider used when adding assets
func (p *Portfolio) Prices() domain.PriceProvider {
	return p.prices
}

// SellingAllowed reports whether a rebalance may sell holdings
func (p *Portfolio) SellingAllowed() bool {
	return p.sellingAllowed
}

// SetSellingAllowed toggles whether a rebalance may sell holdings
func (p *Portfolio) SetSellingAllowed(allowed bool) {
	p.sellingAllowed = allowed
}

// AddCash adds amount to the pool of currency, creating the pool if needed.
// Adding to an existing pool accumulates rather than replacing.
func (p *Portfolio) AddCash(amount float64, currency string) {
	currency = domain.NormalizeCurrency(currency)
	p.ensurePool(currency)
	p.cash[currency] = p.cash[currency].Add(amount)
}

// AddCashPools adds several cash amounts at once; amounts[i] is in currencies[i]
func (p *Portfolio) AddCashPools(amounts []float64, currencies []string) error {
	if len(amounts) != len(currencies) {
		return fmt.Errorf("%w: %d amounts for %d currencies", domain.ErrValidation, len(amounts), len(currencies))
	}
	for i := range amounts {
		p.AddCash(amounts[i], currencies[i])
	}
	return nil
}

// AddAsset starts tracking ticker with a freshly fetched price snapshot.
// Adding a ticker that is already held increases its quantity and refreshes its price.
func (p *Portfolio) AddAsset(ticker string, quantity int) error {
	asset, err := NewAsset(ticker, quantity, p.prices)
	if err != nil {
		return err
	}
	if existing, ok := p.assets[ticker]; ok {
		existing.Quantity += quantity
		existing.Price = asset.Price
		return nil
	}
	p.PutAsset(*asset)
	return nil
}

// AddAssets adds several holdings at once; quantities[i] belongs to tickers[i]
func (p *Portfolio) AddAssets(tickers []string, quantities []int) error {
	if len(tickers) != len(quantities) {
		return fmt.Errorf("%w: %d tickers for %d quantities", domain.ErrValidation, len(tickers), len(quantities))
	}
	for i := range tickers {
		if err := p.AddAsset(tickers[i], quantities[i]); err != nil {
			return err
		}
	}
	return nil
}

// PutAsset stores a prepared asset as-is, replacing any holding with the same ticker
func (p *Portfolio) PutAsset(asset Asset) {
	asset.Price = domain.NewMoney(asset.Price.Amount, asset.Price.Currency)
	if _, ok := p.assets[asset.Ticker]; !ok {
		p.assetOrder = append(p.assetOrder, asset.Ticker)
	}
	p.assets[asset.Ticker] = &asset
}

// Tickers returns the held tickers in insertion order
func (p *Portfolio) Tickers() []string {
	out := make([]string, len(p.assetOrder))
	copy(out, p.assetOrder)
	return out
}

// Asset returns a copy of the holding for ticker
func (p *Portfolio) Asset(ticker string) (Asset, bool) {
	asset, ok := p.assets[ticker]
	if !ok {
		return Asset{}, false
	}
	return *asset, true
}

// Assets returns copies of all holdings in insertion order
func (p *Portfolio) Assets() []Asset {
	out := make([]Asset, 0, len(p.assetOrder))
	for _, ticker := range p.assetOrder {
		out = append(out, *p.assets[ticker])
	}
	return out
}

// CashCurrencies returns the currencies of the cash pools in insertion order
func (p *Portfolio) CashCurrencies() []string {
	out := make([]string, len(p.cashOrder))
	copy(out, p.cashOrder)
	return out
}

// Cash returns the pool for currency; a missing pool reads as zero
func (p *Portfolio) Cash(currency string) domain.Money {
	currency = domain.NormalizeCurrency(currency)
	if pool, ok := p.cash[currency]; ok {
		return pool
	}
	return domain.Money{Currency: currency}
}

// CashPools returns every cash pool in insertion order
func (p *Portfolio) CashPools() []domain.Money {
	out := make([]domain.Money, 0, len(p.cashOrder))
	for _, currency := range p.cashOrder {
		out = append(out, p.cash[currency])
	}
	return out
}

// Currencies returns every currency the portfolio touches: cash pools first,
// then asset currencies not already seen.
func (p *Portfolio) Currencies() []string {
	seen := make(map[string]bool, len(p.cashOrder))
	out := make([]string, 0, len(p.cashOrder)+len(p.assetOrder))
	for _, c := range p.cashOrder {
		seen[c] = true
		out = append(out, c)
	}
	for _, ticker := range p.assetOrder {
		c := p.assets[ticker].Currency()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// CommonCurrency picks the valuation pivot: the first cash currency, else the
// first asset's currency, else DefaultCommonCurrency.
func (p *Portfolio) CommonCurrency() string {
	if len(p.cashOrder) > 0 {
		return p.cashOrder[0]
	}
	if len(p.assetOrder) > 0 {
		return p.assets[p.assetOrder[0]].Currency()
	}
	return DefaultCommonCurrency
}

// MarketValue returns the total value of all holdings in currency
func (p *Portfolio) MarketValue(currency string) (float64, error) {
	total := 0.0
	for _, ticker := range p.assetOrder {
		value, err := p.assets[ticker].MarketValueIn(currency, p.rates)
		if err != nil {
			return 0, err
		}
		total += value
	}
	return total, nil
}

// CashValue returns the total value of all cash pools in currency
func (p *Portfolio) CashValue(currency string) (float64, error) {
	total := 0.0
	for _, c := range p.cashOrder {
		value, err := p.cash[c].AmountIn(currency, p.rates)
		if err != nil {
			return 0, fmt.Errorf("failed to value %s cash in %s: %w", c, currency, err)
		}
		total += value
	}
	return total, nil
}

// Value returns market value plus cash value in currency
func (p *Portfolio) Value(currency string) (float64, error) {
	market, err := p.MarketValue(currency)
	if err != nil {
		return 0, err
	}
	cash, err := p.CashValue(currency)
	if err != nil {
		return 0, err
	}
	return market + cash, nil
}

// AssetAllocation returns each holding's share of total market value in percent.
// When the holdings are worth nothing every share is zero.
func (p *Portfolio) AssetAllocation(currency string) (map[string]float64, error) {
	values := make(map[string]float64, len(p.assetOrder))
	total := 0.0
	for _, ticker := range p.assetOrder {
		value, err := p.assets[ticker].MarketValueIn(currency, p.rates)
		if err != nil {
			return nil, err
		}
		values[ticker] = value
		total += value
	}

	allocation := make(map[string]float64, len(values))
	for ticker, value := range values {
		if total <= 0 {
			allocation[ticker] = 0
			continue
		}
		allocation[ticker] = value / total * 100.0
	}
	return allocation, nil
}

// ExchangeCurrency converts cash between two pools. Exactly one of toAmount
// and fromAmount must be given; the other side is derived from rate(from, to).
// Missing pools are created with a zero balance.
func (p *Portfolio) ExchangeCurrency(toCurrency, fromCurrency string, toAmount, fromAmount *float64) (domain.ExchangeRecord, error) {
	if (toAmount == nil) == (fromAmount == nil) {
		return domain.ExchangeRecord{}, fmt.Errorf("%w: exactly one of to_amount and from_amount is required", domain.ErrAmbiguousArgument)
	}

	to := domain.NormalizeCurrency(toCurrency)
	from := domain.NormalizeCurrency(fromCurrency)

	rate := 1.0
	if to != from {
		if p.rates == nil {
			return domain.ExchangeRecord{}, fmt.Errorf("%w: no rate provider for %s->%s", domain.ErrDataUnavailable, from, to)
		}
		r, err := p.rates.GetRate(from, to)
		if err != nil {
			return domain.ExchangeRecord{}, fmt.Errorf("%w: rate %s->%s: %v", domain.ErrDataUnavailable, from, to, err)
		}
		if !domain.ValidRate(r) {
			return domain.ExchangeRecord{}, fmt.Errorf("%w: invalid rate %s->%s: %v", domain.ErrDataUnavailable, from, to, r)
		}
		rate = r
	}

	var spent, received float64
	if toAmount != nil {
		received = *toAmount
		spent = received / rate
	} else {
		spent = *fromAmount
		received = spent * rate
	}

	p.ensurePool(to)
	p.ensurePool(from)
	// Same pool: the credit and debit cancel exactly
	if to != from {
		p.cash[to] = p.cash[to].Add(received)
		p.cash[from] = p.cash[from].Add(-spent)
	}

	return domain.ExchangeRecord{
		FromAmount:   spent,
		FromCurrency: from,
		ToAmount:     received,
		ToCurrency:   to,
		Rate:         rate,
	}, nil
}

// SellEverything liquidates every holding into the pool of its own currency
func (p *Portfolio) SellEverything() {
	for _, ticker := range p.assetOrder {
		asset := p.assets[ticker]
		proceeds := -asset.Buy(-asset.Quantity)
		p.AddCash(proceeds, asset.Currency())
	}
}

// CombineCash collapses every pool into a single pool of currency.
// No exchange records are produced; the result is a valuation view.
func (p *Portfolio) CombineCash(currency string) error {
	currency = domain.NormalizeCurrency(currency)
	total, err := p.CashValue(currency)
	if err != nil {
		return err
	}
	p.cash = map[string]domain.Money{currency: {Amount: total, Currency: currency}}
	p.cashOrder = []string{currency}
	return nil
}

// BuyAsset trades units of ticker (negative sells) at its own-currency price
// and settles the cost against the pool of that currency.
func (p *Portfolio) BuyAsset(ticker string, units int) (float64, error) {
	asset, ok := p.assets[ticker]
	if !ok {
		return 0, fmt.Errorf("%w: asset %s", domain.ErrNotFound, ticker)
	}
	cost := asset.Buy(units)
	p.AddCash(-cost, asset.Currency())
	return cost, nil
}

// Clone returns a fully independent copy
func (p *Portfolio) Clone() *Portfolio {
	c := &Portfolio{
		assets:         make(map[string]*Asset, len(p.assets)),
		assetOrder:     make([]string, len(p.assetOrder)),
		cash:           make(map[string]domain.Money, len(p.cash)),
		cashOrder:      make([]string, len(p.cashOrder)),
		sellingAllowed: p.sellingAllowed,
		prices:         p.prices,
		rates:          p.rates,
	}
	copy(c.assetOrder, p.assetOrder)
	copy(c.cashOrder, p.cashOrder)
	for ticker, asset := range p.assets {
		a := *asset
		c.assets[ticker] = &a
	}
	for currency, pool := range p.cash {
		c.cash[currency] = pool
	}
	return c
}

// RestoreFrom resets cash pools and holdings to copies of other's
func (p *Portfolio) RestoreFrom(other *Portfolio) {
	snapshot := other.Clone()
	p.assets = snapshot.assets
	p.assetOrder = snapshot.assetOrder
	p.cash = snapshot.cash
	p.cashOrder = snapshot.cashOrder
}

// Replace swaps in the whole state of other in one assignment
func (p *Portfolio) Replace(other *Portfolio) {
	*p = *other
}

func (p *Portfolio) ensurePool(currency string) {
	if _, ok := p.cash[currency]; ok {
		return
	}
	p.cash[currency] = domain.Money{Currency: currency}
	p.cashOrder = append(p.cashOrder, currency)
}
