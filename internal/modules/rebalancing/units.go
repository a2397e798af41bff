package rebalancing

import (
	"fmt"
	"math"

	"github.com/aristath/rebalancer/internal/modules/portfolio"
)

// floorEpsilon absorbs float noise such as 2.9999999999 units
const floorEpsilon = 1e-9

// CurrencyCost is the amount to be paid in one currency
type CurrencyCost struct {
	Currency string  `json:"currency" msgpack:"currency"`
	Amount   float64 `json:"amount" msgpack:"amount"`
}

// UnitPlan is the integer trade list derived from the optimizer's solution
type UnitPlan struct {
	NewUnits map[string]int
	// Cost per ticker in the asset's own currency (negative for sales)
	Cost map[string]float64
	// CurrencyCost totals Cost per currency, ordered by first appearance
	// in the portfolio's asset order
	CurrencyCost []CurrencyCost
}

// ResolveUnitCount turns a target purchase value into whole units.
//
// Without selling the absolute target is floored. With selling the delta
// against the current holding is floored, so a target within one unit
// above the current value trades nothing. Prices ≤ 0 resolve to zero.
func ResolveUnitCount(targetValue, currentValue, price float64, sellingAllowed bool) int {
	if !(price > 0) {
		return 0
	}

	value := targetValue
	if sellingAllowed {
		value = targetValue - currentValue
	}

	units := value / price
	units = math.Floor(units + floorEpsilon*math.Max(1, math.Abs(units)))
	if !sellingAllowed && units < 0 {
		return 0
	}
	return int(units)
}

// ResolveUnits converts per-asset target values (common currency, portfolio
// asset order) into units to trade and the own-currency cost of those trades.
// p must be the holdings before any liquidation.
func ResolveUnits(p *portfolio.Portfolio, targetValues []float64, commonCurrency string) (UnitPlan, error) {
	assets := p.Assets()
	if len(assets) != len(targetValues) {
		return UnitPlan{}, fmt.Errorf("got %d target values for %d assets", len(targetValues), len(assets))
	}

	plan := UnitPlan{
		NewUnits: make(map[string]int, len(assets)),
		Cost:     make(map[string]float64, len(assets)),
	}
	index := make(map[string]int)

	for i, asset := range assets {
		price, err := asset.PriceIn(commonCurrency, p.Rates())
		if err != nil {
			return UnitPlan{}, err
		}
		current, err := asset.MarketValueIn(commonCurrency, p.Rates())
		if err != nil {
			return UnitPlan{}, err
		}

		units := ResolveUnitCount(targetValues[i], current, price, p.SellingAllowed())
		cost := asset.CostOf(units)

		plan.NewUnits[asset.Ticker] = units
		plan.Cost[asset.Ticker] = cost

		currency := asset.Currency()
		pos, ok := index[currency]
		if !ok {
			pos = len(plan.CurrencyCost)
			index[currency] = pos
			plan.CurrencyCost = append(plan.CurrencyCost, CurrencyCost{Currency: currency})
		}
		plan.CurrencyCost[pos].Amount += cost
	}

	return plan, nil
}
