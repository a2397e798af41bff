package rebalancing

import (
	"math"
	"sort"
	"strings"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Settlement is the outcome of funding a set of currency costs
type Settlement struct {
	// Exchanges in the order they were executed
	Exchanges []domain.ExchangeRecord
	// Shortfall per currency that no source could cover
	Shortfall map[string]float64
}

// Funded reports whether every required currency was covered
func (s Settlement) Funded() bool {
	return len(s.Shortfall) == 0
}

// String lists the uncovered amounts in currency order
func (s Settlement) String() string {
	currencies := make([]string, 0, len(s.Shortfall))
	for currency := range s.Shortfall {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	parts := make([]string, len(currencies))
	for i, currency := range currencies {
		parts[i] = domain.NewMoney(s.Shortfall[currency], currency).String()
	}
	return strings.Join(parts, ", ")
}

func tolerance(amount float64) float64 {
	return floorEpsilon * math.Max(1, math.Abs(amount))
}

// SmartExchange converts cash between the pools of p so each currency in
// costs holds enough to pay its amount, touching as few pools as possible.
//
// Currencies that can pay for themselves only reduce what they can lend.
// Each deficit, in costs order, is first funded from a single pool that
// covers it in full; failing that, pools are drained one after another until
// the remainder fits. Pools are consulted in cash insertion order. Every
// conversion goes through Portfolio.ExchangeCurrency, so later steps see
// the updated balances.
func SmartExchange(p *portfolio.Portfolio, costs []CurrencyCost, log zerolog.Logger) (Settlement, error) {
	settlement := Settlement{Shortfall: make(map[string]float64)}

	available := make(map[string]float64)
	var sources []string
	for _, pool := range p.CashPools() {
		available[pool.Currency] = pool.Amount
		sources = append(sources, pool.Currency)
	}

	var deficits []CurrencyCost
	for _, cost := range costs {
		currency := domain.NormalizeCurrency(cost.Currency)
		held, ok := available[currency]
		if !ok {
			sources = append(sources, currency)
		}
		if cost.Amount <= held {
			available[currency] = held - cost.Amount
			continue
		}
		available[currency] = 0
		deficits = append(deficits, CurrencyCost{Currency: currency, Amount: cost.Amount - held})
	}

	for _, deficit := range deficits {
		remaining := deficit.Amount

		// Single source that covers the whole deficit
		for _, source := range sources {
			if source == deficit.Currency || available[source] <= tolerance(available[source]) {
				continue
			}
			value, err := domain.NewMoney(available[source], source).AmountIn(deficit.Currency, p.Rates())
			if err != nil {
				return settlement, err
			}
			if value < remaining-tolerance(remaining) {
				continue
			}
			record, err := p.ExchangeCurrency(deficit.Currency, source, &remaining, nil)
			if err != nil {
				return settlement, err
			}
			available[source] -= record.FromAmount
			settlement.Exchanges = append(settlement.Exchanges, record)
			remaining = 0
			break
		}

		// Drain sources one after another
		for _, source := range sources {
			if remaining <= tolerance(remaining) {
				break
			}
			if source == deficit.Currency || available[source] <= tolerance(available[source]) {
				continue
			}
			value, err := domain.NewMoney(available[source], source).AmountIn(deficit.Currency, p.Rates())
			if err != nil {
				return settlement, err
			}

			var record domain.ExchangeRecord
			if value >= remaining-tolerance(remaining) {
				amount := remaining
				record, err = p.ExchangeCurrency(deficit.Currency, source, &amount, nil)
			} else {
				amount := available[source]
				record, err = p.ExchangeCurrency(deficit.Currency, source, nil, &amount)
			}
			if err != nil {
				return settlement, err
			}

			available[source] -= record.FromAmount
			remaining -= record.ToAmount
			settlement.Exchanges = append(settlement.Exchanges, record)
		}

		if remaining > tolerance(deficit.Amount) {
			settlement.Shortfall[deficit.Currency] = remaining
			log.Warn().
				Str("currency", deficit.Currency).
				Float64("required", deficit.Amount).
				Float64("shortfall", remaining).
				Msg("Not enough cash to fund currency")
		}
	}

	return settlement, nil
}
