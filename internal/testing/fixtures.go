package testing

import (
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
)

// ScenarioTickers are the holdings of the mixed-currency scenario, in portfolio order
var ScenarioTickers = []string{"XBB.TO", "XIC.TO", "ITOT", "IEFA", "IEMG"}

// ScenarioQuantities are the units held of each ScenarioTickers entry
var ScenarioQuantities = []int{36, 64, 32, 8, 7}

// ScenarioTargets is the target allocation of the mixed-currency scenario
var ScenarioTargets = map[string]float64{
	"XBB.TO": 20,
	"XIC.TO": 20,
	"ITOT":   36,
	"IEFA":   20,
	"IEMG":   4,
}

// NewScenarioPrices returns fixed prices for every ticker used in tests
func NewScenarioPrices() domain.StaticPrices {
	return domain.StaticPrices{
		"XBB.TO": domain.NewMoney(30.0, "CAD"),
		"XIC.TO": domain.NewMoney(35.0, "CAD"),
		"ITOT":   domain.NewMoney(100.0, "USD"),
		"IEFA":   domain.NewMoney(70.0, "USD"),
		"IEMG":   domain.NewMoney(55.0, "USD"),
		"VCN.TO": domain.NewMoney(40.0, "CAD"),
		"XAW.TO": domain.NewMoney(32.0, "CAD"),
		"ZAG.TO": domain.NewMoney(15.0, "CAD"),
	}
}

// NewScenarioRates returns a fixed USD/CAD/GBP rate table
func NewScenarioRates() *domain.StaticRates {
	return domain.NewStaticRates(map[string]float64{
		"USD:CAD": 1.35,
		"GBP:CAD": 1.70,
	})
}

// NewScenarioPortfolio builds the mixed-currency portfolio: five holdings
// plus 3000 USD, 515.21 CAD and 5 GBP in cash, selling allowed.
func NewScenarioPortfolio() *portfolio.Portfolio {
	p := portfolio.New(NewScenarioPrices(), NewScenarioRates())
	if err := p.AddCashPools([]float64{3000.0, 515.21, 5.0}, []string{"USD", "CAD", "GBP"}); err != nil {
		panic(err)
	}
	if err := p.AddAssets(ScenarioTickers, ScenarioQuantities); err != nil {
		panic(err)
	}
	p.SetSellingAllowed(true)
	return p
}

// NewCADlessPortfolio builds a portfolio of CAD-priced holdings funded only
// by USD and GBP cash, selling disallowed.
func NewCADlessPortfolio() *portfolio.Portfolio {
	p := portfolio.New(NewScenarioPrices(), NewScenarioRates())
	if err := p.AddCashPools([]float64{200.0, 250.0}, []string{"USD", "GBP"}); err != nil {
		panic(err)
	}
	if err := p.AddAssets([]string{"VCN.TO", "XAW.TO", "ZAG.TO"}, []int{5, 12, 20}); err != nil {
		panic(err)
	}
	return p
}
