package rebalancing

import (
	"errors"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/optimization"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOptimizer struct {
	mock.Mock
}

func (m *mockOptimizer) Optimize(current, target []float64, totalCash float64) ([]float64, error) {
	args := m.Called(current, target, totalCash)
	if v := args.Get(0); v != nil {
		return v.([]float64), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestRebalancer() *Rebalancer {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewRebalancer(optimization.NewRebalanceOptimizer(log), log)
}

func TestReindexTargets(t *testing.T) {
	tickers := []string{"A", "B", "C"}

	ordered, err := ReindexTargets(tickers, map[string]float64{"C": 50, "A": 20, "B": 30})
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 30, 50}, ordered)

	_, err = ReindexTargets(tickers, map[string]float64{"A": 50.005, "B": 30, "C": 19.999})
	assert.NoError(t, err, "within tolerance")

	_, err = ReindexTargets(tickers, map[string]float64{"A": 20, "B": 30, "D": 50})
	require.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "missing: [C]")
	assert.Contains(t, err.Error(), "not held: [D]")

	_, err = ReindexTargets(tickers, map[string]float64{"A": 20, "B": 30, "C": 49})
	require.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "99.0000")

	_, err = ReindexTargets(tickers, map[string]float64{"A": -10, "B": 60, "C": 50})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRebalance_RejectsMismatchedTargetsWithoutMutation(t *testing.T) {
	p := testingpkg.NewScenarioPortfolio()
	before := p.Clone()

	targets := map[string]float64{"XBB.TO": 50, "XIC.TO": 50}
	var states []State
	_, err := newTestRebalancer().Rebalance(p, targets, Options{
		OnState: func(_ uuid.UUID, s State) { states = append(states, s) },
	})

	require.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, before.Assets(), p.Assets())
	assert.Equal(t, before.CashPools(), p.CashPools())
	assert.Equal(t, []State{StateInitiated}, states)
}

func TestRebalance_MixedCurrencyScenario(t *testing.T) {
	p := testingpkg.NewScenarioPortfolio()
	common := p.CommonCurrency()
	require.Equal(t, "USD", common)

	valueBefore, err := p.Value(common)
	require.NoError(t, err)

	var states []State
	result, err := newTestRebalancer().Rebalance(p, testingpkg.ScenarioTargets, Options{
		OnState: func(_ uuid.UUID, s State) { states = append(states, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateInitiated, StateValidated, StateSnapshotted, StateOptimized,
		StateUnitsResolved, StateSettled, StateCommitted,
	}, states)

	valueAfter, err := p.Value(common)
	require.NoError(t, err)
	assert.InDelta(t, valueBefore, valueAfter, 1.0)
	assert.InDelta(t, result.ValueBefore, result.ValueAfter, 1.0)
	assert.LessOrEqual(t, result.MaxAllocationDeviation, 2.0)

	assert.Equal(t, testingpkg.ScenarioTickers, result.Tickers)
	assert.Equal(t, domain.NewMoney(30, "CAD"), result.Prices["XBB.TO"])
	for _, pool := range p.CashPools() {
		assert.GreaterOrEqual(t, pool.Amount, -FundsTolerance, "pool %s", pool.Currency)
	}

	// The committed holdings reflect the reported trades
	for i, ticker := range testingpkg.ScenarioTickers {
		asset, ok := p.Asset(ticker)
		require.True(t, ok)
		assert.Equal(t, testingpkg.ScenarioQuantities[i]+result.NewUnits[ticker], asset.Quantity, ticker)
	}

	allocation, err := p.AssetAllocation(common)
	require.NoError(t, err)
	assert.Equal(t, result.NewAllocation, allocation)
}

func TestRebalance_CADlessScenario(t *testing.T) {
	p := testingpkg.NewCADlessPortfolio()
	require.False(t, p.SellingAllowed())

	valueBefore, err := p.Value("USD")
	require.NoError(t, err)

	result, err := newTestRebalancer().Rebalance(p, map[string]float64{
		"VCN.TO": 40,
		"XAW.TO": 40,
		"ZAG.TO": 20,
	}, Options{})
	require.NoError(t, err)

	for _, ticker := range []string{"VCN.TO", "XAW.TO", "ZAG.TO"} {
		assert.Equal(t, "CAD", result.Prices[ticker].Currency)
		assert.GreaterOrEqual(t, result.NewUnits[ticker], 0)
	}
	assert.NotEmpty(t, result.ExchangeHistory)
	for _, record := range result.ExchangeHistory {
		assert.Equal(t, "CAD", record.ToCurrency)
	}

	assert.InDelta(t, 0.0, p.Cash("CAD").Amount, 1e-6)

	valueAfter, err := p.Value("USD")
	require.NoError(t, err)
	assert.InDelta(t, valueBefore, valueAfter, 1e-6)
}

func TestRebalance_DryRunLeavesPortfolioUntouched(t *testing.T) {
	p := testingpkg.NewScenarioPortfolio()
	before := p.Clone()

	var states []State
	result, err := newTestRebalancer().Rebalance(p, testingpkg.ScenarioTargets, Options{
		DryRun:  true,
		OnState: func(_ uuid.UUID, s State) { states = append(states, s) },
	})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.NotContains(t, states, StateCommitted)
	assert.Equal(t, before.Assets(), p.Assets())
	assert.Equal(t, before.CashPools(), p.CashPools())
}

func TestRebalance_NoAccidentalSellingNearTarget(t *testing.T) {
	prices := domain.StaticPrices{"ITOT": domain.NewMoney(100, "USD")}
	p := portfolio.New(prices, domain.NewStaticRates(nil))
	p.AddCash(1000, "USD")
	require.NoError(t, p.AddAsset("ITOT", 10))
	p.SetSellingAllowed(true)

	opt := new(mockOptimizer)
	// Everything liquidated: nothing held, 2000 USD to invest
	opt.On("Optimize", []float64{0}, []float64{1.0}, 2000.0).Return([]float64{1040}, nil)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	result, err := NewRebalancer(opt, log).Rebalance(p, map[string]float64{"ITOT": 100}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.NewUnits["ITOT"])
	assert.Empty(t, result.ExchangeHistory)
	asset, _ := p.Asset("ITOT")
	assert.Equal(t, 10, asset.Quantity)
	opt.AssertExpectations(t)
}

func TestRebalance_UnderfundedSettlementIsNotCommitted(t *testing.T) {
	// CAD looks cheap when valued in USD but converting USD into CAD is 1:1,
	// so the plan costs more CAD than the USD pool can buy
	rates := domain.RateProviderFunc(func(from, to string) (float64, error) {
		switch {
		case from == "CAD" && to == "USD":
			return 0.5, nil
		case from == "USD" && to == "CAD":
			return 1.0, nil
		}
		return 0, errors.New("unknown pair")
	})
	prices := domain.StaticPrices{"XIC.TO": domain.NewMoney(10, "CAD")}
	p := portfolio.New(prices, rates)
	p.AddCash(100, "USD")
	require.NoError(t, p.AddAsset("XIC.TO", 0))
	before := p.Clone()

	_, err := newTestRebalancer().Rebalance(p, map[string]float64{"XIC.TO": 100}, Options{})

	require.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	assert.Regexp(t, `unfunded \d+\.\d{2} CAD`, err.Error())
	assert.Equal(t, before.Assets(), p.Assets())
	assert.Equal(t, before.CashPools(), p.CashPools())
}

func TestRebalance_OptimizerFailureAborts(t *testing.T) {
	p := testingpkg.NewScenarioPortfolio()
	before := p.Clone()

	opt := new(mockOptimizer)
	opt.On("Optimize", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrValidation)

	_, err := NewRebalancer(opt, zerolog.Nop()).Rebalance(p, testingpkg.ScenarioTargets, Options{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, before.CashPools(), p.CashPools())
}

func TestRebalance_MissingRateAborts(t *testing.T) {
	prices := testingpkg.NewScenarioPrices()
	p := portfolio.New(prices, domain.NewStaticRates(nil))
	p.AddCash(1000, "USD")
	require.NoError(t, p.AddAssets([]string{"ITOT", "XIC.TO"}, []int{1, 1}))

	_, err := newTestRebalancer().Rebalance(p, map[string]float64{"ITOT": 50, "XIC.TO": 50}, Options{})
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
	assert.Equal(t, 1000.0, p.Cash("USD").Amount)
}
