package rebalancing

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/optimization"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPortfolioStore struct {
	mock.Mock
}

func (m *mockPortfolioStore) Load(ctx context.Context, prices domain.PriceProvider, rates domain.RateProvider) (*portfolio.Portfolio, error) {
	args := m.Called(ctx, prices, rates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portfolio.Portfolio), args.Error(1)
}

func (m *mockPortfolioStore) Save(ctx context.Context, p *portfolio.Portfolio) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type mockHistoryStore struct {
	mock.Mock
}

func (m *mockHistoryStore) Record(ctx context.Context, result *Result) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *mockHistoryStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RunSummary), args.Error(1)
}

func (m *mockHistoryStore) Get(ctx context.Context, id string) (*Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

type serviceFixture struct {
	service    *Service
	portfolios *portfolio.Service
	store      *mockPortfolioStore
	history    *mockHistoryStore
	bus        *events.Bus
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	prices := testingpkg.NewScenarioPrices()
	rates := testingpkg.NewScenarioRates()

	store := new(mockPortfolioStore)
	store.On("Load", mock.Anything, mock.Anything, mock.Anything).Return(testingpkg.NewScenarioPortfolio(), nil)

	portfolios := portfolio.NewService(store, prices, rates, manager, log)
	require.NoError(t, portfolios.Init(context.Background()))

	history := new(mockHistoryStore)
	rebalancer := NewRebalancer(optimization.NewRebalanceOptimizer(log), log)

	return &serviceFixture{
		service:    NewService(portfolios, rebalancer, history, manager, log),
		portfolios: portfolios,
		store:      store,
		history:    history,
		bus:        bus,
	}
}

func (f *serviceFixture) collect(eventType events.EventType) *[]*events.Event {
	var got []*events.Event
	f.bus.Subscribe(eventType, func(e *events.Event) {
		got = append(got, e)
	})
	return &got
}

func TestService_RebalanceCommitsAndRecords(t *testing.T) {
	f := newServiceFixture(t)
	f.store.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	f.history.On("Record", mock.Anything, mock.Anything).Return(nil).Once()

	states := f.collect(events.RebalanceStateChanged)
	completed := f.collect(events.RebalanceCompleted)
	changed := f.collect(events.PortfolioChanged)
	exchanged := f.collect(events.CurrencyExchanged)

	result, err := f.service.Rebalance(context.Background(), testingpkg.ScenarioTargets, false)
	require.NoError(t, err)
	require.NotNil(t, result)

	live := f.portfolios.Snapshot()
	for i, ticker := range testingpkg.ScenarioTickers {
		asset, ok := live.Asset(ticker)
		require.True(t, ok)
		assert.Equal(t, testingpkg.ScenarioQuantities[i]+result.NewUnits[ticker], asset.Quantity, ticker)
	}

	require.Len(t, *states, 7)
	assert.Equal(t, string(StateCommitted), (*states)[6].Data["state"])
	for _, e := range *states {
		assert.Equal(t, result.ID, e.Data["run_id"])
	}
	require.Len(t, *completed, 1)
	assert.Equal(t, result.ID, (*completed)[0].Data["run_id"])
	assert.Len(t, *changed, 1)
	assert.Len(t, *exchanged, len(result.ExchangeHistory))

	f.store.AssertExpectations(t)
	f.history.AssertExpectations(t)
}

func TestService_DryRunDoesNotPersist(t *testing.T) {
	f := newServiceFixture(t)
	f.history.On("Record", mock.Anything, mock.MatchedBy(func(r *Result) bool { return r.DryRun })).Return(nil).Once()

	changed := f.collect(events.PortfolioChanged)
	exchanged := f.collect(events.CurrencyExchanged)
	completed := f.collect(events.RebalanceCompleted)
	before := f.portfolios.Snapshot()

	result, err := f.service.Rebalance(context.Background(), testingpkg.ScenarioTargets, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)

	after := f.portfolios.Snapshot()
	assert.Equal(t, before.Assets(), after.Assets())
	assert.Equal(t, before.CashPools(), after.CashPools())
	assert.Empty(t, *changed)
	assert.Empty(t, *exchanged, "dry runs exchange nothing")
	require.Len(t, *completed, 1)
	assert.Equal(t, true, (*completed)[0].Data["dry_run"])

	f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.history.AssertExpectations(t)
}

func TestService_FailedRebalanceEmitsFailure(t *testing.T) {
	f := newServiceFixture(t)
	failed := f.collect(events.RebalanceFailed)

	_, err := f.service.Rebalance(context.Background(), map[string]float64{"ITOT": 100}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	require.Len(t, *failed, 1)
	assert.Equal(t, string(StateInitiated), (*failed)[0].Data["state"])

	f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.history.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestService_SaveFailureLeavesLivePortfolio(t *testing.T) {
	f := newServiceFixture(t)
	f.store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	before := f.portfolios.Snapshot()
	_, err := f.service.Rebalance(context.Background(), testingpkg.ScenarioTargets, false)
	require.Error(t, err)

	after := f.portfolios.Snapshot()
	assert.Equal(t, before.Assets(), after.Assets())
	assert.Equal(t, before.CashPools(), after.CashPools())
}

func TestService_HistoryErrorDoesNotFailRun(t *testing.T) {
	f := newServiceFixture(t)
	f.history.On("Record", mock.Anything, mock.Anything).Return(errors.New("locked")).Once()

	result, err := f.service.Rebalance(context.Background(), testingpkg.ScenarioTargets, true)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestService_HistoryQueries(t *testing.T) {
	f := newServiceFixture(t)
	runs := []RunSummary{{ID: "a"}}
	f.history.On("List", mock.Anything, 5).Return(runs, nil)
	f.history.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	got, err := f.service.History(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, runs, got)

	_, err = f.service.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestService_HistoryDisabled(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	portfolios := portfolio.NewService(nil, testingpkg.NewScenarioPrices(), testingpkg.NewScenarioRates(), nil, log)
	service := NewService(portfolios, NewRebalancer(optimization.NewRebalanceOptimizer(log), log), nil, nil, log)

	_, err := service.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = service.GetRun(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
