package testing

import (
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockPriceProvider is a testify mock of domain.PriceProvider
type MockPriceProvider struct {
	mock.Mock
}

// GetPrice returns the configured price for ticker
func (m *MockPriceProvider) GetPrice(ticker string) (domain.Money, error) {
	args := m.Called(ticker)
	return args.Get(0).(domain.Money), args.Error(1)
}

// MockRateProvider is a testify mock of domain.RateProvider
type MockRateProvider struct {
	mock.Mock
}

// GetRate returns the configured rate for the pair
func (m *MockRateProvider) GetRate(fromCurrency, toCurrency string) (float64, error) {
	args := m.Called(fromCurrency, toCurrency)
	return args.Get(0).(float64), args.Error(1)
}
