package domain

// PriceProvider returns the current unit price of a traded instrument.
// Implementations must return a positive amount and a currency code.
type PriceProvider interface {
	GetPrice(ticker string) (Money, error)
}

// RateProvider returns the exchange rate from one currency to another.
// Callers short-circuit identity pairs and never ask for them.
type RateProvider interface {
	GetRate(fromCurrency, toCurrency string) (float64, error)
}

// RateProviderFunc adapts a function to RateProvider
type RateProviderFunc func(fromCurrency, toCurrency string) (float64, error)

// GetRate calls f(fromCurrency, toCurrency)
func (f RateProviderFunc) GetRate(fromCurrency, toCurrency string) (float64, error) {
	return f(fromCurrency, toCurrency)
}

// PriceProviderFunc adapts a function to PriceProvider
type PriceProviderFunc func(ticker string) (Money, error)

// GetPrice calls f(ticker)
func (f PriceProviderFunc) GetPrice(ticker string) (Money, error) {
	return f(ticker)
}
