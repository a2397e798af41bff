package portfolio

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestPortfolio(t *testing.T) *Portfolio {
	t.Helper()
	p := New(testPrices(), testRates())
	require.NoError(t, p.AddCashPools([]float64{100, 50}, []string{"usd", "CAD"}))
	require.NoError(t, p.AddAssets([]string{"XBB.TO", "ITOT"}, []int{10, 2}))
	return p
}

func ptr(v float64) *float64 { return &v }

func TestPortfolio_AddCashAccumulates(t *testing.T) {
	p := New(testPrices(), testRates())
	p.AddCash(100, "usd")
	p.AddCash(25.5, "USD")
	p.AddCash(10, "cad")

	assert.Equal(t, []string{"USD", "CAD"}, p.CashCurrencies())
	assert.Equal(t, domain.NewMoney(125.5, "USD"), p.Cash("USD"))
	assert.Equal(t, domain.Money{Currency: "GBP"}, p.Cash("gbp"), "missing pool reads as zero")
	assert.Len(t, p.CashPools(), 2)
}

func TestPortfolio_BulkAddLengthMismatch(t *testing.T) {
	p := New(testPrices(), testRates())

	err := p.AddCashPools([]float64{1, 2}, []string{"USD"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	err = p.AddAssets([]string{"ITOT"}, []int{1, 2})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.Empty(t, p.CashCurrencies())
	assert.Empty(t, p.Tickers())
}

func TestPortfolio_AddAssetKeepsOrderAndMerges(t *testing.T) {
	p := newTestPortfolio(t)
	require.NoError(t, p.AddAsset("IEFA", 1))
	require.NoError(t, p.AddAsset("XBB.TO", 5))

	assert.Equal(t, []string{"XBB.TO", "ITOT", "IEFA"}, p.Tickers())
	asset, ok := p.Asset("XBB.TO")
	require.True(t, ok)
	assert.Equal(t, 15, asset.Quantity)

	_, ok = p.Asset("NOPE")
	assert.False(t, ok)

	err := p.AddAsset("NOPE", 1)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestPortfolio_CommonCurrency(t *testing.T) {
	p := New(testPrices(), testRates())
	assert.Equal(t, DefaultCommonCurrency, p.CommonCurrency())

	require.NoError(t, p.AddAsset("ITOT", 1))
	assert.Equal(t, "USD", p.CommonCurrency())

	p.AddCash(5, "gbp")
	assert.Equal(t, "GBP", p.CommonCurrency())
}

func TestPortfolio_Currencies(t *testing.T) {
	p := New(testPrices(), testRates())
	assert.Empty(t, p.Currencies())

	require.NoError(t, p.AddAssets([]string{"ITOT", "XBB.TO"}, []int{1, 1}))
	p.AddCash(5, "gbp")
	p.AddCash(5, "usd")

	assert.Equal(t, []string{"GBP", "USD", "CAD"}, p.Currencies())
}

func TestPortfolio_Valuation(t *testing.T) {
	p := newTestPortfolio(t)

	market, err := p.MarketValue("CAD")
	require.NoError(t, err)
	// 10*30 CAD + 2*100 USD*1.35
	assert.InDelta(t, 570.0, market, 1e-9)

	cash, err := p.CashValue("CAD")
	require.NoError(t, err)
	assert.InDelta(t, 185.0, cash, 1e-9)

	total, err := p.Value("CAD")
	require.NoError(t, err)
	assert.InDelta(t, 755.0, total, 1e-9)

	allocation, err := p.AssetAllocation("CAD")
	require.NoError(t, err)
	assert.InDelta(t, 300.0/570.0*100, allocation["XBB.TO"], 1e-9)
	assert.InDelta(t, 270.0/570.0*100, allocation["ITOT"], 1e-9)

	_, err = p.Value("JPY")
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestPortfolio_AllocationOfWorthlessHoldings(t *testing.T) {
	p := New(testPrices(), testRates())
	require.NoError(t, p.AddAssets([]string{"ITOT", "IEFA"}, []int{0, 0}))

	allocation, err := p.AssetAllocation("USD")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ITOT": 0, "IEFA": 0}, allocation)
}

func TestPortfolio_ExchangeCurrency(t *testing.T) {
	p := newTestPortfolio(t)

	record, err := p.ExchangeCurrency("CAD", "USD", ptr(135), nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, record.FromAmount, 1e-9)
	assert.Equal(t, "USD", record.FromCurrency)
	assert.Equal(t, 135.0, record.ToAmount)
	assert.Equal(t, "CAD", record.ToCurrency)
	assert.Equal(t, 1.35, record.Rate)
	assert.InDelta(t, 0.0, p.Cash("USD").Amount, 1e-9)
	assert.InDelta(t, 185.0, p.Cash("CAD").Amount, 1e-9)

	record, err = p.ExchangeCurrency("gbp", "cad", nil, ptr(17))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, record.ToAmount, 1e-9)
	assert.Equal(t, []string{"USD", "CAD", "GBP"}, p.CashCurrencies(), "missing pool created")
	assert.InDelta(t, 10.0, p.Cash("GBP").Amount, 1e-9)
	assert.InDelta(t, 168.0, p.Cash("CAD").Amount, 1e-9)
}

func TestPortfolio_ExchangeCurrency_Ambiguous(t *testing.T) {
	p := newTestPortfolio(t)

	_, err := p.ExchangeCurrency("CAD", "USD", ptr(1), ptr(1))
	assert.True(t, errors.Is(err, domain.ErrAmbiguousArgument))

	_, err = p.ExchangeCurrency("CAD", "USD", nil, nil)
	assert.True(t, errors.Is(err, domain.ErrAmbiguousArgument))

	assert.Equal(t, 100.0, p.Cash("USD").Amount)
	assert.Equal(t, 50.0, p.Cash("CAD").Amount)
}

func TestPortfolio_ExchangeCurrency_MissingRate(t *testing.T) {
	p := newTestPortfolio(t)

	_, err := p.ExchangeCurrency("JPY", "USD", nil, ptr(10))
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
	assert.Equal(t, []string{"USD", "CAD"}, p.CashCurrencies())
}

func TestPortfolio_NonFiniteRateIsUnavailable(t *testing.T) {
	nan := domain.RateProviderFunc(func(from, to string) (float64, error) { return math.NaN(), nil })
	p := New(testPrices(), nan)
	require.NoError(t, p.AddAsset("ITOT", 1))
	p.AddCash(10, "USD")

	_, err := p.Value("CAD")
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))

	_, err = p.ExchangeCurrency("CAD", "USD", nil, ptr(5))
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
	assert.Equal(t, 10.0, p.Cash("USD").Amount)
}

func TestPortfolio_SellEverythingAndCombine(t *testing.T) {
	p := newTestPortfolio(t)
	before, err := p.Value("CAD")
	require.NoError(t, err)

	p.SellEverything()
	for _, asset := range p.Assets() {
		assert.Zero(t, asset.Quantity)
	}
	assert.Equal(t, 300.0, p.Cash("USD").Amount)
	assert.Equal(t, 350.0, p.Cash("CAD").Amount)

	require.NoError(t, p.CombineCash("CAD"))
	assert.Equal(t, []string{"CAD"}, p.CashCurrencies())

	after, err := p.Value("CAD")
	require.NoError(t, err)
	assert.InDelta(t, before, after, 1e-9)
}

func TestPortfolio_BuyAsset(t *testing.T) {
	p := newTestPortfolio(t)

	cost, err := p.BuyAsset("ITOT", 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cost)
	assert.Equal(t, 0.0, p.Cash("USD").Amount)

	cost, err = p.BuyAsset("XBB.TO", -2)
	require.NoError(t, err)
	assert.Equal(t, -60.0, cost)
	assert.Equal(t, 110.0, p.Cash("CAD").Amount)

	_, err = p.BuyAsset("NOPE", 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPortfolio_CloneIsIndependent(t *testing.T) {
	p := newTestPortfolio(t)
	p.SetSellingAllowed(true)

	c := p.Clone()
	c.AddCash(1000, "USD")
	_, err := c.BuyAsset("ITOT", 5)
	require.NoError(t, err)
	c.SetSellingAllowed(false)

	assert.Equal(t, 100.0, p.Cash("USD").Amount)
	original, _ := p.Asset("ITOT")
	assert.Equal(t, 2, original.Quantity)
	assert.True(t, p.SellingAllowed())
}

func TestPortfolio_RestoreAndReplace(t *testing.T) {
	p := newTestPortfolio(t)

	work := p.Clone()
	work.SellEverything()
	require.NoError(t, work.CombineCash("CAD"))
	work.RestoreFrom(p)

	assert.Equal(t, p.CashPools(), work.CashPools())
	assert.Equal(t, p.Assets(), work.Assets())

	_, err := work.BuyAsset("ITOT", 1)
	require.NoError(t, err)
	p.Replace(work)

	asset, _ := p.Asset("ITOT")
	assert.Equal(t, 3, asset.Quantity)
	assert.Equal(t, 0.0, p.Cash("USD").Amount)
}

func TestPortfolio_AllocationSumsTo100(t *testing.T) {
	tickers := []string{"XBB.TO", "XIC.TO", "ITOT", "IEFA"}

	rapid.Check(t, func(t *rapid.T) {
		quantities := make([]int, len(tickers))
		total := 0
		for i := range tickers {
			quantities[i] = rapid.IntRange(0, 10000).Draw(t, tickers[i])
			total += quantities[i]
		}
		if total == 0 {
			quantities[0] = 1
		}

		p := New(testPrices(), testRates())
		if err := p.AddAssets(tickers, quantities); err != nil {
			t.Fatalf("add assets: %v", err)
		}
		currency := rapid.SampledFrom([]string{"CAD", "USD", "GBP"}).Draw(t, "currency")

		allocation, err := p.AssetAllocation(currency)
		if err != nil {
			t.Fatalf("allocation: %v", err)
		}

		sum := 0.0
		for _, share := range allocation {
			sum += share
		}
		if diff := sum - 100.0; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("allocation sums to %v", sum)
		}
	})
}

func TestPortfolio_IdentityExchangeLeavesPoolsUnchanged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		currency := rapid.SampledFrom([]string{"CAD", "USD", "GBP"}).Draw(t, "currency")
		balance := rapid.Float64Range(0, 1e6).Draw(t, "balance")
		amount := rapid.Float64Range(0, 1e6).Draw(t, "amount")
		useTo := rapid.Bool().Draw(t, "use_to")

		p := New(testPrices(), testRates())
		p.AddCash(balance, currency)

		var record domain.ExchangeRecord
		var err error
		if useTo {
			record, err = p.ExchangeCurrency(currency, currency, &amount, nil)
		} else {
			record, err = p.ExchangeCurrency(currency, currency, nil, &amount)
		}
		if err != nil {
			t.Fatalf("exchange: %v", err)
		}
		if record.Rate != 1.0 {
			t.Fatalf("identity rate %v", record.Rate)
		}
		if got := p.Cash(currency).Amount; got != balance {
			t.Fatalf("pool changed from %v to %v", balance, got)
		}
		if len(p.CashCurrencies()) != 1 {
			t.Fatalf("unexpected pools %v", p.CashCurrencies())
		}
	})
}
