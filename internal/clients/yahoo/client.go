// Package yahoo provides current prices from Yahoo Finance via go-yfinance.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/clientdata"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

var errOffline = errors.New("offline mode")

// Quote is a price as Yahoo reports it, in the listing's currency.
// Currency may be a minor unit such as GBp.
type Quote struct {
	Price    float64
	Currency string
}

// QuoteFunc returns the latest quote of a Yahoo symbol
type QuoteFunc func(symbol string) (Quote, error)

type minorUnit struct {
	currency string
	divisor  float64
}

// minorUnits maps the sub-unit codes Yahoo quotes some exchanges in
var minorUnits = map[string]minorUnit{
	"GBp": {"GBP", 100},
	"GBX": {"GBP", 100},
	"ZAc": {"ZAR", 100},
	"ZAC": {"ZAR", 100},
	"ILA": {"ILS", 100},
}

// suffixCurrencies maps Yahoo exchange suffixes to their trading currency.
// Used only when Yahoo does not report a currency.
var suffixCurrencies = map[string]string{
	".TO": "CAD",
	".V":  "CAD",
	".NE": "CAD",
	".L":  "GBP",
	".DE": "EUR",
	".F":  "EUR",
	".PA": "EUR",
	".AS": "EUR",
	".MI": "EUR",
	".MC": "EUR",
	".BR": "EUR",
	".LS": "EUR",
	".HE": "EUR",
	".IR": "EUR",
	".AT": "EUR",
	".ST": "SEK",
	".OL": "NOK",
	".CO": "DKK",
	".SW": "CHF",
	".T":  "JPY",
	".HK": "HKD",
	".SS": "CNY",
	".SZ": "CNY",
	".KS": "KRW",
	".KQ": "KRW",
	".TW": "TWD",
	".SI": "SGD",
	".NS": "INR",
	".BO": "INR",
	".AX": "AUD",
	".NZ": "NZD",
	".SA": "BRL",
	".MX": "MXN",
}

// CurrencyForSymbol infers the trading currency from the exchange suffix.
// Symbols without a known suffix trade in fallback.
func CurrencyForSymbol(symbol, fallback string) string {
	symbol = strings.ToUpper(symbol)
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if currency, ok := suffixCurrencies[symbol[i:]]; ok {
			return currency
		}
	}
	return domain.NormalizeCurrency(fallback)
}

// PriceFromQuote converts a quote into Money in a major currency. Minor-unit
// quotes are scaled down; a quote without a currency falls back to the
// exchange suffix of symbol, then to fallback.
func PriceFromQuote(symbol string, quote Quote, fallback string) domain.Money {
	currency := strings.TrimSpace(quote.Currency)
	if unit, ok := minorUnits[currency]; ok {
		return domain.NewMoney(quote.Price/unit.divisor, unit.currency)
	}
	if currency == "" {
		return domain.NewMoney(quote.Price, CurrencyForSymbol(symbol, fallback))
	}
	return domain.NewMoney(quote.Price, currency)
}

// Client implements domain.PriceProvider
type Client struct {
	quote           QuoteFunc
	cacheRepo       *clientdata.Repository
	ttl             time.Duration
	maxRetries      int
	backoff         time.Duration
	defaultCurrency string
	log             zerolog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithQuoteFunc replaces the go-yfinance lookup
func WithQuoteFunc(fn QuoteFunc) Option {
	return func(c *Client) { c.quote = fn }
}

// WithTTL sets how long fetched prices stay fresh in the cache
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithRetries sets the attempt count and the initial backoff, doubled per retry
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// WithOffline disables Yahoo lookups; only cached prices are served, fresh or not
func WithOffline() Option {
	return func(c *Client) {
		c.quote = func(string) (Quote, error) { return Quote{}, errOffline }
		c.maxRetries = 1
	}
}

// WithDefaultCurrency sets the currency of quotes that carry neither a currency
// nor a known exchange suffix
func WithDefaultCurrency(currency string) Option {
	return func(c *Client) { c.defaultCurrency = domain.NormalizeCurrency(currency) }
}

// NewClient creates a new Yahoo Finance price client.
// cacheRepo is optional; without it every lookup hits Yahoo.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cacheRepo:       cacheRepo,
		ttl:             clientdata.TTLCurrentPrice,
		maxRetries:      3,
		backoff:         time.Second,
		defaultCurrency: "USD",
		log:             log.With().Str("client", "yahoo").Logger(),
	}
	c.quote = c.fetchQuote
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	return c
}

// GetPrice returns the current price of symbol, from the cache when fresh
func (c *Client) GetPrice(symbol string) (domain.Money, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.GetPriceContext(ctx, symbol)
}

// GetPriceContext is GetPrice bounded by ctx
func (c *Client) GetPriceContext(ctx context.Context, symbol string) (domain.Money, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Money{}, fmt.Errorf("%w: empty ticker", domain.ErrValidation)
	}

	if price, ok := c.fromCache(ctx, symbol, true); ok {
		c.log.Debug().Str("symbol", symbol).Float64("price", price.Amount).Msg("Cache hit")
		return price, nil
	}

	quote, err := c.quoteWithRetry(ctx, symbol)
	if err == nil {
		price := PriceFromQuote(symbol, quote, c.defaultCurrency)
		if c.cacheRepo != nil {
			if err := c.cacheRepo.Store(ctx, clientdata.TableCurrentPrices, symbol, price, c.ttl); err != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache price")
			}
		}
		return price, nil
	}

	if stale, ok := c.fromCache(ctx, symbol, false); ok {
		c.log.Warn().Err(err).Str("symbol", symbol).Float64("price", stale.Amount).Msg("Quote failed, using stale cached price")
		return stale, nil
	}
	return domain.Money{}, fmt.Errorf("%w: price for %s: %v", domain.ErrDataUnavailable, symbol, err)
}

func (c *Client) quoteWithRetry(ctx context.Context, symbol string) (Quote, error) {
	var lastErr error
	wait := c.backoff
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		quote, err := c.quote(symbol)
		if err == nil && quote.Price > 0 {
			return quote, nil
		}
		if err == nil {
			err = fmt.Errorf("no valid price for %s", symbol)
		}
		lastErr = err

		if attempt == c.maxRetries-1 {
			break
		}
		c.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying")
		select {
		case <-ctx.Done():
			return Quote{}, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return Quote{}, lastErr
}

// fetchQuote asks Yahoo for the regular market price, falling back to the
// pre/post market price and then the previous close. The currency comes from
// the quote, or from the ticker info when the quote has none.
func (c *Client) fetchQuote(symbol string) (Quote, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	var result Quote
	quote, err := t.Quote()
	if err == nil && quote != nil {
		result.Currency = quote.Currency
		for _, price := range []float64{quote.RegularMarketPrice, quote.PreMarketPrice, quote.PostMarketPrice} {
			if price > 0 {
				result.Price = price
				break
			}
		}
		if result.Price > 0 && result.Currency != "" {
			return result, nil
		}
	}

	info, err := t.Info()
	if err != nil || info == nil {
		if result.Price > 0 {
			c.log.Debug().Str("symbol", symbol).Msg("Quote has no currency")
			return result, nil
		}
		if err == nil {
			err = errors.New("empty ticker info")
		}
		return Quote{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	if result.Currency == "" {
		result.Currency = info.Currency
	}
	if result.Price <= 0 {
		switch {
		case info.CurrentPrice > 0:
			result.Price = info.CurrentPrice
		case info.RegularMarketPreviousClose > 0:
			result.Price = info.RegularMarketPreviousClose
		default:
			return Quote{}, fmt.Errorf("no price in quote for %s", symbol)
		}
	}
	return result, nil
}

func (c *Client) fromCache(ctx context.Context, symbol string, freshOnly bool) (domain.Money, bool) {
	if c.cacheRepo == nil {
		return domain.Money{}, false
	}

	var data json.RawMessage
	var err error
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(ctx, clientdata.TableCurrentPrices, symbol)
	} else {
		data, err = c.cacheRepo.Get(ctx, clientdata.TableCurrentPrices, symbol)
	}
	if err != nil || data == nil {
		return domain.Money{}, false
	}

	var cached domain.Money
	if err := json.Unmarshal(data, &cached); err != nil || cached.Amount <= 0 || cached.Currency == "" {
		return domain.Money{}, false
	}
	return cached, true
}
