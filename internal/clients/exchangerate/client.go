// Package exchangerate fetches currency exchange rates from exchangerate-api.com
// with a persistent cache and a stale-cache fallback.
package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/rebalancer/internal/clientdata"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public endpoint; rates for a base currency live at <base>/<CODE>
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Client implements domain.RateProvider on top of exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	cacheRepo *clientdata.Repository
	ttl       time.Duration
	offline   bool
	log       zerolog.Logger
}

var errOffline = errors.New("offline mode")

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTTL sets how long fetched rates stay fresh in the cache
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithOffline disables the API; only cached rates are served, fresh or not
func WithOffline() Option {
	return func(c *Client) { c.offline = true }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a new exchange rate client.
// cacheRepo is optional; without it every lookup hits the API.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		cacheRepo: cacheRepo,
		ttl:       clientdata.TTLExchangeRate,
		log:       log.With().Str("client", "exchangerate-api").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cachedExchangeRate struct {
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func pairKey(from, to string) string {
	return from + ":" + to
}

// GetRate returns the rate from one currency to another, serving fresh cache
// entries first and stale ones when the API is unreachable.
func (c *Client) GetRate(fromCurrency, toCurrency string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return c.GetRateContext(ctx, fromCurrency, toCurrency)
}

// GetRateContext is GetRate bounded by ctx
func (c *Client) GetRateContext(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	from := domain.NormalizeCurrency(fromCurrency)
	to := domain.NormalizeCurrency(toCurrency)
	if from == to {
		return 1.0, nil
	}

	if rate, ok := c.fromCache(ctx, pairKey(from, to), true); ok {
		c.log.Debug().Str("from", from).Str("to", to).Float64("rate", rate).Msg("Cache hit")
		return rate, nil
	}

	rates, err := c.fetch(ctx, from)
	if err == nil {
		if rate, ok := rates[to]; ok && rate > 0 {
			return rate, nil
		}
		err = fmt.Errorf("rate not found for %s->%s", from, to)
	}

	if stale, ok := c.fromCache(ctx, pairKey(from, to), false); ok {
		c.log.Warn().Err(err).Str("from", from).Str("to", to).Float64("rate", stale).Msg("API failed, using stale cached rate")
		return stale, nil
	}
	return 0, fmt.Errorf("%w: %s->%s: %v", domain.ErrDataUnavailable, from, to, err)
}

// Refresh fetches every rate quoted against base and caches them.
// It returns how many rates were stored.
func (c *Client) Refresh(ctx context.Context, base string) (int, error) {
	rates, err := c.fetch(ctx, domain.NormalizeCurrency(base))
	if err != nil {
		return 0, err
	}
	return len(rates), nil
}

// fetch downloads all rates for base and caches them
func (c *Client) fetch(ctx context.Context, base string) (map[string]float64, error) {
	if c.offline {
		return nil, errOffline
	}
	url := fmt.Sprintf("%s/%s", c.baseURL, base)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	rates := make(map[string]float64, len(body.Rates))
	now := time.Now().UTC()
	for code, rate := range body.Rates {
		code = domain.NormalizeCurrency(code)
		if rate <= 0 || code == base {
			continue
		}
		rates[code] = rate
		if c.cacheRepo == nil {
			continue
		}
		entry := cachedExchangeRate{Rate: rate, FetchedAt: now}
		if err := c.cacheRepo.Store(ctx, clientdata.TableExchangeRates, pairKey(base, code), entry, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("pair", pairKey(base, code)).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().Str("base", base).Int("rates", len(rates)).Msg("Fetched rates")
	return rates, nil
}

func (c *Client) fromCache(ctx context.Context, key string, freshOnly bool) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}

	var data json.RawMessage
	var err error
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(ctx, clientdata.TableExchangeRates, key)
	} else {
		data, err = c.cacheRepo.Get(ctx, clientdata.TableExchangeRates, key)
	}
	if err != nil || data == nil {
		return 0, false
	}

	var cached cachedExchangeRate
	if err := json.Unmarshal(data, &cached); err != nil || cached.Rate <= 0 {
		return 0, false
	}
	return cached.Rate, true
}
