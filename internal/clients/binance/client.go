// Package binance fetches USDT-margined perpetual futures prices from Binance.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/geonyeop123/premium-spread-sub000/internal/clients"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

const (
	// Exchange is the exchange name used in cache keys.
	Exchange = "binance"

	DefaultBaseURL = "https://fapi.binance.com"

	provider = "binance"

	// codeTooManyRequests is Binance's -1003 rate-limit rejection.
	codeTooManyRequests = -1003
)

// Options tunes retries and rate limiting.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// RequestsPerSecond bounds outgoing calls well below the request-weight limit.
	RequestsPerSecond float64
}

// DefaultOptions returns production settings.
func DefaultOptions() Options {
	return Options{
		BaseURL:           DefaultBaseURL,
		Timeout:           5 * time.Second,
		MaxRetries:        2,
		MinBackoff:        100 * time.Millisecond,
		MaxBackoff:        time.Second,
		RequestsPerSecond: 10,
	}
}

// Client wraps the go-binance futures client.
type Client struct {
	api     *futures.Client
	limiter *rate.Limiter
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
}

// NewClient creates a public (unauthenticated) futures client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultOptions().RequestsPerSecond
	}

	api := futures.NewClient("", "")
	api.BaseURL = opts.BaseURL
	api.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		opts:    opts,
		log:     log.With().Str("client", "binance-futures").Logger(),
		now:     time.Now,
	}
}

// Symbol returns the perpetual contract of a base asset, e.g. "BTCUSDT".
func Symbol(asset string) string {
	return asset + "USDT"
}

// FetchTicker returns the latest USDT futures price of symbol. The price
// endpoint carries no trade timestamp, so ObservedAt is the fetch time.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*domain.TickerPoint, error) {
	contract := Symbol(symbol)
	b := &backoff.Backoff{Min: c.opts.MinBackoff, Max: c.opts.MaxBackoff, Factor: 2, Jitter: true}

	var (
		prices []*futures.SymbolPrice
		err    error
	)
	for attempt := 0; ; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			return nil, &clients.APIError{Provider: provider, Op: "price", Err: err}
		}
		prices, err = c.api.NewListPricesService().Symbol(contract).Do(ctx)
		if err == nil {
			break
		}
		if attempt >= c.opts.MaxRetries || !retryable(err) {
			return nil, &clients.APIError{Provider: provider, Op: "price", Err: err}
		}

		wait := b.Duration()
		c.log.Debug().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying price request")
		select {
		case <-ctx.Done():
			return nil, &clients.APIError{Provider: provider, Op: "price", Err: ctx.Err()}
		case <-time.After(wait):
		}
	}

	for _, p := range prices {
		if p == nil || p.Symbol != contract {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: binance price %q for %s", clients.ErrInvalidQuote, p.Price, contract)
		}
		return &domain.TickerPoint{
			Exchange:   Exchange,
			Symbol:     symbol,
			Currency:   domain.CurrencyUSDT,
			Price:      price,
			ObservedAt: c.now().UTC(),
		}, nil
	}
	return nil, fmt.Errorf("%w: binance returned no price for %s", clients.ErrInvalidQuote, contract)
}

// retryable treats rate limiting and transport failures as transient. Other
// API rejections (bad symbol, banned IP) are not retried.
func retryable(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == codeTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
