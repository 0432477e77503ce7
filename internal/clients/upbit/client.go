// Package upbit fetches KRW spot tickers from the Upbit quotation API.
package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/geonyeop123/premium-spread-sub000/internal/clients"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

const (
	// Exchange is the exchange name used in cache keys.
	Exchange = "upbit"

	DefaultBaseURL = "https://api.upbit.com"

	provider = "upbit"
)

// Options tunes the HTTP client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	// RequestsPerSecond bounds outgoing calls; Upbit allows 10/s per IP for quotations.
	RequestsPerSecond float64
}

// DefaultOptions returns production settings.
func DefaultOptions() Options {
	return Options{
		BaseURL:           DefaultBaseURL,
		Timeout:           5 * time.Second,
		RetryCount:        2,
		RetryWait:         200 * time.Millisecond,
		RequestsPerSecond: 8,
	}
}

// Client for the Upbit quotation API
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates an Upbit client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultOptions().RequestsPerSecond
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4 * opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && clients.Retryable(r.StatusCode()))
		})

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:     log.With().Str("client", "upbit").Logger(),
	}
}

type tickerResponse struct {
	Market           string           `json:"market"`
	TradePrice       decimal.Decimal  `json:"trade_price"`
	AccTradeVolume24 *decimal.Decimal `json:"acc_trade_volume_24h"`
	Timestamp        int64            `json:"timestamp"`
}

// Market returns the Upbit market code of a KRW symbol, e.g. "KRW-BTC".
func Market(symbol string) string {
	return "KRW-" + symbol
}

// FetchTicker returns the latest KRW trade price of symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*domain.TickerPoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &clients.APIError{Provider: provider, Op: "ticker", Err: err}
	}

	market := Market(symbol)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("markets", market).
		Get("/v1/ticker")
	if err != nil {
		return nil, &clients.APIError{Provider: provider, Op: "ticker", Err: err}
	}
	if resp.IsError() {
		return nil, &clients.APIError{
			Provider:   provider,
			Op:         "ticker",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%s", resp.String()),
		}
	}

	var tickers []tickerResponse
	if err := json.Unmarshal(resp.Body(), &tickers); err != nil {
		return nil, &clients.APIError{Provider: provider, Op: "ticker", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(tickers) == 0 || tickers[0].Market != market {
		return nil, fmt.Errorf("%w: upbit returned no ticker for %s", clients.ErrInvalidQuote, market)
	}

	t := tickers[0]
	observedAt := time.UnixMilli(t.Timestamp).UTC()
	if t.Timestamp == 0 {
		observedAt = time.Now().UTC()
	}

	c.log.Debug().
		Str("market", market).
		Str("price", t.TradePrice.String()).
		Msg("Fetched ticker")

	return &domain.TickerPoint{
		Exchange:   Exchange,
		Symbol:     symbol,
		Currency:   domain.CurrencyKRW,
		Price:      t.TradePrice,
		Volume:     t.AccTradeVolume24,
		ObservedAt: observedAt,
	}, nil
}
