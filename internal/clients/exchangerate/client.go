// Package exchangerate fetches currency exchange rates from exchangerate-api.com.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/clients"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

const (
	DefaultBaseURL = "https://api.exchangerate-api.com"

	provider = "exchangerate-api"
)

// Client for exchangerate-api.com
type Client struct {
	http *resty.Client
	log  zerolog.Logger
	now  func() time.Time
}

// NewClient creates a new exchangerate-api.com client. Failed requests are
// retried twice before an *clients.APIError is returned.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && clients.Retryable(r.StatusCode()))
		})

	return &Client{
		http: httpClient,
		log:  log.With().Str("client", "exchangerate-api").Logger(),
		now:  time.Now,
	}
}

// SetRetryWait shortens the retry wait (tests).
func (c *Client) SetRetryWait(d time.Duration) {
	c.http.SetRetryWaitTime(d).SetRetryMaxWaitTime(d)
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FetchRate returns how many quote units one base unit buys. The provider
// refreshes its table daily, so ObservedAt is the fetch time.
func (c *Client) FetchRate(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error) {
	if base == quote {
		return &domain.FxPoint{BaseCurrency: base, QuoteCurrency: quote, Rate: decimal.NewFromInt(1), ObservedAt: c.now().UTC()}, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("base", string(base)).
		Get("/v4/latest/{base}")
	if err != nil {
		return nil, &clients.APIError{Provider: provider, Op: "latest", Err: err}
	}
	if resp.IsError() {
		return nil, &clients.APIError{
			Provider:   provider,
			Op:         "latest",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%s", resp.String()),
		}
	}

	var result latestResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &clients.APIError{Provider: provider, Op: "latest", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	rate, ok := result.Rates[string(quote)]
	if !ok {
		return nil, fmt.Errorf("%w: rate not found for %s->%s", clients.ErrInvalidQuote, base, quote)
	}

	c.log.Info().
		Str("from", string(base)).
		Str("to", string(quote)).
		Str("rate", rate.String()).
		Msg("Fetched rate")

	return &domain.FxPoint{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Rate:          rate,
		ObservedAt:    c.now().UTC(),
	}, nil
}
