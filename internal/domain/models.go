// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyKRW  Currency = "KRW"
	CurrencyUSD  Currency = "USD"
	CurrencyUSDT Currency = "USDT"
)

// TickerPoint is a point-in-time price observation from one exchange.
// Price is positive at write time; ingestion validates it, the cache does not.
type TickerPoint struct {
	Exchange   string           `json:"exchange"`
	Symbol     string           `json:"symbol"`
	Currency   Currency         `json:"currency"`
	Price      decimal.Decimal  `json:"price"`
	Volume     *decimal.Decimal `json:"volume,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
}

// FxPoint is a point-in-time exchange rate (1 base = Rate quote).
type FxPoint struct {
	BaseCurrency  Currency        `json:"base_currency"`
	QuoteCurrency Currency        `json:"quote_currency"`
	Rate          decimal.Decimal `json:"rate"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// PremiumPoint is derived by the premium calculator and never built by hand.
// ObservedAt is the latest of the three source timestamps, which can hide
// staleness in the other two inputs.
type PremiumPoint struct {
	Symbol            string          `json:"symbol"`
	PremiumRate       decimal.Decimal `json:"premium_rate"`
	KoreaPrice        decimal.Decimal `json:"korea_price"`
	ForeignPrice      decimal.Decimal `json:"foreign_price"`
	ForeignPriceInKrw decimal.Decimal `json:"foreign_price_in_krw"`
	FxRate            decimal.Decimal `json:"fx_rate"`
	ObservedAt        time.Time       `json:"observed_at"`
}

// Aggregation is an OHLC+count reduction over the window [From, To).
type Aggregation struct {
	Key   string          `json:"key"`
	From  time.Time       `json:"from"`
	To    time.Time       `json:"to"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
	Avg   decimal.Decimal `json:"avg"`
	Count int64           `json:"count"`
}

// Summary is a display rollup over a named interval ("1m", "10m", "1h", "1d").
type Summary struct {
	Interval         string          `json:"interval"`
	High             decimal.Decimal `json:"high"`
	Low              decimal.Decimal `json:"low"`
	Current          decimal.Decimal `json:"current"`
	CurrentTimestamp time.Time       `json:"current_timestamp"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TimeUnit is the bucket size of an aggregated tier.
type TimeUnit string

const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
)

// Duration returns the length of one bucket.
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Truncate returns the start of the bucket containing t, in UTC.
func (u TimeUnit) Truncate(t time.Time) time.Time {
	d := u.Duration()
	if d == 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(d)
}

// Finer returns the unit an aggregation of u is reduced from.
// Minute buckets are reduced from the rolling-seconds tier, so minute has no finer unit.
func (u TimeUnit) Finer() (TimeUnit, bool) {
	switch u {
	case UnitHour:
		return UnitMinute, true
	case UnitDay:
		return UnitHour, true
	default:
		return "", false
	}
}

// Valid reports whether u is a known unit.
func (u TimeUnit) Valid() bool {
	return u.Duration() > 0
}
