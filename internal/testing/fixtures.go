package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// KRWTicker returns an Upbit BTC ticker at price.
func KRWTicker(price string, at time.Time) *domain.TickerPoint {
	return &domain.TickerPoint{
		Exchange:   "upbit",
		Symbol:     "BTC",
		Currency:   domain.CurrencyKRW,
		Price:      Dec(price),
		ObservedAt: at,
	}
}

// USDTTicker returns a Binance BTC futures ticker at price.
func USDTTicker(price string, at time.Time) *domain.TickerPoint {
	return &domain.TickerPoint{
		Exchange:   "binance",
		Symbol:     "BTC",
		Currency:   domain.CurrencyUSDT,
		Price:      Dec(price),
		ObservedAt: at,
	}
}

// USDKRW returns a USD/KRW rate.
func USDKRW(rate string, at time.Time) *domain.FxPoint {
	return &domain.FxPoint{
		BaseCurrency:  domain.CurrencyUSD,
		QuoteCurrency: domain.CurrencyKRW,
		Rate:          Dec(rate),
		ObservedAt:    at,
	}
}

// Bucket returns an aggregation of one unit starting at from whose every
// price field is value.
func Bucket(unit domain.TimeUnit, from time.Time, value string, count int64) *domain.Aggregation {
	v := Dec(value)
	return &domain.Aggregation{
		From:  from,
		To:    from.Add(unit.Duration()),
		Open:  v,
		High:  v,
		Low:   v,
		Close: v,
		Avg:   v,
		Count: count,
	}
}
