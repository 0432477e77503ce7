// Package cache implements the tiered Redis cache: point, rolling-seconds,
// aggregated (minute/hour/day) and summary tiers.
//
// Keys follow {domain}:{subdomain}:{id}[:{qualifier}]. Members of time-scored
// sets are fixed-order '|'-delimited strings with no version field; changing a
// member layout requires a new key namespace.
package cache

import (
	"fmt"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

const (
	domainTicker   = "ticker"
	domainFx       = "fx"
	domainPremium  = "premium"
	domainPosition = "position"
)

// TickerPointKey is the hash holding the latest ticker of one exchange.
func TickerPointKey(exchange, symbol string) string {
	return fmt.Sprintf("%s:point:%s:%s", domainTicker, exchange, symbol)
}

// FxPointKey is the hash holding the latest rate of a currency pair.
func FxPointKey(base, quote domain.Currency) string {
	return fmt.Sprintf("%s:point:%s:%s", domainFx, base, quote)
}

// PremiumPointKey is the hash holding the latest premium of a symbol.
func PremiumPointKey(symbol string) string {
	return fmt.Sprintf("%s:point:%s", domainPremium, symbol)
}

func TickerSecondsKey(exchange, symbol string) string {
	return fmt.Sprintf("%s:seconds:%s:%s", domainTicker, exchange, symbol)
}

func FxSecondsKey(base, quote domain.Currency) string {
	return fmt.Sprintf("%s:seconds:%s:%s", domainFx, base, quote)
}

func PremiumSecondsKey(symbol string) string {
	return fmt.Sprintf("%s:seconds:%s", domainPremium, symbol)
}

// PremiumHistoryKey is the long-retention premium set, written only while a
// consumer holds an open position.
func PremiumHistoryKey(symbol string) string {
	return fmt.Sprintf("%s:history:%s", domainPremium, symbol)
}

// SummaryKey is the hash for one named-interval summary ("1m", "10m", "1h", "1d").
func SummaryKey(symbol, interval string) string {
	return fmt.Sprintf("%s:summary:%s:%s", domainPremium, symbol, interval)
}

// PositionKey holds the externally owned open-position counter of a symbol.
func PositionKey(symbol string) string {
	return fmt.Sprintf("%s:open:%s", domainPosition, symbol)
}

// Series identifies one aggregated time series: the premium of a symbol, or
// the ticker of a symbol on one exchange.
type Series struct {
	Domain   string
	Exchange string
	Symbol   string
}

// PremiumSeries returns the premium series of symbol.
func PremiumSeries(symbol string) Series {
	return Series{Domain: domainPremium, Symbol: symbol}
}

// TickerSeries returns the ticker series of symbol on exchange.
func TickerSeries(exchange, symbol string) Series {
	return Series{Domain: domainTicker, Exchange: exchange, Symbol: symbol}
}

// IsTicker reports whether s is a per-exchange ticker series.
func (s Series) IsTicker() bool { return s.Domain == domainTicker }

// Name is the aggregation key stored alongside values: the symbol for premium
// series, "exchange:symbol" for ticker series.
func (s Series) Name() string {
	if s.Exchange == "" {
		return s.Symbol
	}
	return s.Exchange + ":" + s.Symbol
}

// Key is the sorted-set key of s at unit, e.g. "premium:minute:BTC" or
// "ticker:hour:upbit:BTC".
func (s Series) Key(unit domain.TimeUnit) string {
	return fmt.Sprintf("%s:%s:%s", s.Domain, unit, s.Name())
}

func (s Series) String() string {
	return s.Domain + ":" + s.Name()
}
