package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

const memberSep = "|"

// ErrMalformed is returned when a stored member or hash does not match its layout.
var ErrMalformed = errors.New("malformed cache entry")

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q", ErrMalformed, field, s)
	}
	return d, nil
}

func splitMember(member string, n int) ([]string, error) {
	parts := strings.Split(member, memberSep)
	if len(parts) != n {
		return nil, fmt.Errorf("%w: expected %d fields, got %d in %q", ErrMalformed, n, len(parts), member)
	}
	return parts, nil
}

// price|volume|observedAtMillis
func encodeTicker(p *domain.TickerPoint) string {
	volume := ""
	if p.Volume != nil {
		volume = p.Volume.String()
	}
	return strings.Join([]string{p.Price.String(), volume, millis(p.ObservedAt)}, memberSep)
}

func decodeTicker(exchange, symbol, member string) (domain.TickerPoint, error) {
	parts, err := splitMember(member, 3)
	if err != nil {
		return domain.TickerPoint{}, err
	}
	price, err := parseDecimal("price", parts[0])
	if err != nil {
		return domain.TickerPoint{}, err
	}
	observedAt, err := parseMillis(parts[2])
	if err != nil {
		return domain.TickerPoint{}, err
	}
	p := domain.TickerPoint{
		Exchange:   exchange,
		Symbol:     symbol,
		Price:      price,
		ObservedAt: observedAt,
	}
	if parts[1] != "" {
		v, err := parseDecimal("volume", parts[1])
		if err != nil {
			return domain.TickerPoint{}, err
		}
		p.Volume = &v
	}
	return p, nil
}

// rate|observedAtMillis
func encodeFx(p *domain.FxPoint) string {
	return p.Rate.String() + memberSep + millis(p.ObservedAt)
}

func decodeFx(base, quote domain.Currency, member string) (domain.FxPoint, error) {
	parts, err := splitMember(member, 2)
	if err != nil {
		return domain.FxPoint{}, err
	}
	rate, err := parseDecimal("rate", parts[0])
	if err != nil {
		return domain.FxPoint{}, err
	}
	observedAt, err := parseMillis(parts[1])
	if err != nil {
		return domain.FxPoint{}, err
	}
	return domain.FxPoint{BaseCurrency: base, QuoteCurrency: quote, Rate: rate, ObservedAt: observedAt}, nil
}

// premiumRate|koreaPrice|foreignPrice|foreignPriceInKrw|fxRate|observedAtMillis
func encodePremium(p *domain.PremiumPoint) string {
	return strings.Join([]string{
		p.PremiumRate.String(),
		p.KoreaPrice.String(),
		p.ForeignPrice.String(),
		p.ForeignPriceInKrw.String(),
		p.FxRate.String(),
		millis(p.ObservedAt),
	}, memberSep)
}

func decodePremium(symbol, member string) (domain.PremiumPoint, error) {
	parts, err := splitMember(member, 6)
	if err != nil {
		return domain.PremiumPoint{}, err
	}
	names := [5]string{"premiumRate", "koreaPrice", "foreignPrice", "foreignPriceInKrw", "fxRate"}
	var vals [5]decimal.Decimal
	for i, name := range names {
		if vals[i], err = parseDecimal(name, parts[i]); err != nil {
			return domain.PremiumPoint{}, err
		}
	}
	observedAt, err := parseMillis(parts[5])
	if err != nil {
		return domain.PremiumPoint{}, err
	}
	return domain.PremiumPoint{
		Symbol:            symbol,
		PremiumRate:       vals[0],
		KoreaPrice:        vals[1],
		ForeignPrice:      vals[2],
		ForeignPriceInKrw: vals[3],
		FxRate:            vals[4],
		ObservedAt:        observedAt,
	}, nil
}

// windowStartMillis|open|high|low|close|avg|count
func encodeAggregation(a *domain.Aggregation) string {
	return strings.Join([]string{
		millis(a.From),
		a.Open.String(),
		a.High.String(),
		a.Low.String(),
		a.Close.String(),
		a.Avg.String(),
		strconv.FormatInt(a.Count, 10),
	}, memberSep)
}

func decodeAggregation(key string, unit domain.TimeUnit, member string) (domain.Aggregation, error) {
	parts, err := splitMember(member, 7)
	if err != nil {
		return domain.Aggregation{}, err
	}
	from, err := parseMillis(parts[0])
	if err != nil {
		return domain.Aggregation{}, err
	}
	names := [5]string{"open", "high", "low", "close", "avg"}
	var vals [5]decimal.Decimal
	for i, name := range names {
		if vals[i], err = parseDecimal(name, parts[i+1]); err != nil {
			return domain.Aggregation{}, err
		}
	}
	count, err := strconv.ParseInt(parts[6], 10, 64)
	if err != nil {
		return domain.Aggregation{}, fmt.Errorf("%w: count %q", ErrMalformed, parts[6])
	}
	return domain.Aggregation{
		Key:   key,
		From:  from,
		To:    from.Add(unit.Duration()),
		Open:  vals[0],
		High:  vals[1],
		Low:   vals[2],
		Close: vals[3],
		Avg:   vals[4],
		Count: count,
	}, nil
}
