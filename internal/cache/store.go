package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

// Store reads and writes every cache tier. Reads return (nil, nil) on a miss.
//
// All writes are last-writer-wins; the job lease is what keeps a single
// writer per key per tick.
type Store struct {
	rdb redis.Cmdable
	ttl TTLs
	now func() time.Time
}

// NewStore creates a store over a Redis client.
func NewStore(rdb redis.Cmdable, ttl TTLs) *Store {
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source used for pruning cutoffs.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// TTLs returns the configured expiries.
func (s *Store) TTLs() TTLs {
	return s.ttl
}

// Point tier

// SaveTicker overwrites the ticker point of p.Exchange/p.Symbol.
func (s *Store) SaveTicker(ctx context.Context, p *domain.TickerPoint) error {
	fields := map[string]interface{}{
		"exchange":   p.Exchange,
		"symbol":     p.Symbol,
		"currency":   string(p.Currency),
		"price":      p.Price.String(),
		"observedAt": millis(p.ObservedAt),
	}
	if p.Volume != nil {
		fields["volume"] = p.Volume.String()
	}
	key := TickerPointKey(p.Exchange, p.Symbol)
	if err := s.savePoint(ctx, key, fields, s.ttl.TickerPoint); err != nil {
		return fmt.Errorf("failed to save ticker %s: %w", key, err)
	}
	return nil
}

// Ticker returns the latest ticker of exchange/symbol.
func (s *Store) Ticker(ctx context.Context, exchange, symbol string) (*domain.TickerPoint, error) {
	key := TickerPointKey(exchange, symbol)
	h, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ticker %s: %w", key, err)
	}
	if len(h) == 0 {
		return nil, nil
	}

	price, err := parseDecimal("price", h["price"])
	if err != nil {
		return nil, err
	}
	observedAt, err := parseMillis(h["observedAt"])
	if err != nil {
		return nil, err
	}
	p := &domain.TickerPoint{
		Exchange:   exchange,
		Symbol:     symbol,
		Currency:   domain.Currency(h["currency"]),
		Price:      price,
		ObservedAt: observedAt,
	}
	if raw, ok := h["volume"]; ok && raw != "" {
		v, err := parseDecimal("volume", raw)
		if err != nil {
			return nil, err
		}
		p.Volume = &v
	}
	return p, nil
}

// SaveFx overwrites the FX point of the pair.
func (s *Store) SaveFx(ctx context.Context, p *domain.FxPoint) error {
	key := FxPointKey(p.BaseCurrency, p.QuoteCurrency)
	fields := map[string]interface{}{
		"base":       string(p.BaseCurrency),
		"quote":      string(p.QuoteCurrency),
		"rate":       p.Rate.String(),
		"observedAt": millis(p.ObservedAt),
	}
	if err := s.savePoint(ctx, key, fields, s.ttl.FxPoint); err != nil {
		return fmt.Errorf("failed to save fx %s: %w", key, err)
	}
	return nil
}

// Fx returns the latest FX point of the pair.
func (s *Store) Fx(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error) {
	key := FxPointKey(base, quote)
	h, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read fx %s: %w", key, err)
	}
	if len(h) == 0 {
		return nil, nil
	}

	rate, err := parseDecimal("rate", h["rate"])
	if err != nil {
		return nil, err
	}
	observedAt, err := parseMillis(h["observedAt"])
	if err != nil {
		return nil, err
	}
	return &domain.FxPoint{BaseCurrency: base, QuoteCurrency: quote, Rate: rate, ObservedAt: observedAt}, nil
}

// SavePremium overwrites the premium point of p.Symbol.
func (s *Store) SavePremium(ctx context.Context, p *domain.PremiumPoint) error {
	key := PremiumPointKey(p.Symbol)
	fields := map[string]interface{}{
		"symbol":            p.Symbol,
		"premiumRate":       p.PremiumRate.String(),
		"koreaPrice":        p.KoreaPrice.String(),
		"foreignPrice":      p.ForeignPrice.String(),
		"foreignPriceInKrw": p.ForeignPriceInKrw.String(),
		"fxRate":            p.FxRate.String(),
		"observedAt":        millis(p.ObservedAt),
	}
	if err := s.savePoint(ctx, key, fields, s.ttl.PremiumPoint); err != nil {
		return fmt.Errorf("failed to save premium %s: %w", key, err)
	}
	return nil
}

// Premium returns the latest premium point of symbol.
func (s *Store) Premium(ctx context.Context, symbol string) (*domain.PremiumPoint, error) {
	key := PremiumPointKey(symbol)
	h, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read premium %s: %w", key, err)
	}
	if len(h) == 0 {
		return nil, nil
	}

	names := [5]string{"premiumRate", "koreaPrice", "foreignPrice", "foreignPriceInKrw", "fxRate"}
	var vals [5]decimal.Decimal
	for i, name := range names {
		if vals[i], err = parseDecimal(name, h[name]); err != nil {
			return nil, err
		}
	}
	observedAt, err := parseMillis(h["observedAt"])
	if err != nil {
		return nil, err
	}
	return &domain.PremiumPoint{
		Symbol:            symbol,
		PremiumRate:       vals[0],
		KoreaPrice:        vals[1],
		ForeignPrice:      vals[2],
		ForeignPriceInKrw: vals[3],
		FxRate:            vals[4],
		ObservedAt:        observedAt,
	}, nil
}

func (s *Store) savePoint(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Drop fields of the previous write (e.g. a volume that is now absent).
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// Rolling tiers

// AppendTickerSecond appends p to the rolling-seconds tier and prunes members
// older than the retention.
func (s *Store) AppendTickerSecond(ctx context.Context, p *domain.TickerPoint) error {
	key := TickerSecondsKey(p.Exchange, p.Symbol)
	return s.appendRolling(ctx, key, p.ObservedAt, encodeTicker(p), s.ttl.TickerSeconds)
}

// TickerSeconds returns the rolling ticker points observed in [from, to), oldest first.
func (s *Store) TickerSeconds(ctx context.Context, exchange, symbol string, from, to time.Time) ([]domain.TickerPoint, error) {
	members, err := s.rangeMembers(ctx, TickerSecondsKey(exchange, symbol), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TickerPoint, 0, len(members))
	for _, m := range members {
		p, err := decodeTicker(exchange, symbol, m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AppendFxSecond appends p to the rolling FX tier.
func (s *Store) AppendFxSecond(ctx context.Context, p *domain.FxPoint) error {
	key := FxSecondsKey(p.BaseCurrency, p.QuoteCurrency)
	return s.appendRolling(ctx, key, p.ObservedAt, encodeFx(p), s.ttl.FxSeconds)
}

// FxSeconds returns the rolling FX points observed in [from, to), oldest first.
func (s *Store) FxSeconds(ctx context.Context, base, quote domain.Currency, from, to time.Time) ([]domain.FxPoint, error) {
	members, err := s.rangeMembers(ctx, FxSecondsKey(base, quote), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FxPoint, 0, len(members))
	for _, m := range members {
		p, err := decodeFx(base, quote, m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AppendPremiumSecond appends p to the rolling premium tier.
func (s *Store) AppendPremiumSecond(ctx context.Context, p *domain.PremiumPoint) error {
	return s.appendRolling(ctx, PremiumSecondsKey(p.Symbol), p.ObservedAt, encodePremium(p), s.ttl.PremiumSeconds)
}

// PremiumSeconds returns the rolling premium points observed in [from, to), oldest first.
func (s *Store) PremiumSeconds(ctx context.Context, symbol string, from, to time.Time) ([]domain.PremiumPoint, error) {
	return s.premiumRange(ctx, PremiumSecondsKey(symbol), symbol, from, to)
}

// AppendPremiumHistory appends p to the long-retention premium history.
func (s *Store) AppendPremiumHistory(ctx context.Context, p *domain.PremiumPoint) error {
	return s.appendRolling(ctx, PremiumHistoryKey(p.Symbol), p.ObservedAt, encodePremium(p), s.ttl.PremiumHistory)
}

// PremiumHistory returns history points observed in [from, to), oldest first.
func (s *Store) PremiumHistory(ctx context.Context, symbol string, from, to time.Time) ([]domain.PremiumPoint, error) {
	return s.premiumRange(ctx, PremiumHistoryKey(symbol), symbol, from, to)
}

func (s *Store) premiumRange(ctx context.Context, key, symbol string, from, to time.Time) ([]domain.PremiumPoint, error) {
	members, err := s.rangeMembers(ctx, key, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PremiumPoint, 0, len(members))
	for _, m := range members {
		p, err := decodePremium(symbol, m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// appendRolling adds one member and prunes everything scored before now-retention
// in the same transaction.
func (s *Store) appendRolling(ctx context.Context, key string, at time.Time, member string, retention time.Duration) error {
	cutoff := s.now().Add(-retention)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+millis(cutoff))
		pipe.Expire(ctx, key, keyTTL(retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", key, err)
	}
	return nil
}

func (s *Store) rangeMembers(ctx context.Context, key string, from, to time.Time) ([]string, error) {
	members, err := s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: millis(from),
		Max: "(" + millis(to),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read range of %s: %w", key, err)
	}
	return members, nil
}

// Aggregated tiers

func (s *Store) retention(unit domain.TimeUnit) (time.Duration, error) {
	switch unit {
	case domain.UnitMinute:
		return s.ttl.Minute, nil
	case domain.UnitHour:
		return s.ttl.Hour, nil
	case domain.UnitDay:
		return s.ttl.Day, nil
	default:
		return 0, fmt.Errorf("unknown time unit %q", unit)
	}
}

// UpsertAggregation stores agg as the single bucket at agg.From. Rewriting the
// same window replaces the previous member, so reruns are idempotent.
func (s *Store) UpsertAggregation(ctx context.Context, series Series, unit domain.TimeUnit, agg *domain.Aggregation) error {
	retention, err := s.retention(unit)
	if err != nil {
		return err
	}
	key := series.Key(unit)
	start := millis(agg.From)
	cutoff := s.now().Add(-retention)

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, start, start)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(agg.From.UnixMilli()), Member: encodeAggregation(agg)})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+millis(cutoff))
		pipe.Expire(ctx, key, retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s at %s: %w", key, agg.From.Format(time.RFC3339), err)
	}
	return nil
}

// Aggregations returns the buckets of series whose window starts in [from, to), oldest first.
func (s *Store) Aggregations(ctx context.Context, series Series, unit domain.TimeUnit, from, to time.Time) ([]domain.Aggregation, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("unknown time unit %q", unit)
	}
	members, err := s.rangeMembers(ctx, series.Key(unit), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Aggregation, 0, len(members))
	for _, m := range members {
		a, err := decodeAggregation(series.Name(), unit, m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// NearestAggregation returns the latest bucket of series starting at or before at.
func (s *Store) NearestAggregation(ctx context.Context, series Series, unit domain.TimeUnit, at time.Time) (*domain.Aggregation, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("unknown time unit %q", unit)
	}
	key := series.Key(unit)
	members, err := s.rdb.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   millis(at),
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read nearest of %s: %w", key, err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	a, err := decodeAggregation(series.Name(), unit, members[0])
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Summary tier

// SaveSummary replaces the summary of one named interval.
func (s *Store) SaveSummary(ctx context.Context, symbol string, sum *domain.Summary) error {
	key := SummaryKey(symbol, sum.Interval)
	fields := map[string]interface{}{
		"high":             sum.High.String(),
		"low":              sum.Low.String(),
		"current":          sum.Current.String(),
		"currentTimestamp": millis(sum.CurrentTimestamp),
		"updatedAt":        millis(sum.UpdatedAt),
	}
	if err := s.savePoint(ctx, key, fields, s.ttl.Summary); err != nil {
		return fmt.Errorf("failed to save summary %s: %w", key, err)
	}
	return nil
}

// Summary returns the summary of one named interval.
func (s *Store) Summary(ctx context.Context, symbol, interval string) (*domain.Summary, error) {
	key := SummaryKey(symbol, interval)
	h, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read summary %s: %w", key, err)
	}
	if len(h) == 0 {
		return nil, nil
	}

	names := [3]string{"high", "low", "current"}
	var vals [3]decimal.Decimal
	for i, name := range names {
		if vals[i], err = parseDecimal(name, h[name]); err != nil {
			return nil, err
		}
	}
	currentAt, err := parseMillis(h["currentTimestamp"])
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseMillis(h["updatedAt"])
	if err != nil {
		return nil, err
	}
	return &domain.Summary{
		Interval:         interval,
		High:             vals[0],
		Low:              vals[1],
		Current:          vals[2],
		CurrentTimestamp: currentAt,
		UpdatedAt:        updatedAt,
	}, nil
}

// Position signal

// HasOpenPosition reports whether any consumer holds an open position on symbol.
// The counter is owned by the trading side; a missing key means none.
func (s *Store) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	raw, err := s.rdb.Get(ctx, PositionKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read position signal for %s: %w", symbol, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: position counter %q", ErrMalformed, raw)
	}
	return n > 0, nil
}
