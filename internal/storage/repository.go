// Package storage keeps the durable history of aggregated buckets and FX rates.
// Rows are keyed by their natural identity so every write is an idempotent upsert.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

// Repository provides durable reads and writes over the premium database.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// UpsertPremiumAggregate stores one premium bucket, replacing an earlier write of the same window.
func (r *Repository) UpsertPremiumAggregate(ctx context.Context, symbol string, unit domain.TimeUnit, agg *domain.Aggregation) error {
	if agg == nil {
		return errors.New("nil aggregation")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO premium_aggregates
			(symbol, unit, window_start, window_end, open, high, low, close, avg, count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		symbol, string(unit), agg.From.UnixMilli(), agg.To.UnixMilli(),
		agg.Open.String(), agg.High.String(), agg.Low.String(), agg.Close.String(), agg.Avg.String(),
		agg.Count, r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert premium aggregate %s/%s: %w", symbol, unit, err)
	}
	return nil
}

// UpsertTickerAggregate stores one ticker bucket, replacing an earlier write of the same window.
func (r *Repository) UpsertTickerAggregate(ctx context.Context, exchange, symbol string, unit domain.TimeUnit, agg *domain.Aggregation) error {
	if agg == nil {
		return errors.New("nil aggregation")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ticker_aggregates
			(exchange, symbol, unit, window_start, window_end, open, high, low, close, avg, count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exchange, symbol, string(unit), agg.From.UnixMilli(), agg.To.UnixMilli(),
		agg.Open.String(), agg.High.String(), agg.Low.String(), agg.Close.String(), agg.Avg.String(),
		agg.Count, r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ticker aggregate %s:%s/%s: %w", exchange, symbol, unit, err)
	}
	return nil
}

// InsertFxRate records one FX observation. Re-inserting the same observation is a no-op.
func (r *Repository) InsertFxRate(ctx context.Context, p *domain.FxPoint) error {
	if p == nil {
		return errors.New("nil fx point")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fx_rates (base_currency, quote_currency, rate, observed_at)
		VALUES (?, ?, ?, ?)`,
		string(p.BaseCurrency), string(p.QuoteCurrency), p.Rate.String(), p.ObservedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fx rate %s/%s: %w", p.BaseCurrency, p.QuoteCurrency, err)
	}
	return nil
}

// LatestPremiumAggregate returns the most recent bucket of symbol at unit.
// Returns nil, nil if none has been stored.
func (r *Repository) LatestPremiumAggregate(ctx context.Context, symbol string, unit domain.TimeUnit) (*domain.Aggregation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT window_start, window_end, open, high, low, close, avg, count
		FROM premium_aggregates
		WHERE symbol = ? AND unit = ?
		ORDER BY window_start DESC
		LIMIT 1`, symbol, string(unit))

	agg, err := scanAggregation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest premium aggregate %s/%s: %w", symbol, unit, err)
	}
	return agg, nil
}

// LatestTickerAggregate returns the most recent bucket of exchange:symbol at unit.
// Returns nil, nil if none has been stored.
func (r *Repository) LatestTickerAggregate(ctx context.Context, exchange, symbol string, unit domain.TimeUnit) (*domain.Aggregation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT window_start, window_end, open, high, low, close, avg, count
		FROM ticker_aggregates
		WHERE exchange = ? AND symbol = ? AND unit = ?
		ORDER BY window_start DESC
		LIMIT 1`, exchange, symbol, string(unit))

	agg, err := scanAggregation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ticker aggregate %s:%s/%s: %w", exchange, symbol, unit, err)
	}
	return agg, nil
}

// LatestFxRate returns the newest recorded rate for the pair.
// Returns nil, nil if the pair has never been recorded.
func (r *Repository) LatestFxRate(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error) {
	var (
		rate       string
		observedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT rate, observed_at
		FROM fx_rates
		WHERE base_currency = ? AND quote_currency = ?
		ORDER BY observed_at DESC
		LIMIT 1`, string(base), string(quote)).Scan(&rate, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest fx rate %s/%s: %w", base, quote, err)
	}

	d, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid stored fx rate %q: %w", rate, err)
	}

	return &domain.FxPoint{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Rate:          d,
		ObservedAt:    time.UnixMilli(observedAt).UTC(),
	}, nil
}

// DeleteBefore removes rows older than cutoff and returns the per-table counts.
// Only the given aggregate units are pruned; FX rows are pruned when fx is true.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time, units []domain.TimeUnit, fx bool) (map[string]int64, error) {
	results := make(map[string]int64)
	ms := cutoff.UnixMilli()

	for _, table := range []string{"premium_aggregates", "ticker_aggregates"} {
		for _, unit := range units {
			res, err := r.db.ExecContext(ctx,
				"DELETE FROM "+table+" WHERE unit = ? AND window_start < ?", string(unit), ms)
			if err != nil {
				return results, fmt.Errorf("failed to prune %s/%s: %w", table, unit, err)
			}
			n, _ := res.RowsAffected()
			results[table] += n
		}
	}

	if fx {
		res, err := r.db.ExecContext(ctx, "DELETE FROM fx_rates WHERE observed_at < ?", ms)
		if err != nil {
			return results, fmt.Errorf("failed to prune fx_rates: %w", err)
		}
		n, _ := res.RowsAffected()
		results["fx_rates"] = n
	}

	return results, nil
}

func scanAggregation(row *sql.Row) (*domain.Aggregation, error) {
	var (
		from, to                      int64
		open, high, low, closing, avg string
		count                         int64
	)
	err := row.Scan(&from, &to, &open, &high, &low, &closing, &avg, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	agg := &domain.Aggregation{
		From:  time.UnixMilli(from).UTC(),
		To:    time.UnixMilli(to).UTC(),
		Count: count,
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{open, &agg.Open},
		{high, &agg.High},
		{low, &agg.Low},
		{closing, &agg.Close},
		{avg, &agg.Avg},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored decimal %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return agg, nil
}
