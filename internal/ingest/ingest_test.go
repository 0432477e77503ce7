package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/geonyeop123/premium-spread-sub000/internal/cache"
	"github.com/geonyeop123/premium-spread-sub000/internal/clients"
	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// MockTickerSource mocks a ticker provider
type MockTickerSource struct {
	mock.Mock
}

func (m *MockTickerSource) FetchTicker(ctx context.Context, symbol string) (*domain.TickerPoint, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TickerPoint), args.Error(1)
}

// MockFxSource mocks the FX provider
type MockFxSource struct {
	mock.Mock
}

func (m *MockFxSource) FetchRate(ctx context.Context, base, quote domain.Currency) (*domain.FxPoint, error) {
	args := m.Called(ctx, base, quote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FxPoint), args.Error(1)
}

// MockFxRecorder mocks durable FX storage
type MockFxRecorder struct {
	mock.Mock
}

func (m *MockFxRecorder) InsertFxRate(ctx context.Context, p *domain.FxPoint) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

var ingestNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupCache(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := cache.NewStore(rdb, cache.DefaultTTLs())
	store.SetClock(func() time.Time { return ingestNow })
	return store, mr
}

func ticker(exchange, price string) *domain.TickerPoint {
	return &domain.TickerPoint{
		Exchange:   exchange,
		Symbol:     "BTC",
		Price:      decimal.RequireFromString(price),
		ObservedAt: ingestNow,
	}
}

func TestTickerJob_WritesBoth(t *testing.T) {
	store, mr := setupCache(t)
	domestic, foreign := new(MockTickerSource), new(MockTickerSource)
	domestic.On("FetchTicker", mock.Anything, "BTC").Return(ticker("upbit", "129555000"), nil)
	foreign.On("FetchTicker", mock.Anything, "BTC").Return(ticker("binance", "89277"), nil)

	res := NewTickerJob("BTC", domestic, foreign, store, zerolog.Nop()).Run(context.Background())

	require.True(t, res.IsSuccess())
	assert.True(t, mr.Exists("ticker:point:upbit:BTC"))
	assert.True(t, mr.Exists("ticker:point:binance:BTC"))
	assert.True(t, mr.Exists("ticker:seconds:upbit:BTC"))
	assert.True(t, mr.Exists("ticker:seconds:binance:BTC"))
	domestic.AssertExpectations(t)
	foreign.AssertExpectations(t)
}

func TestTickerJob_EitherFailureWritesNothing(t *testing.T) {
	upstream := &clients.APIError{Provider: "binance", Op: "price", Err: errors.New("timeout")}

	tests := []struct {
		name        string
		domesticErr error
		foreignErr  error
	}{
		{"foreign fails", nil, upstream},
		{"domestic fails", upstream, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mr := setupCache(t)
			domestic, foreign := new(MockTickerSource), new(MockTickerSource)
			if tt.domesticErr != nil {
				domestic.On("FetchTicker", mock.Anything, "BTC").Return(nil, tt.domesticErr)
			} else {
				domestic.On("FetchTicker", mock.Anything, "BTC").Return(ticker("upbit", "129555000"), nil)
			}
			if tt.foreignErr != nil {
				foreign.On("FetchTicker", mock.Anything, "BTC").Return(nil, tt.foreignErr)
			} else {
				foreign.On("FetchTicker", mock.Anything, "BTC").Return(ticker("binance", "89277"), nil)
			}

			res := NewTickerJob("BTC", domestic, foreign, store, zerolog.Nop()).Run(context.Background())

			require.True(t, res.IsFailure())
			var apiErr *clients.APIError
			assert.True(t, errors.As(res.Err, &apiErr), "provider error type is preserved")
			assert.Equal(t, "*clients.APIError", work.ErrorType(res.Err))
			assert.Empty(t, mr.Keys(), "no partial cache write")
		})
	}
}

func TestTickerJob_InvalidPriceWritesNothing(t *testing.T) {
	store, mr := setupCache(t)
	domestic, foreign := new(MockTickerSource), new(MockTickerSource)
	domestic.On("FetchTicker", mock.Anything, "BTC").Return(ticker("upbit", "129555000"), nil)
	foreign.On("FetchTicker", mock.Anything, "BTC").Return(ticker("binance", "0"), nil)

	res := NewTickerJob("BTC", domestic, foreign, store, zerolog.Nop()).Run(context.Background())

	assert.Equal(t, work.Skip(work.ReasonInvalidPrice), res)
	assert.Empty(t, mr.Keys())
}

func TestFxJob(t *testing.T) {
	fx := &domain.FxPoint{BaseCurrency: domain.CurrencyUSD, QuoteCurrency: domain.CurrencyKRW, Rate: decimal.RequireFromString("1432.6"), ObservedAt: ingestNow}

	t.Run("writes cache and durable", func(t *testing.T) {
		store, mr := setupCache(t)
		source, durable := new(MockFxSource), new(MockFxRecorder)
		source.On("FetchRate", mock.Anything, domain.CurrencyUSD, domain.CurrencyKRW).Return(fx, nil)
		durable.On("InsertFxRate", mock.Anything, fx).Return(nil).Once()

		res := NewFxJob(domain.CurrencyUSD, domain.CurrencyKRW, source, store, durable, zerolog.Nop()).Run(context.Background())

		require.True(t, res.IsSuccess())
		assert.True(t, mr.Exists("fx:point:USD:KRW"))
		assert.True(t, mr.Exists("fx:seconds:USD:KRW"))
		durable.AssertExpectations(t)
	})

	t.Run("durable failure fails after cache write", func(t *testing.T) {
		store, mr := setupCache(t)
		source, durable := new(MockFxSource), new(MockFxRecorder)
		source.On("FetchRate", mock.Anything, domain.CurrencyUSD, domain.CurrencyKRW).Return(fx, nil)
		durable.On("InsertFxRate", mock.Anything, fx).Return(errors.New("database is locked"))

		res := NewFxJob(domain.CurrencyUSD, domain.CurrencyKRW, source, store, durable, zerolog.Nop()).Run(context.Background())

		assert.True(t, res.IsFailure())
		assert.True(t, mr.Exists("fx:point:USD:KRW"), "cache and storage may diverge until the next tick")
	})

	t.Run("provider failure", func(t *testing.T) {
		store, mr := setupCache(t)
		source := new(MockFxSource)
		source.On("FetchRate", mock.Anything, domain.CurrencyUSD, domain.CurrencyKRW).Return(nil, &clients.APIError{Provider: "exchangerate-api", Op: "latest", Err: errors.New("503")})

		res := NewFxJob(domain.CurrencyUSD, domain.CurrencyKRW, source, store, nil, zerolog.Nop()).Run(context.Background())

		assert.True(t, res.IsFailure())
		assert.Empty(t, mr.Keys())
	})

	t.Run("non-positive rate skips", func(t *testing.T) {
		store, mr := setupCache(t)
		source := new(MockFxSource)
		zero := *fx
		zero.Rate = decimal.Zero
		source.On("FetchRate", mock.Anything, domain.CurrencyUSD, domain.CurrencyKRW).Return(&zero, nil)

		res := NewFxJob(domain.CurrencyUSD, domain.CurrencyKRW, source, store, nil, zerolog.Nop()).Run(context.Background())

		assert.Equal(t, work.Skip(work.ReasonInvalidPrice), res)
		assert.Empty(t, mr.Keys())
	})
}
