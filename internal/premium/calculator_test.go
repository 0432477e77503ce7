package premium

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculator_Rate(t *testing.T) {
	tests := []struct {
		name     string
		calc     Calculator
		domestic string
		foreign  string
		fx       string
		want     string
	}{
		{"reference scenario", NewCalculator(2), "129555000", "89277", "1432.6", "1.28"},
		{"zero premium", NewCalculator(2), "1432600", "1000", "1432.6", "0.00"},
		{"half-up at the boundary", NewCalculator(2), "1000.05", "1", "1000", "0.01"},
		{"discount is negative", NewCalculator(2), "990", "1", "1000", "-1.01"},
		{"four digit scale", NewCalculator(4), "129555000", "89277", "1432.6", "1.2788"},
		{"foreign basis", Calculator{Scale: 2, Basis: BasisForeign}, "129555000", "89277", "1432.6", "1.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, _, err := tt.calc.Rate(d(tt.domestic), d(tt.foreign), d(tt.fx))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rate.StringFixed(tt.calc.Scale))
		})
	}
}

func TestCalculator_RejectsNonPositive(t *testing.T) {
	c := NewCalculator(2)

	_, _, err := c.Rate(d("0"), d("1"), d("1"))
	assert.ErrorIs(t, err, ErrNonPositive)
	_, _, err = c.Rate(d("1"), d("-1"), d("1"))
	assert.ErrorIs(t, err, ErrNonPositive)
	_, _, err = c.Rate(d("1"), d("1"), d("0"))
	assert.ErrorIs(t, err, ErrNonPositive)
}

func TestCalculator_Calculate(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	domestic := &domain.TickerPoint{Exchange: "upbit", Symbol: "BTC", Price: d("129555000"), ObservedAt: t0}
	foreign := &domain.TickerPoint{Exchange: "binance", Symbol: "BTC", Price: d("89277"), ObservedAt: t0.Add(2 * time.Second)}
	fx := &domain.FxPoint{BaseCurrency: domain.CurrencyUSD, QuoteCurrency: domain.CurrencyKRW, Rate: d("1432.6"), ObservedAt: t0.Add(-time.Hour)}

	p, err := NewCalculator(2).Calculate("BTC", domestic, foreign, fx)
	require.NoError(t, err)

	assert.Equal(t, "BTC", p.Symbol)
	assert.True(t, p.PremiumRate.Equal(d("1.28")))
	assert.True(t, p.ForeignPriceInKrw.Equal(d("127898230.2")))
	assert.True(t, p.KoreaPrice.Equal(d("129555000")))
	assert.True(t, p.FxRate.Equal(d("1432.6")))
	assert.True(t, p.ObservedAt.Equal(t0.Add(2*time.Second)), "observedAt is the latest input timestamp")
}

func TestParseBasis(t *testing.T) {
	b, err := ParseBasis("")
	require.NoError(t, err)
	assert.Equal(t, BasisDomestic, b)

	b, err = ParseBasis("foreign")
	require.NoError(t, err)
	assert.Equal(t, "foreign", b.String())

	_, err = ParseBasis("mid")
	assert.Error(t, err)
}
