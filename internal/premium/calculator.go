// Package premium computes the cross-market premium rate and runs the
// per-second premium job.
package premium

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

// DefaultScale is the number of decimal digits kept in a premium rate.
const DefaultScale = 2

// ErrNonPositive is returned when an input price or rate is zero or negative.
var ErrNonPositive = errors.New("price must be positive")

var hundred = decimal.NewFromInt(100)

// Basis selects the denominator of the premium rate.
type Basis int

const (
	// BasisDomestic divides the spread by the domestic price.
	BasisDomestic Basis = iota
	// BasisForeign divides the spread by the foreign price converted to KRW.
	BasisForeign
)

func (b Basis) String() string {
	switch b {
	case BasisDomestic:
		return "domestic"
	case BasisForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// ParseBasis accepts "domestic" or "foreign".
func ParseBasis(s string) (Basis, error) {
	switch s {
	case "", "domestic":
		return BasisDomestic, nil
	case "foreign":
		return BasisForeign, nil
	default:
		return 0, fmt.Errorf("unknown premium basis %q", s)
	}
}

// Calculator turns a domestic ticker, a foreign ticker and an FX rate into a
// premium point.
//
// foreignInDomestic = foreign × fx
// premiumRate = (domestic − foreignInDomestic) × 100 / basis
//
// BasisForeign divides by foreignInDomestic, the textbook kimchi premium.
// BasisDomestic, the default, divides by the domestic price.
//
// The division is done at Scale+2 digits and the result rounded to Scale,
// both half-up.
type Calculator struct {
	Scale int32
	Basis Basis
}

// NewCalculator returns a calculator with the default basis.
func NewCalculator(scale int32) Calculator {
	return Calculator{Scale: scale, Basis: BasisDomestic}
}

// Rate computes the premium rate from raw prices.
func (c Calculator) Rate(domestic, foreign, fx decimal.Decimal) (rate, foreignInDomestic decimal.Decimal, err error) {
	if !domestic.IsPositive() || !foreign.IsPositive() || !fx.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrNonPositive
	}

	foreignInDomestic = foreign.Mul(fx)
	basis := domestic
	if c.Basis == BasisForeign {
		basis = foreignInDomestic
	}

	spread := domestic.Sub(foreignInDomestic).Mul(hundred)
	// decimal rounds half away from zero, which is half-up for either sign.
	rate = spread.DivRound(basis, c.Scale+2).Round(c.Scale)
	return rate, foreignInDomestic, nil
}

// Calculate builds the premium point. ObservedAt is the latest of the three
// input timestamps.
func (c Calculator) Calculate(symbol string, domestic, foreign *domain.TickerPoint, fx *domain.FxPoint) (*domain.PremiumPoint, error) {
	rate, foreignInDomestic, err := c.Rate(domestic.Price, foreign.Price, fx.Rate)
	if err != nil {
		return nil, err
	}

	return &domain.PremiumPoint{
		Symbol:            symbol,
		PremiumRate:       rate,
		KoreaPrice:        domestic.Price,
		ForeignPrice:      foreign.Price,
		ForeignPriceInKrw: foreignInDomestic,
		FxRate:            fx.Rate,
		ObservedAt:        latest(domestic.ObservedAt, foreign.ObservedAt, fx.ObservedAt),
	}, nil
}

func latest(first time.Time, rest ...time.Time) time.Time {
	out := first
	for _, t := range rest {
		if t.After(out) {
			out = t
		}
	}
	return out
}
