package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{TickerPointKey("upbit", "BTC"), "ticker:point:upbit:BTC"},
		{FxPointKey(domain.CurrencyUSD, domain.CurrencyKRW), "fx:point:USD:KRW"},
		{PremiumPointKey("BTC"), "premium:point:BTC"},
		{TickerSecondsKey("binance", "BTC"), "ticker:seconds:binance:BTC"},
		{FxSecondsKey(domain.CurrencyUSD, domain.CurrencyKRW), "fx:seconds:USD:KRW"},
		{PremiumSecondsKey("BTC"), "premium:seconds:BTC"},
		{PremiumHistoryKey("BTC"), "premium:history:BTC"},
		{SummaryKey("BTC", "10m"), "premium:summary:BTC:10m"},
		{PositionKey("BTC"), "position:open:BTC"},
		{PremiumSeries("BTC").Key(domain.UnitMinute), "premium:minute:BTC"},
		{TickerSeries("upbit", "BTC").Key(domain.UnitDay), "ticker:day:upbit:BTC"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestCodec_TickerMemberLayout(t *testing.T) {
	p := &domain.TickerPoint{Price: dec("89277.5"), ObservedAt: baseTime}
	assert.Equal(t, "89277.5||1714564800000", encodeTicker(p))

	vol := dec("3")
	p.Volume = &vol
	assert.Equal(t, "89277.5|3|1714564800000", encodeTicker(p))
}

func TestCodec_AggregationMemberLayout(t *testing.T) {
	a := &domain.Aggregation{From: baseTime, Open: dec("1"), High: dec("2"), Low: dec("0.5"), Close: dec("1.5"), Avg: dec("1.25"), Count: 4}
	member := encodeAggregation(a)
	assert.Equal(t, "1714564800000|1|2|0.5|1.5|1.25|4", member)

	back, err := decodeAggregation("BTC", domain.UnitHour, member)
	assert.NoError(t, err)
	assert.True(t, back.To.Equal(baseTime.Add(time.Hour)))
}

func TestTTLs_Validate(t *testing.T) {
	assert.NoError(t, DefaultTTLs().Validate(DefaultIntervals()))

	short := DefaultTTLs()
	short.TickerPoint = 4 * time.Second
	assert.Error(t, short.Validate(DefaultIntervals()))

	thin := DefaultTTLs()
	thin.Minute = time.Hour
	assert.Error(t, thin.Validate(DefaultIntervals()))

	assert.Error(t, DefaultTTLs().Validate(Intervals{}))
}
