package cache

import (
	"fmt"
	"time"
)

// minTTLFactor is the number of production ticks a point entry must survive.
const minTTLFactor = 5

// TTLs holds the expiry of point and summary entries and the retention of
// time-scored tiers.
type TTLs struct {
	TickerPoint  time.Duration
	FxPoint      time.Duration
	PremiumPoint time.Duration

	TickerSeconds  time.Duration
	FxSeconds      time.Duration
	PremiumSeconds time.Duration
	PremiumHistory time.Duration

	Minute time.Duration
	Hour   time.Duration
	Day    time.Duration

	Summary time.Duration
}

// DefaultTTLs returns the production expiries.
func DefaultTTLs() TTLs {
	return TTLs{
		TickerPoint:  5 * time.Second,   // 5 × 1s ingest tick
		FxPoint:      150 * time.Minute, // 5 × 30m ingest tick
		PremiumPoint: 5 * time.Second,

		TickerSeconds:  10 * time.Minute,
		FxSeconds:      24 * time.Hour,
		PremiumSeconds: 10 * time.Minute,
		PremiumHistory: 24 * time.Hour,

		Minute: 26 * time.Hour,
		Hour:   8 * 24 * time.Hour,
		Day:    400 * 24 * time.Hour,

		Summary: 10 * time.Minute,
	}
}

// Intervals are the production periods of the jobs writing each tier.
type Intervals struct {
	Ticker  time.Duration
	Fx      time.Duration
	Premium time.Duration
	Summary time.Duration
}

// DefaultIntervals matches the default job catalogue.
func DefaultIntervals() Intervals {
	return Intervals{
		Ticker:  time.Second,
		Fx:      30 * time.Minute,
		Premium: time.Second,
		Summary: time.Minute,
	}
}

// Validate checks that one or two missed ticks never expire an entry and that
// every tier keeps enough history for the rollup reading it.
func (t TTLs) Validate(iv Intervals) error {
	checks := []struct {
		name     string
		ttl      time.Duration
		interval time.Duration
	}{
		{"ticker point", t.TickerPoint, iv.Ticker},
		{"fx point", t.FxPoint, iv.Fx},
		{"premium point", t.PremiumPoint, iv.Premium},
		{"summary", t.Summary, iv.Summary},
	}
	for _, c := range checks {
		if c.interval <= 0 {
			return fmt.Errorf("%s interval must be positive", c.name)
		}
		if c.ttl < minTTLFactor*c.interval {
			return fmt.Errorf("%s ttl %s is below %d × interval %s", c.name, c.ttl, minTTLFactor, c.interval)
		}
	}

	// Each retention must cover at least two windows of the tier reduced from it.
	coverage := []struct {
		name      string
		retention time.Duration
		window    time.Duration
	}{
		{"ticker seconds", t.TickerSeconds, 2 * time.Minute},
		{"premium seconds", t.PremiumSeconds, 2 * time.Minute},
		{"fx seconds", t.FxSeconds, 2 * iv.Fx},
		{"minute tier", t.Minute, 2 * time.Hour},
		{"hour tier", t.Hour, 2 * 24 * time.Hour},
		{"day tier", t.Day, 2 * 24 * time.Hour},
	}
	for _, c := range coverage {
		if c.retention < c.window {
			return fmt.Errorf("%s retention %s is below %s", c.name, c.retention, c.window)
		}
	}

	if t.PremiumHistory <= 0 {
		return fmt.Errorf("premium history retention must be positive")
	}
	return nil
}

// keyTTL is the expiry of a time-scored key relative to its retention, so an
// idle key disappears once every member would have been pruned.
func keyTTL(retention time.Duration) time.Duration {
	return retention + retention/2
}
