package transport

import (
	"math/rand"
	"time"
)

// BackoffConfig shapes the reconnect retry schedule.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// NextBackoffDelay computes the wait before reconnect attempt n
// (1-based): the initial delay grown geometrically and capped, then
// spread over [0.5d, 1.5d) when jitter is on. A nil rng pins the
// jitter to the lower bound.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	factor := cfg.Multiplier
	if factor < 1.0 {
		factor = 1.0
	}

	d := float64(cfg.InitialDelay)
	limit := float64(cfg.MaxDelay)
	for i := 1; i < attempt; i++ {
		d *= factor
		if limit > 0 && d >= limit {
			d = limit
			break
		}
	}

	if cfg.Jitter {
		spread := 0.5
		if rng != nil {
			spread = 0.5 + rng.Float64()
		}
		d *= spread
	}
	return time.Duration(d)
}
