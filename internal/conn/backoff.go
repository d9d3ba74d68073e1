package conn

import (
	"math/rand"
	"time"
)

// Backoff computes reconnection delays: base * 2^(attempt-1), capped at Max,
// plus up to 10% random jitter so a fleet of dashboards does not retry in
// lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// rand overrides the jitter source in tests. Nil means math/rand.
	rand func() float64
}

const jitterFraction = 0.10

// Delay returns the wait before reconnect attempt n (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if delay > b.Max {
		delay = b.Max
	}

	r := b.rand
	if r == nil {
		r = rand.Float64
	}
	jitter := time.Duration(float64(delay) * jitterFraction * r())
	return delay + jitter
}
