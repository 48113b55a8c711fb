package main

import (
	"math/rand"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// pollBackoff doubles the wait after each failed batch, up to max, and drops
// back to the base poll interval once a batch succeeds.
type pollBackoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
	rng     *rand.Rand
}

func newPollBackoff(base, max time.Duration) *pollBackoff {
	return &pollBackoff{
		base:    base,
		max:     max,
		current: base,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *pollBackoff) fail() time.Duration {
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return b.jitter(b.current)
}

func (b *pollBackoff) reset() time.Duration {
	b.current = b.base
	return b.jitter(b.base)
}

func (b *pollBackoff) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(b.rng.Int63n(int64(jitterWindow)))
}
