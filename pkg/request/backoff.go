package request

import "time"

// Backoff computes exponential retry delays: Base * 2^attempt, capped at Max.
// Attempt numbering starts at zero.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retrying after the given failed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
