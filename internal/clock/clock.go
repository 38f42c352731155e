// Package clock abstracts the time operations used by the periodic tasks so
// tests can drive them deterministically. Production code uses Real; tests
// use Fake and move time forward with Advance.
package clock

import "time"

// Clock is the subset of the time package the bridge depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that receives once d has elapsed. If d <= 0
	// the channel receives immediately.
	After(d time.Duration) <-chan time.Time
	// NewTicker returns a Ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C (capacity 1, drop-if-full like
// time.Ticker). Call Stop to release it.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
