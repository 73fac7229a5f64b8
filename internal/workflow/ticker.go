package workflow

import (
	"time"

	"github.com/lthibault/jitterbug/v2"
)

// Ticker delivers poll ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a ticker for one poll loop.
type TickerFunc func() Ticker

// JitterTicker returns a TickerFunc producing tickers that fire every
// interval, offset by normally distributed jitter with the given standard
// deviation. A zero stdev gives a fixed interval.
func JitterTicker(interval, stdev time.Duration) TickerFunc {
	return func() Ticker {
		return &jitterTicker{t: jitterbug.New(interval, &jitterbug.Norm{Stdev: stdev, Mean: 0})}
	}
}

type jitterTicker struct {
	t *jitterbug.Ticker
}

func (j *jitterTicker) C() <-chan time.Time { return j.t.C }
func (j *jitterTicker) Stop()               { j.t.Stop() }

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
