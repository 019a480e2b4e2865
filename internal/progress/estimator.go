// Package progress manufactures a perceived-progress signal for an
// asynchronous operation whose true completion fraction is unknown.
//
// Three ramp phases crawl toward 30, 60 and 90 percent on slowing timers;
// once the real operation resolves, a fast sprint finishes the bar. The
// emitted value is non-decreasing for the lifetime of one operation and only
// reaches 100 after Finish was called, never before.
package progress

import (
	"context"
	"math/rand/v2"
	"time"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRamping
	PhaseFinalizing
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRamping:
		return "ramping"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Snapshot is one emitted progress reading.
type Snapshot struct {
	Value float64
	Phase Phase
}

type ramp struct {
	tick    time.Duration
	floor   float64
	ceiling float64
	incBase float64
	incRand float64
}

// Config controls the estimator's timing. The zero value uses the production
// cadence; tests shrink the ticks.
type Config struct {
	// RampTicks are the intervals of the three ramp phases (0-30, 30-60,
	// 60-90).
	RampTicks [3]time.Duration
	// FinalTick is the interval of the sprint to 100 after Finish.
	FinalTick time.Duration

	// RandFloat replaces the increment randomness source. Nil uses
	// math/rand/v2. Returned values must lie in [0, 1).
	RandFloat func() float64
}

func (c Config) withDefaults() Config {
	if c.RampTicks[0] <= 0 {
		c.RampTicks[0] = 200 * time.Millisecond
	}
	if c.RampTicks[1] <= 0 {
		c.RampTicks[1] = 300 * time.Millisecond
	}
	if c.RampTicks[2] <= 0 {
		c.RampTicks[2] = 400 * time.Millisecond
	}
	if c.FinalTick <= 0 {
		c.FinalTick = 30 * time.Millisecond
	}
	if c.RandFloat == nil {
		c.RandFloat = rand.Float64
	}
	return c
}

// Estimator owns the progress state for one operation. Not reusable: create
// a fresh one per operation.
type Estimator struct {
	cfg    Config
	finish chan struct{}
	fail   chan struct{}
}

func New(cfg Config) *Estimator {
	return &Estimator{
		cfg:    cfg.withDefaults(),
		finish: make(chan struct{}),
		fail:   make(chan struct{}),
	}
}

// Start launches the estimator and returns its snapshot stream. One owning
// goroutine multiplexes all timers, so the value needs no locking; each ramp
// tick only advances the value while it lies inside that ramp's band, and
// clamps to the band's ceiling.
//
// The channel closes after Complete is emitted, after Fail, or when ctx is
// cancelled. The final Complete snapshot is emitted only after Finish, i.e.
// only once the real operation has resolved.
func (e *Estimator) Start(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 16)
	go e.run(ctx, out)
	return out
}

// Finish tells the estimator the underlying operation resolved; the value
// sprints to 100 and Complete is emitted. Safe to call once.
func (e *Estimator) Finish() {
	close(e.finish)
}

// Fail tells the estimator the underlying operation failed. The stream emits
// a final Idle/0 snapshot and closes without ever reaching Complete.
func (e *Estimator) Fail() {
	close(e.fail)
}

func (e *Estimator) run(ctx context.Context, out chan<- Snapshot) {
	defer close(out)

	ramps := []ramp{
		{tick: e.cfg.RampTicks[0], floor: 0, ceiling: 30, incBase: 0.5, incRand: 2},
		{tick: e.cfg.RampTicks[1], floor: 30, ceiling: 60, incBase: 0.2, incRand: 0.8},
		{tick: e.cfg.RampTicks[2], floor: 60, ceiling: 90, incBase: 0.1, incRand: 0.4},
	}

	tickers := make([]*time.Ticker, len(ramps))
	for i, r := range ramps {
		tickers[i] = time.NewTicker(r.tick)
	}
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	value := 0.0
	emit := func(phase Phase) bool {
		select {
		case out <- Snapshot{Value: value, Phase: phase}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(PhaseRamping) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.fail:
			// Reset for the caller: failed, not still running.
			value = 0
			emit(PhaseIdle)
			return
		case <-e.finish:
			e.sprint(ctx, out, value)
			return
		case <-tickers[0].C:
			value = advance(value, ramps[0], e.cfg.RandFloat)
		case <-tickers[1].C:
			value = advance(value, ramps[1], e.cfg.RandFloat)
		case <-tickers[2].C:
			value = advance(value, ramps[2], e.cfg.RandFloat)
		}
		if !emit(PhaseRamping) {
			return
		}
	}
}

func (e *Estimator) sprint(ctx context.Context, out chan<- Snapshot, value float64) {
	ticker := time.NewTicker(e.cfg.FinalTick)
	defer ticker.Stop()

	for value < 100 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		value += 2
		if value > 100 {
			value = 100
		}
		phase := PhaseFinalizing
		if value >= 100 {
			phase = PhaseComplete
		}
		select {
		case out <- Snapshot{Value: value, Phase: phase}:
		case <-ctx.Done():
			return
		}
	}
}

// advance applies one tick of r. A tick outside the ramp's band is a no-op,
// so the effective value is always the furthest-advanced phase's value.
func advance(value float64, r ramp, randFloat func() float64) float64 {
	if value < r.floor || value >= r.ceiling {
		return value
	}
	value += randFloat()*r.incRand + r.incBase
	if value > r.ceiling {
		value = r.ceiling
	}
	return value
}
