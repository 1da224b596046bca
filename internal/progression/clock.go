package progression

import (
	"sync"
	"time"
)

// Clock starts per-round countdowns. Callbacks may run on any goroutine;
// the engine serializes them with its own lock and ignores stale timers.
type Clock interface {
	StartCountdown(seconds int, onTick func(remaining int), onExpire func()) Timer
}

// Timer is a cancellable countdown handle. Stop is idempotent.
type Timer interface {
	Stop()
}

// TickerClock counts down in real time.
type TickerClock struct {
	// Interval is the length of one countdown second. Zero means time.Second.
	Interval time.Duration
}

// StartCountdown implements Clock.
func (c TickerClock) StartCountdown(seconds int, onTick func(remaining int), onExpire func()) Timer {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := &tickerTimer{done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		remaining := seconds
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				remaining--
				if remaining <= 0 {
					onExpire()
					return
				}
				onTick(remaining)
			}
		}
	}()

	return t
}

type tickerTimer struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTimer) Stop() {
	t.once.Do(func() { close(t.done) })
}

// ManualClock is a deterministic Clock driven by Advance.
type ManualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock     *ManualClock
	remaining int
	onTick    func(int)
	onExpire  func()
	stopped   bool
}

func (t *manualTimer) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

// NewManualClock returns a clock that only moves when told to.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// StartCountdown implements Clock.
func (c *ManualClock) StartCountdown(seconds int, onTick func(remaining int), onExpire func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, remaining: seconds, onTick: onTick, onExpire: onExpire}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves every live countdown forward one second at a time.
// Callbacks run on the caller's goroutine without the clock lock held.
func (c *ManualClock) Advance(seconds int) {
	for i := 0; i < seconds; i++ {
		c.mu.Lock()
		live := make([]*manualTimer, 0, len(c.timers))
		for _, t := range c.timers {
			if !t.stopped {
				live = append(live, t)
			}
		}
		c.mu.Unlock()

		for _, t := range live {
			c.mu.Lock()
			if t.stopped {
				c.mu.Unlock()
				continue
			}
			t.remaining--
			expired := t.remaining <= 0
			if expired {
				t.stopped = true
			}
			remaining := t.remaining
			c.mu.Unlock()

			if expired {
				t.onExpire()
			} else {
				t.onTick(remaining)
			}
		}
	}
}

// Started is the number of countdowns ever started.
func (c *ManualClock) Started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Active is the number of countdowns not yet stopped or expired.
func (c *ManualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// FireStale invokes the expiry callback of countdown i even if it was
// stopped, simulating a timer goroutine that lost the race with Stop.
func (c *ManualClock) FireStale(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.onExpire()
}
