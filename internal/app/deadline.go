package app

import (
	"sync"
	"time"
)

// MaxTickInterval bounds how late an expiry may be noticed.
const MaxTickInterval = time.Second

// DeadlineState is the lifecycle of a DeadlineController.
type DeadlineState string

const (
	DeadlineIdle    DeadlineState = "idle"
	DeadlineRunning DeadlineState = "running"
	DeadlineFired   DeadlineState = "fired"
)

// DeadlineController counts down to a single deadline and calls onExpire exactly once.
// A controller is single-use: Start may be called only once.
type DeadlineController struct {
	clock    Clock
	interval time.Duration
	onExpire func()

	mu       sync.Mutex
	state    DeadlineState
	started  bool
	deadline time.Time
	stop     chan struct{}
}

// NewDeadlineController builds an idle controller. Intervals outside (0, MaxTickInterval] are clamped.
func NewDeadlineController(clock Clock, interval time.Duration, onExpire func()) *DeadlineController {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 || interval > MaxTickInterval {
		interval = MaxTickInterval
	}
	return &DeadlineController{
		clock:    clock,
		interval: interval,
		onExpire: onExpire,
		state:    DeadlineIdle,
	}
}

// Start moves idle -> running and begins ticking. Starting twice panics.
func (c *DeadlineController) Start(deadline time.Time) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		panic("deadline controller already used")
	}
	c.started = true
	c.state = DeadlineRunning
	c.deadline = deadline
	c.stop = make(chan struct{})
	stop := c.stop
	ticker := c.clock.NewTicker(c.interval)
	c.mu.Unlock()

	go c.run(ticker, stop)
}

func (c *DeadlineController) run(ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if c.Poll() {
				return
			}
		}
	}
}

// Poll compares the clock with the deadline once and fires if it has passed.
// It reports whether the controller is no longer running.
func (c *DeadlineController) Poll() bool {
	c.mu.Lock()
	if c.state != DeadlineRunning {
		c.mu.Unlock()
		return true
	}
	if c.clock.Now().Before(c.deadline) {
		c.mu.Unlock()
		return false
	}
	c.state = DeadlineFired
	close(c.stop)
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire()
	}
	return true
}

// Cancel stops a running controller without firing. It is a no-op in any other state.
func (c *DeadlineController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != DeadlineRunning {
		return
	}
	c.state = DeadlineIdle
	close(c.stop)
}

func (c *DeadlineController) State() DeadlineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deadline returns the configured deadline, zero before Start.
func (c *DeadlineController) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// Remaining returns the time left before expiry, never negative.
func (c *DeadlineController) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != DeadlineRunning {
		return 0
	}
	left := c.deadline.Sub(c.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}
