package reconnect

import (
	"log/slog"
	"sync"
	"time"
)

// State is the connection lifecycle state as the client sees it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateFailed is terminal: the retry budget ran out and only an explicit
	// Retry (the user pressing "reconnect") arms the controller again.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy describes the backoff schedule. The zero value is unusable; use
// DefaultPolicy and override fields as needed.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultPolicy doubles from one second up to thirty, giving up after five
// attempts.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// NextDelay returns the wait before the given attempt (1-based). The schedule
// is BaseDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ShouldRetry reports whether the given attempt (1-based) is within budget.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt <= p.MaxAttempts
}

// Controller tracks connection state and decides when (and whether) to try
// again after a drop. It owns no sockets; the client reports events and acts
// on the verdicts. Safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	state   State
	attempt int

	policy   Policy
	log      *slog.Logger
	onChange func(State)
}

func NewController(policy Policy, log *slog.Logger, onChange func(State)) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		state:    StateDisconnected,
		policy:   policy,
		log:      log,
		onChange: onChange,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connecting marks a dial in progress.
func (c *Controller) Connecting() {
	c.transition(StateConnecting)
}

// Connected marks a successful dial and resets the retry budget.
func (c *Controller) Connected() {
	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
	c.transition(StateConnected)
}

// Disconnected records a drop (or a failed dial) and returns the verdict:
// retry=true with the delay to wait before the next dial, or retry=false
// when the budget is exhausted and the controller parks in the failed state.
func (c *Controller) Disconnected() (delay time.Duration, retry bool) {
	c.mu.Lock()
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	if !c.policy.ShouldRetry(attempt) {
		c.log.Warn("reconnect budget exhausted", "attempts", attempt-1)
		c.transition(StateFailed)
		return 0, false
	}

	delay = c.policy.NextDelay(attempt)
	c.log.Info("connection lost, retrying", "attempt", attempt, "delay", delay)
	c.transition(StateReconnecting)
	return delay, true
}

// Retry re-arms a failed controller. It is the manual recovery path; calling
// it in any other state is a no-op.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	if c.state != StateFailed {
		c.mu.Unlock()
		return false
	}
	c.attempt = 0
	c.mu.Unlock()
	c.transition(StateDisconnected)
	return true
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(next)
	}
}
