// Package reconnect implements the transceiver's reconnect controller
// (spec.md §4.6): it tracks attempt count and current backoff and decides
// whether and when to retry a failed handshake.
package reconnect

import (
	"sync"
	"time"
)

// Config mirrors the reconnect-related options of spec.md §6.
type Config struct {
	Enabled        bool
	InitialDelayMs int
	MaxBackoffMs   int
	MaxReconnects  int // 0 = unlimited when Enabled
}

// Controller tracks ReconnectState (spec.md §3): attempts_made and
// current_backoff_ms. current_backoff_ms monotonically doubles from
// InitialDelayMs until clamped at MaxBackoffMs; attempts_made is
// intentionally never reset mid-session (spec.md §9 open question,
// resolved in DESIGN.md: the source's monotonic behavior is preserved).
type Controller struct {
	cfg Config

	mu        sync.Mutex
	attempts  int
	backoffMs int
}

// New creates a Controller from cfg.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// AttemptsMade returns the number of failed attempts recorded so far.
func (c *Controller) AttemptsMade() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// NextBackoff applies the policy of spec.md §4.6 for one failed attempt:
// it returns the backoff duration to sleep before retrying and whether a
// retry is permitted at all. When retry is false the caller must stop
// permanently; the backoff duration is meaningless in that case.
func (c *Controller) NextBackoff() (backoff time.Duration, retry bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Enabled {
		return 0, false
	}
	if c.cfg.MaxReconnects > 0 && c.attempts >= c.cfg.MaxReconnects {
		return 0, false
	}

	c.backoffMs = max(c.cfg.InitialDelayMs, min(c.backoffMs*2, c.cfg.MaxBackoffMs))
	c.attempts++

	return time.Duration(c.backoffMs) * time.Millisecond, true
}

// Reset clears attempt/backoff state. Not called by the transceiver on a
// successful handshake (see the Controller doc); exposed for callers that
// reset state at a lifecycle boundary (Inactive -> Prepared, spec.md
// §4.1).
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
	c.backoffMs = 0
}
