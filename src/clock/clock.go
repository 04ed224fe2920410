// Package clock abstracts the pipeline clock the output pacer paces
// against (spec.md §4.5 Phase B). It stands in for the host media
// framework's clock machinery, which spec.md §1 places out of scope: the
// element only needs a monotonic "now" to schedule against, not the host's
// full clock-negotiation protocol.
package clock

import "time"

// PipelineClock supplies the monotonic running time the pacer schedules
// buffer pushes against.
type PipelineClock interface {
	Now() time.Duration
}

// SystemClock is a PipelineClock backed by the process's monotonic clock,
// zeroed at construction.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose Now() is running time since
// construction.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}
