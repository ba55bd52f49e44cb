// Package clock re-exports benbjohnson/clock behind a narrower interface
// so the rest of the module (the auction run loop's grace sleep, the
// ascending auction's timers) can be driven by a fake clock in tests
// instead of sleeping real seconds. The run loop's 50ms mailbox poll
// does not use it; that wait is always on the wall clock.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock abstracts the subset of benbjohnson/clock.Clock this module
// needs. Production code gets clock.New(); tests get clock.NewMock().
type Clock interface {
	Now() time.Time
	Timer(d time.Duration) *clock.Timer
}

// New returns the real wall clock.
func New() Clock {
	return clock.New()
}

// Mock is re-exported so tests can construct a fake clock and advance it
// without importing benbjohnson/clock directly.
type Mock = clock.Mock

// NewMock returns a fake clock set to the Unix epoch.
func NewMock() *Mock {
	return clock.NewMock()
}
