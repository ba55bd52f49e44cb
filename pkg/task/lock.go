package task

import "sync"

// StateLock is the monitor a Task's state machine is synchronized on.
// Every Task is constructed with its own private StateLock; a scheduler
// driving several tasks together replaces each task's StateLock with a
// single shared one (SetStateLock) so a state change in any task wakes
// every goroutine waiting on any other task in the batch — the Go
// analogue of the Java original rebinding the `synchronized` monitor
// object used by every task.
//
// Callers never touch Mu/Cond directly from outside this package; it is
// exported only so the scheduler can construct one shared instance and
// hand it to every task it manages.
type StateLock struct {
	Mu   sync.Mutex
	Cond *sync.Cond

	changeMu sync.Mutex
	changeCh chan struct{}
}

// NewStateLock returns a private, unshared state lock.
func NewStateLock() *StateLock {
	l := &StateLock{changeCh: make(chan struct{})}
	l.Cond = sync.NewCond(&l.Mu)
	return l
}

// Changed returns a channel that closes the next time any task sharing
// this lock transitions state. It exists for callers outside this
// package (the scheduler) that need to wait for a state change across
// several tasks without re-entering Mu, which Cond.Wait alone would
// require since Go's sync.Mutex is not reentrant.
//
// Capture the channel before evaluating whatever condition depends on
// task state, then select on it: any transition that happens after the
// capture is guaranteed to close that exact channel, so the wait can
// never miss it.
func (l *StateLock) Changed() <-chan struct{} {
	l.changeMu.Lock()
	defer l.changeMu.Unlock()
	return l.changeCh
}

// broadcastChanged signals Changed's waiters. Called by setState while
// Mu is held; it only ever touches the separate changeMu, so it never
// re-enters Mu.
func (l *StateLock) broadcastChanged() {
	l.changeMu.Lock()
	old := l.changeCh
	l.changeCh = make(chan struct{})
	l.changeMu.Unlock()
	close(old)
}
