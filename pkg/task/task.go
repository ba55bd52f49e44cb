// Package task implements the five-state lifecycle state machine shared
// by every auction task, and the guarded, thread-safe primitives used to
// observe and drive its transitions. It has no notion of auctions,
// clients, or messages — those live in pkg/auction — task is deliberately
// the smallest reusable piece of the coordination engine.
package task

import (
	"context"

	"github.com/pingcap/errors"
)

// Task is the unit of work the scheduler drives through the lifecycle
// described in spec.md §4.1. It is meant to be embedded by higher-level
// task kinds (see pkg/auction.Task) rather than used standalone.
type Task struct {
	id        int
	sessionID int

	lock  *StateLock
	state State
}

// NewTask constructs a task with the given taskId in State New, owning
// its own private StateLock. The scheduler will later call SetStateLock
// to move it onto a shared lock before execution.
func NewTask(taskID int) *Task {
	return &Task{
		id:    taskID,
		lock:  NewStateLock(),
		state: New,
	}
}

// ID returns this task's unique identifier within its session.
func (t *Task) ID() int { return t.id }

// SessionID returns the session this task belongs to.
func (t *Task) SessionID() int { return t.sessionID }

// SetSessionID sets the session this task belongs to. It is not
// synchronized: callers must set it before the task starts running, the
// same invariant spec.md places on params/clients/handlers.
func (t *Task) SetSessionID(id int) { t.sessionID = id }

// SetStateLock replaces the lock/condition variable used to guard this
// task's state. It must only be called while the task is still in State
// New; the scheduler uses this to rebind every task in a batch onto one
// shared lock before driving them.
func (t *Task) SetStateLock(lock *StateLock) error {
	t.lock.Mu.Lock()
	defer t.lock.Mu.Unlock()
	if t.state != New {
		return errors.Errorf("task %d: cannot rebind state lock once past State New (currently %s)", t.id, t.state)
	}
	t.lock = lock
	return nil
}

// State returns the current lifecycle state, acquiring the state lock.
func (t *Task) State() State {
	t.lock.Mu.Lock()
	defer t.lock.Mu.Unlock()
	return t.state
}

// WaitForEnd blocks until the task reaches State Ended, or ctx is
// canceled. Spurious wakeups are tolerated: the loop always re-checks
// the state before returning.
func (t *Task) WaitForEnd(ctx context.Context) {
	t.lock.Mu.Lock()
	defer t.lock.Mu.Unlock()

	if t.state == Ended {
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			t.lock.Cond.Broadcast()
		case <-stop:
		}
	}()

	for t.state != Ended {
		if ctx.Err() != nil {
			return
		}
		t.lock.Cond.Wait()
	}
}

// TryEnd attempts the Endable -> Ending transition. It is how a
// scheduler ends a task; it is idempotent in the sense that calling it
// again once the task is already past Endable simply fails.
func (t *Task) TryEnd() bool {
	return t.setState(Ending)
}

// TryResume attempts the Endable -> Running transition. A subclass calls
// this when a late event (e.g. a qualifying bid) means the task should
// no longer be considered endable.
func (t *Task) TryResume() bool {
	return t.setState(Running)
}

// TryRun attempts the New -> Running transition. Called once by a task's
// run loop entrypoint.
func (t *Task) TryRun() bool {
	return t.setState(Running)
}

// TryEndable attempts the Running -> Endable transition. Called by a
// subclass when its local end condition becomes true.
func (t *Task) TryEndable() bool {
	return t.setState(Endable)
}

// TryFinish attempts the Ending -> Ended transition. Called once by a
// task's run loop after resolution and teardown are complete.
func (t *Task) TryFinish() bool {
	return t.setState(Ended)
}

// setState is the state machine's single source of truth: the
// transition table in spec.md §4.1. Every successful transition wakes
// all waiters under the lock.
func (t *Task) setState(next State) bool {
	t.lock.Mu.Lock()
	defer t.lock.Mu.Unlock()

	switch t.state {
	case New:
		if next != Running {
			return false
		}
	case Running:
		if next != Endable {
			return false
		}
	case Endable:
		if next != Running && next != Ending {
			return false
		}
	case Ending:
		if next != Ended {
			return false
		}
	case Ended:
		return false
	default:
		return false
	}

	t.state = next
	t.lock.Cond.Broadcast()
	t.lock.broadcastChanged()
	return true
}
