package ascending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tjgoff/auctioneer/pkg/auction"
	"github.com/tjgoff/auctioneer/pkg/clock"
	"github.com/tjgoff/auctioneer/pkg/task"
)

// runUntilEndable advances a mock clock in small steps, giving the
// task's own goroutine a chance to observe idle timeouts, until the
// task reaches State Endable or the deadline elapses.
func runUntilEndable(t *testing.T, tk *auction.Task, mockClock *clock.Mock, deadline time.Duration) {
	t.Helper()
	start := time.Now()
	for tk.State() < task.Endable {
		if time.Since(start) > deadline {
			t.Fatalf("task did not become endable in time (state=%s)", tk.State())
		}
		mockClock.Add(250 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
}

func TestSingleBidWins(t *testing.T) {
	t.Parallel()

	mockClock := clock.NewMock()
	a := New(1, auction.Config{Clock: mockClock, GracePeriod: time.Millisecond})
	tk := a.Task()
	tk.SetSessionID(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	// Give Run a moment to reach Initialize/Running before bidding.
	for tk.State() < task.Running {
		time.Sleep(time.Millisecond)
	}

	tk.QueueMessage("bid bidder=alice bid=10 sessionId=1 auctionId=1")

	// Wait for the bid to be dispatched before advancing time, so we
	// don't race the auction into Endable before it sees the bid.
	deadline := time.Now().Add(2 * time.Second)
	for a.highBidder == "" {
		if time.Now().After(deadline) {
			t.Fatal("bid was never applied")
		}
		time.Sleep(time.Millisecond)
	}

	runUntilEndable(t, tk, mockClock, 2*time.Second)

	// Scheduler's job normally, but nothing else will end this task in
	// this unit test.
	require.True(t, tk.TryEnd())
	// Fire the grace-period timer, which is keyed off the mock clock and
	// otherwise never elapses on its own. Run creates that timer only
	// after its current mailbox poll returns, so keep advancing the mock
	// clock until Run completes.
	runDeadline := time.After(2 * time.Second)
	for finished := false; !finished; {
		mockClock.Add(time.Second)
		select {
		case <-done:
			finished = true
		case <-runDeadline:
			t.Fatal("Run did not complete after TryEnd")
		case <-time.After(10 * time.Millisecond):
		}
	}

	require.Equal(t, "alice", a.highBidder)
	require.Equal(t, 10, a.highBid)
	require.Equal(t, task.Ended, tk.State())
}

func TestLowerBidIgnored(t *testing.T) {
	t.Parallel()

	mockClock := clock.NewMock()
	a := New(1, auction.Config{Clock: mockClock, GracePeriod: time.Millisecond})
	tk := a.Task()
	tk.SetSessionID(1)

	a.highBidder = "alice"
	a.highBid = 10
	originalEnd := a.task.Clock().Now().Add(MaxTimeout)
	a.endTime = originalEnd

	err := a.handleBid(map[string]string{"bidder": "bob", "bid": "8"})
	require.NoError(t, err)

	require.Equal(t, "alice", a.highBidder)
	require.Equal(t, 10, a.highBid)
	require.Equal(t, originalEnd, a.endTime)
}

func TestSoftCloseExtendsEndTime(t *testing.T) {
	t.Parallel()

	mockClock := clock.NewMock()
	a := New(1, auction.Config{Clock: mockClock})
	a.task.SetSessionID(1)

	a.Initialize() // endTime = now + 30s

	// Advance to t=25s: 5s remain, below MinTimeout(10s).
	mockClock.Add(25 * time.Second)
	require.NoError(t, a.handleBid(map[string]string{"bidder": "alice", "bid": "5"}))

	expected := mockClock.Now().Add(MinTimeout)
	require.Equal(t, expected, a.endTime)

	// Advance to t=34s (9s after the first bid): 1s remains relative to
	// the extended end time, below MinTimeout again.
	mockClock.Add(9 * time.Second)
	require.NoError(t, a.handleBid(map[string]string{"bidder": "bob", "bid": "7"}))

	expected = mockClock.Now().Add(MinTimeout)
	require.Equal(t, expected, a.endTime)
	require.Equal(t, "bob", a.highBidder)
	require.Equal(t, 7, a.highBid)
}

func TestBidAfterEndableResumesRunning(t *testing.T) {
	t.Parallel()

	mockClock := clock.NewMock()
	a := New(1, auction.Config{Clock: mockClock})
	a.task.SetSessionID(1)
	require.True(t, a.task.TryRun())
	a.Initialize()

	mockClock.Add(MaxTimeout + time.Second)
	a.Idle()
	require.Equal(t, task.Endable, a.task.State())

	require.NoError(t, a.handleBid(map[string]string{"bidder": "alice", "bid": "1"}))
	require.Equal(t, task.Running, a.task.State())
}
