package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tjgoff/auctioneer/pkg/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTask is the smallest thing satisfying scheduler.Task: it runs to
// Endable immediately, then waits for the scheduler to end it.
type fakeTask struct {
	*task.Task
	mu      sync.Mutex
	started bool
}

func newFakeTask(id int) *fakeTask {
	return &fakeTask{Task: task.NewTask(id)}
}

func (f *fakeTask) Run(ctx context.Context) {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()

	f.TryRun()
	f.TryEndable()

	for f.State() != task.Ending {
		if ctx.Err() != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	f.TryFinish()
}

func (f *fakeTask) hasStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func TestExecuteRunsIndependentTasks(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddTask(1)
	g.AddTask(2)

	a := newFakeTask(1)
	b := newFakeTask(2)
	tasks := map[int]Task{1: a, 2: b}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := Execute(ctx, g, tasks)
	require.NoError(t, err)
	require.Equal(t, task.Ended, a.State())
	require.Equal(t, task.Ended, b.State())
}

func TestExecuteHonorsStartDependency(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddTask(1)
	g.AddTask(2)
	require.NoError(t, g.AddStartDepend(2, 1)) // 2 may not start until 1 has Ended

	a := newFakeTask(1)
	b := newFakeTask(2)
	tasks := map[int]Task{1: a, 2: b}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Execute(ctx, g, tasks) }()

	// b must not start before a has ended. Read b first: once b has
	// started, a must already be Ended, since Ended is terminal.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if b.hasStarted() {
			require.Equal(t, task.Ended, a.State(), "b started before a ended")
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, <-done)
	require.Equal(t, task.Ended, a.State())
	require.Equal(t, task.Ended, b.State())
}

func TestExecuteHonorsEndDependency(t *testing.T) {
	t.Parallel()

	// a and b must become Endable together before either is actually
	// ended: a depends on b to end, and vice versa.
	g := NewGraph()
	g.AddTask(1)
	g.AddTask(2)
	require.NoError(t, g.AddEndDepend(1, 2))
	require.NoError(t, g.AddEndDepend(2, 1))

	a := newFakeTask(1)
	b := newFakeTask(2)
	tasks := map[int]Task{1: a, 2: b}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, Execute(ctx, g, tasks))
	require.Equal(t, task.Ended, a.State())
	require.Equal(t, task.Ended, b.State())
}

func TestExecuteIgnoresTasksNotInGraph(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddTask(1)

	a := newFakeTask(1)
	stray := newFakeTask(99) // never added to g
	tasks := map[int]Task{1: a, 99: stray}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, Execute(ctx, g, tasks))
	require.Equal(t, task.Ended, a.State())
	require.Equal(t, task.New, stray.State())
}

func TestExecuteCycleStallsUntilContextCanceled(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddTask(1)
	g.AddTask(2)
	require.NoError(t, g.AddStartDepend(1, 2))
	require.NoError(t, g.AddStartDepend(2, 1))

	require.Nil(t, g.TopologicalSort(), "expected cycle to be detected by the precheck")

	a := newFakeTask(1)
	b := newFakeTask(2)
	tasks := map[int]Task{1: a, 2: b}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := Execute(ctx, g, tasks)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, a.hasStarted())
	require.False(t, b.hasStarted())
}
