package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tjgoff/auctioneer/pkg/task"
)

// Task is the subset of an auction task's exported surface the
// scheduler needs in order to drive it. *auction.Task satisfies this
// directly (via its embedded *task.Task plus its own Run method), so
// callers pass auction tasks in without any adapter.
type Task interface {
	ID() int
	State() task.State
	SetStateLock(*task.StateLock) error
	TryEnd() bool
	WaitForEnd(ctx context.Context)
	Run(ctx context.Context)
}

// Execute drives tasks to completion following the repeat-loop in
// spec.md §4.4: end whatever is endable and wait for each task it ended
// to finish ending, start whatever is startable, and repeat until
// nothing is startable and every task in g has Ended. Ids present in tasks but not
// added to g are ignored entirely — they are never started or ended by
// this call.
//
// Before the loop, every task's state lock is replaced with one shared
// lock (pkg/task.StateLock), so a transition in any task can wake a
// goroutine waiting on any other — the Go analogue of spec.md §4.4's
// "replace every task's state-lock with the scheduler's single shared
// lock."
//
// Execute does not precheck the start graph for cycles; a cyclic
// schedule stalls inside this call for as long as ctx allows (spec.md
// §9's documented Open Question). Callers that want to fail fast should
// call g.TopologicalSort() and reject an empty result before calling
// Execute.
func Execute(ctx context.Context, g *Graph, tasks map[int]Task) error {
	shared := task.NewStateLock()
	for _, t := range tasks {
		if !g.Has(t.ID()) {
			continue
		}
		if err := t.SetStateLock(shared); err != nil {
			return err
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)

	for {
		if ctx.Err() != nil {
			_ = eg.Wait()
			return ctx.Err()
		}

		endableSnapshot := g.endableTasks(tasks)
		var ending []Task
		for _, t := range endableSnapshot {
			if t.TryEnd() {
				ending = append(ending, t)
			}
		}
		for _, t := range ending {
			t.WaitForEnd(ctx)
		}

		startable := g.startableTasks(tasks)
		for _, t := range startable {
			t := t
			eg.Go(func() error {
				t.Run(egCtx)
				return nil
			})
		}

		if len(startable) == 0 && isEnded(g, tasks) {
			break
		}

		if err := waitForEndableChange(ctx, shared, g, tasks, endableSnapshot); err != nil {
			_ = eg.Wait()
			return err
		}
	}

	return eg.Wait()
}

// waitForEndableChange blocks until the set of endable tasks differs
// from snapshot, or ctx is canceled. It captures the shared lock's
// change token before each comparison so a transition that happens
// between the comparison and the select cannot be missed (the token
// captured just before the comparison is exactly the one that a
// concurrent transition will close).
func waitForEndableChange(ctx context.Context, shared *task.StateLock, g *Graph, tasks map[int]Task, snapshot []Task) error {
	for {
		changed := shared.Changed()
		current := g.endableTasks(tasks)
		if !taskSetEqual(current, snapshot) {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Graph) endableTasks(tasks map[int]Task) []Task {
	var out []Task
	for id, t := range tasks {
		if !g.Has(id) || t.State() != task.Endable {
			continue
		}

		deps := g.endDeps[id]
		ok := true
		for dep := range deps {
			other, present := tasks[dep]
			if !present || other.State() < task.Endable {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, t)
		}
	}
	return out
}

func (g *Graph) startableTasks(tasks map[int]Task) []Task {
	var out []Task
	for id, t := range tasks {
		if !g.Has(id) || t.State() != task.New {
			continue
		}

		ok := true
		for dep := range g.startDeps[id] {
			other, present := tasks[dep]
			if !present || other.State() != task.Ended {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		// Never start a task whose end-dependency partner we could
		// never observe — we'd be unable to ever end it.
		for dep := range g.endDeps[id] {
			if _, present := tasks[dep]; !present {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, t)
		}
	}
	return out
}

// isEnded reports whether every task in g has reached Ended. A task
// still in New counts as not ended, so a task whose start dependencies
// can never be met keeps Execute waiting.
func isEnded(g *Graph, tasks map[int]Task) bool {
	for id, t := range tasks {
		if g.Has(id) && t.State() != task.Ended {
			return false
		}
	}
	return true
}

func taskSetEqual(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[int]struct{}, len(a))
	for _, t := range a {
		ids[t.ID()] = struct{}{}
	}
	for _, t := range b {
		if _, ok := ids[t.ID()]; !ok {
			return false
		}
	}
	return true
}
