// Package auction implements the message-dispatch specialization of
// pkg/task: a task that consumes an inbound mailbox of wire lines and
// dispatches each to a handler registered for its message type. This is
// the "auction task base" of spec.md §4.2 — generic enough that any
// concrete auction format (pkg/auction/ascending, or future variants)
// is just a Hooks implementation plus a handler table.
package auction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tjgoff/auctioneer/pkg/clock"
	"github.com/tjgoff/auctioneer/pkg/containers"
	"github.com/tjgoff/auctioneer/pkg/log"
	"github.com/tjgoff/auctioneer/pkg/protocol"
	"github.com/tjgoff/auctioneer/pkg/session"
	"github.com/tjgoff/auctioneer/pkg/task"
)

// Handler processes the arguments of one inbound message of a given
// type. Returning an error signals a malformed/invalid argument set;
// the run loop logs it and leaves task state unchanged — handler
// errors never propagate past the dispatch loop (spec.md §7).
type Handler func(args map[string]string) error

// Hooks are the three points spec.md §4.2 lets a concrete auction
// override: initialization, idle polling, and resolution. Using an
// interface here instead of a subclassable abstract base lets
// pkg/auction stay in full control of the run loop itself (see
// DESIGN.md's note on composition over inheritance).
type Hooks interface {
	// Initialize runs once, immediately after the task transitions to
	// Running and registers with its clients.
	Initialize()
	// Idle runs whenever the mailbox poll times out with no message.
	Idle()
	// Resolve runs once, after the run loop stops dispatching messages
	// and before the task unregisters from its clients.
	Resolve()
}

const (
	// idlePoll is the bounded wait on the mailbox before Idle fires,
	// fixed by spec.md §4.2.
	idlePoll = 50 * time.Millisecond
	// defaultGracePeriod is how long the run loop waits after Resolve
	// before transitioning Ending -> Ended, giving outbound writes time
	// to reach clients before a dependent task starts producing output
	// (spec.md §4.2, §9).
	defaultGracePeriod = 5 * time.Second
)

// Task is the auction specialization of task.Task: it adds params,
// bound clients, an inbound mailbox, and a handler table to the bare
// lifecycle state machine.
type Task struct {
	*task.Task

	hooks Hooks

	params  map[string]string
	clients []*session.Client

	mailbox  *containers.SliceQueue[string]
	handlers map[string]Handler

	clk         clock.Clock
	gracePeriod time.Duration

	warnLimiter *rate.Limiter
}

// Config carries the tunables spec.md leaves as "configurable": the
// grace period between resolution and Ended, and the clock used for
// timing (real in production, fake in tests).
type Config struct {
	GracePeriod time.Duration
	Clock       clock.Clock
}

// NewTask constructs an auction task in State New. hooks must be
// non-nil; handlers are registered afterward via PutHandler.
func NewTask(taskID int, hooks Hooks, cfg Config) *Task {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = defaultGracePeriod
	}

	return &Task{
		Task:        task.NewTask(taskID),
		hooks:       hooks,
		mailbox:     containers.NewSliceQueue[string](),
		handlers:    make(map[string]Handler),
		clk:         cfg.Clock,
		gracePeriod: cfg.GracePeriod,
		// At most one malformed-message warning per second for this
		// task. The limiter is shared by every message type, so further
		// warnings within that second are dropped whatever their type.
		warnLimiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// AuctionID is an alias for the embedded task's ID, matching spec.md's
// naming ("auctionId is the same as the task identifier").
func (t *Task) AuctionID() int { return t.ID() }

// SetParams installs this task's configuration parameters. Must be
// called before Run; params are treated as immutable afterward.
func (t *Task) SetParams(params map[string]string) {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	t.params = cp
}

// Params returns the configuration parameters installed by SetParams.
func (t *Task) Params() map[string]string { return t.params }

// SetClients installs the set of clients this task will register with
// on start and broadcast to. Must be called before Run.
func (t *Task) SetClients(clients []*session.Client) {
	t.clients = clients
}

// Clock exposes the injected clock so Hooks implementations can time
// themselves against it instead of calling time.Now directly.
func (t *Task) Clock() clock.Clock { return t.clk }

// PutHandler registers (or replaces) the handler for a message type.
// Must be called before Run.
func (t *Task) PutHandler(msgType string, h Handler) {
	t.handlers[msgType] = h
}

// QueueMessage implements session.Sink: it is how a client's read loop
// hands this task an inbound line. Thread safe, callable from any
// number of client goroutines concurrently.
func (t *Task) QueueMessage(line string) {
	t.mailbox.Add(line)
}

// SendSpec broadcasts the "auction" message carrying every configured
// param, the task's specification sent to bidders before the schedule
// runs (spec.md §6 session lifecycle step 3).
func (t *Task) SendSpec() {
	t.sendMessage("auction", t.params)
}

// sendMessage decorates args with sessionId/auctionId and broadcasts
// the encoded line to every bound client. A per-client write failure is
// logged, not propagated, and that client's connection is closed;
// delivery to the remaining clients continues (spec.md §7). Writes carry
// no deadline, so a client that stops reading without failing blocks
// this loop.
func (t *Task) sendMessage(msgType string, args map[string]string) {
	decorated := protocol.WithIDs(args, t.SessionID(), t.AuctionID())
	line := protocol.Encode(msgType, decorated)

	for _, c := range t.clients {
		if err := c.SendMessage(line); err != nil {
			log.L().Warn("failed to send message to client",
				zap.Int("taskId", t.ID()), zap.String("client", c.ID().String()),
				zap.Error(err))
			_ = c.Close()
		}
	}
}

// SendMessage is the public, subclass-facing entrypoint Hooks
// implementations use to broadcast. It exists only so pkg/auction/ascending
// does not need to reach into an unexported method.
func (t *Task) SendMessage(msgType string, args map[string]string) {
	t.sendMessage(msgType, args)
}

// Run executes the auction task's lifecycle end to end, per spec.md
// §4.2: register, initialize, dispatch until Ending, resolve,
// unregister, grace sleep, then Ended. It is single-shot: calling Run
// more than once on the same task is a no-op after the first call
// leaves State New.
func (t *Task) Run(ctx context.Context) {
	if t.State() != task.New {
		return
	}
	if !t.TryRun() {
		return
	}

	t.register()
	t.hooks.Initialize()

	t.dispatchLoop(ctx)

	t.hooks.Resolve()
	t.unregister()

	t.sleepGrace(ctx)

	t.TryFinish()
}

func (t *Task) dispatchLoop(ctx context.Context) {
	for t.State() < task.Ending {
		line, ok := t.mailbox.PollWait(ctx, idlePoll)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			t.hooks.Idle()
			continue
		}
		t.handleLine(line)
	}
}

func (t *Task) handleLine(line string) {
	msg := protocol.Decode(line)
	if msg.Type == "" {
		return
	}

	sessionID, auctionID, ok := protocol.RequireIDs(msg.Args)
	if !ok {
		t.warnf("dropping message with missing sessionId/auctionId: %q", line)
		return
	}

	// Silently ignore messages meant for other sessions/auctions —
	// spec.md §3, no log, no state change.
	if sessionID != t.SessionID() || auctionID != t.AuctionID() {
		return
	}

	handler, ok := t.handlers[msg.Type]
	if !ok {
		t.warnf("dropping message of unknown type %q", msg.Type)
		return
	}

	if err := handler(msg.Args); err != nil {
		t.warnf("handler for %q rejected arguments: %s", msg.Type, err)
	}
}

func (t *Task) warnf(format string, args ...interface{}) {
	if !t.warnLimiter.Allow() {
		return
	}
	log.L().Warn("auction task dropped message",
		zap.Int("taskId", t.ID()), zap.String("reason", fmt.Sprintf(format, args...)))
}

func (t *Task) register() {
	for _, c := range t.clients {
		c.Register(t)
	}
}

func (t *Task) unregister() {
	for _, c := range t.clients {
		c.Unregister(t)
	}
}

// sleepGrace waits gracePeriod (or until ctx is canceled) before the
// run loop transitions Ending -> Ended, a compatibility fallback that
// stands in for an explicit write-drain barrier.
func (t *Task) sleepGrace(ctx context.Context) {
	timer := t.clk.Timer(t.gracePeriod)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
