// Package ascending implements the reference English (ascending-price)
// auction specialization described in spec.md §4.3: a timer-driven
// auction with soft-close extension. It is illustrative of the shape
// pkg/auction's core must support generically, nothing more.
package ascending

import (
	"strconv"
	"time"

	"github.com/pingcap/errors"

	"github.com/tjgoff/auctioneer/pkg/auction"
)

// Message types and argument keys on the wire, matching spec.md §6 and
// the original AscendingAuction.java constants.
const (
	startMsg  = "start"
	statusMsg = "status"
	stopMsg   = "stop"
	bidMsg    = "bid"

	timerKey  = "timer"
	bidderKey = "bidder"
	bidKey    = "bid"
)

// MaxTimeout is the time given to bidders before the first bid arrives.
const MaxTimeout = 30 * time.Second

// MinTimeout is the minimum time remaining a qualifying bid guarantees;
// a bid arriving with less than MinTimeout remaining extends the
// auction's end time to now + MinTimeout ("soft close").
const MinTimeout = 10 * time.Second

// Auction is the ascending-auction Hooks implementation. It is always
// constructed together with its owning *auction.Task via New.
type Auction struct {
	task *auction.Task

	highBidder string
	highBid    int
	endTime    time.Time
}

// New constructs an ascending auction task with the given id, wired to
// the shared auction.Task machinery. cfg.Clock (if set) drives all
// timing so tests can fast-forward instead of sleeping real seconds.
func New(taskID int, cfg auction.Config) *Auction {
	a := &Auction{}
	a.task = auction.NewTask(taskID, a, cfg)
	a.task.PutHandler(bidMsg, a.handleBid)
	return a
}

// Task returns the underlying auction.Task, for the scheduler and
// coordinator to register, bind clients to, and run.
func (a *Auction) Task() *auction.Task { return a.task }

// NewTask adapts New to config.Constructor's signature, so
// cmd/auctioneer can register this auction kind with a config.Factory
// without an auction-specific wrapper at the call site.
func NewTask(taskID int, cfg auction.Config) *auction.Task {
	return New(taskID, cfg).Task()
}

// Initialize sets the end time to now + MaxTimeout and announces the
// auction's timer to every bound client.
func (a *Auction) Initialize() {
	a.endTime = a.task.Clock().Now().Add(MaxTimeout)
	a.sendStart()
}

// Idle checks whether the auction's end time has passed; if so it
// marks the task endable. The scheduler (or a resumed bid) decides
// what happens next.
func (a *Auction) Idle() {
	if !a.task.Clock().Now().Before(a.endTime) {
		a.task.TryEndable()
	}
}

// Resolve announces the winner (or a bidder-less stop if no bids were
// ever received).
func (a *Auction) Resolve() {
	a.sendStop()
}

func (a *Auction) sendStart() {
	seconds := int(MaxTimeout / time.Second)
	a.task.SendMessage(startMsg, map[string]string{
		timerKey: strconv.Itoa(seconds),
	})
}

func (a *Auction) sendStatus() {
	remaining := a.endTime.Sub(a.task.Clock().Now())
	args := map[string]string{
		timerKey: strconv.Itoa(int(remaining / time.Second)),
	}
	if a.highBidder != "" {
		args[bidderKey] = a.highBidder
		args[bidKey] = strconv.Itoa(a.highBid)
	}
	a.task.SendMessage(statusMsg, args)
}

func (a *Auction) sendStop() {
	args := map[string]string{}
	if a.highBidder != "" {
		args[bidderKey] = a.highBidder
		args[bidKey] = strconv.Itoa(a.highBid)
	}
	a.task.SendMessage(stopMsg, args)
}

// handleBid is the "bid" message handler. It requires bidder and bid
// keys, only accepts bids strictly greater than the current high bid,
// applies the soft-close extension, and otherwise drops the bid
// without a response — all per spec.md §4.3.
func (a *Auction) handleBid(args map[string]string) error {
	bidder, ok := args[bidderKey]
	if !ok {
		return errors.Errorf("invalid bid message: no %s", bidderKey)
	}

	bidStr, ok := args[bidKey]
	if !ok {
		return errors.Errorf("invalid bid message: no %s", bidKey)
	}

	bid, err := strconv.Atoi(bidStr)
	if err != nil {
		return errors.Annotatef(err, "invalid bid message: %s is not an integer", bidKey)
	}

	if bid <= a.highBid {
		// Equal or lower bids are dropped without response.
		return nil
	}

	a.highBidder = bidder
	a.highBid = bid

	// A bid that arrives once the task has already moved to Endable may
	// still be accepted; re-promote to Running so the scheduler does
	// not end the auction out from under this new high bid (spec.md
	// §4.3 edge case).
	a.task.TryResume()

	now := a.task.Clock().Now()
	if a.endTime.Sub(now) < MinTimeout {
		a.endTime = now.Add(MinTimeout)
	}

	a.sendStatus()
	return nil
}
