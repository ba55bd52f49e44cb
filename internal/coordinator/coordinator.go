// Package coordinator implements the top-level run loop of
// jack.server.AuctionServer: bind a listener, wait for bidders to
// connect, hand every auction task the full client set, announce the
// schedule, then drive it to completion with pkg/scheduler.
package coordinator

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gavv/monotime"
	"github.com/pingcap/errors"
	"go.uber.org/zap"

	"github.com/tjgoff/auctioneer/pkg/auction"
	"github.com/tjgoff/auctioneer/pkg/clock"
	"github.com/tjgoff/auctioneer/pkg/config"
	"github.com/tjgoff/auctioneer/pkg/log"
	"github.com/tjgoff/auctioneer/pkg/protocol"
	"github.com/tjgoff/auctioneer/pkg/scheduler"
	"github.com/tjgoff/auctioneer/pkg/session"
	"github.com/tjgoff/auctioneer/pkg/valuation"
)

// Config carries everything a run needs: where to listen, how long and
// how many clients to wait for, which session this run belongs to (the
// Open Question spec.md §9 leaves unresolved upstream — here it is a
// first-class field, not a hardcoded 1), and the schedule+auctions a
// pkg/config.Load call already parsed.
type Config struct {
	ListenAddr string

	MaxClients  int
	MaxWaitTime time.Duration

	// PreStartDelay is the nicety pause between announcing the
	// schedule to clients and actually executing it.
	PreStartDelay time.Duration

	SessionID int

	Graph   *scheduler.Graph
	Specs   []config.AuctionSpec
	Factory *config.Factory

	// Goods, if non-empty, are handed to a pkg/valuation.Linear scorer
	// whose generated scoring function is broadcast to every bidder
	// once they've all connected, for client-side bid-suggestion
	// tooling (spec.md §1's out-of-scope valuation scoring, brought
	// in-repo per SPEC_FULL.md §6.4). Auction tasks never consult it;
	// it is purely informational to clients.
	Goods []config.GoodWeight

	Clock clock.Clock
}

func (c *Config) setDefaults() {
	if c.MaxWaitTime == 0 {
		c.MaxWaitTime = 10 * time.Second
	}
	if c.PreStartDelay == 0 {
		c.PreStartDelay = 5 * time.Second
	}
	if c.SessionID == 0 {
		c.SessionID = 1
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Run binds cfg.ListenAddr, waits for clients, builds every configured
// auction task, announces the schedule, and executes it — the Go
// shape of AuctionServer.run(). It returns once the schedule has
// finished (or ctx is canceled) and every client socket has been
// closed.
func Run(ctx context.Context, cfg Config) error {
	cfg.setDefaults()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return errors.Annotatef(err, "coordinator: failed to bind %q", cfg.ListenAddr)
	}
	defer ln.Close()

	log.L().Info("listening for bidders", zap.String("addr", ln.Addr().String()))

	clients := waitForClients(ctx, ln, cfg.MaxClients, cfg.MaxWaitTime)
	if len(clients) == 0 {
		log.L().Info("failed to receive any connections")
		return nil
	}
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	broadcastValuation(clients, cfg.SessionID, cfg.Goods)

	auctionTasks := make([]*auction.Task, 0, len(cfg.Specs))
	auctionCfg := auction.Config{Clock: cfg.Clock}
	for _, spec := range cfg.Specs {
		t, err := cfg.Factory.New(spec, auctionCfg)
		if err != nil {
			return err
		}
		t.SetSessionID(cfg.SessionID)
		t.SetClients(clients)
		auctionTasks = append(auctionTasks, t)
	}

	tasks := make(map[int]scheduler.Task, len(auctionTasks))
	for _, t := range auctionTasks {
		tasks[t.AuctionID()] = t
		t.SendSpec()
	}

	// PreStartDelay is a real-world nicety pause, not auction timing
	// logic, so it always runs against the wall clock even when cfg.Clock
	// is a fake driving the auctions themselves.
	select {
	case <-time.After(cfg.PreStartDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return scheduler.Execute(ctx, cfg.Graph, tasks)
}

// broadcastValuation builds a pkg/valuation.Linear scorer from goods
// and sends every client a "valuation" message carrying its generated
// scoring function, once, before any auction starts. It is a no-op if
// goods is empty — most schedules have no valuation section at all.
func broadcastValuation(clients []*session.Client, sessionID int, goods []config.GoodWeight) {
	if len(goods) == 0 {
		return
	}

	weights := make(map[string]float64, len(goods))
	for _, g := range goods {
		weights[g.Name] = g.Weight
	}
	scorer := valuation.NewLinear(weights)
	fn := scorer.GenerateScoringFunction()

	line := protocol.Encode("valuation", map[string]string{
		protocol.SessionKey: strconv.Itoa(sessionID),
		"function":          fn,
	})

	for _, c := range clients {
		if err := c.SendMessage(line); err != nil {
			log.L().Warn("failed to send valuation to client",
				zap.String("client", c.ID().String()), zap.Error(err))
			_ = c.Close()
		}
	}
}

// waitForClients accepts connections until maxWaitTime elapses or
// maxClients have connected (maxClients <= 0 means unbounded), starting
// each client's read loop as it is accepted. It logs the remaining
// time on every accept-timeout tick using a monotonic clock, so a
// system clock adjustment mid-wait cannot produce a misleading or
// negative countdown.
func waitForClients(ctx context.Context, ln net.Listener, maxClients int, maxWaitTime time.Duration) []*session.Client {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		// Non-TCP listeners don't support accept deadlines; fall back to
		// accepting in a goroutine, bounded by maxWaitTime via a context.
		return acceptWithoutDeadline(ctx, ln, maxClients, maxWaitTime)
	}

	start := monotime.Now()
	deadline := start + maxWaitTime

	var clients []*session.Client
	for monotime.Now() < deadline {
		if maxClients > 0 && len(clients) >= maxClients {
			break
		}
		if ctx.Err() != nil {
			break
		}

		remaining := deadline - monotime.Now()
		log.L().Debug("waiting for bidders", zap.Duration("remaining", remaining))
		tcpLn.SetDeadline(time.Now().Add(remaining))

		conn, err := tcpLn.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.L().Warn("error accepting connection", zap.Error(err))
			break
		}

		c := session.New(conn)
		go c.Run()
		clients = append(clients, c)
		log.L().Info("received connection", zap.String("remote", conn.RemoteAddr().String()))
	}

	return clients
}

func acceptWithoutDeadline(ctx context.Context, ln net.Listener, maxClients int, maxWaitTime time.Duration) []*session.Client {
	deadlineCtx, cancel := context.WithTimeout(ctx, maxWaitTime)
	defer cancel()

	var clients []*session.Client
	for maxClients <= 0 || len(clients) < maxClients {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := ln.Accept()
			ch <- result{conn, err}
		}()

		select {
		case r := <-ch:
			if r.err != nil {
				return clients
			}
			c := session.New(r.conn)
			go c.Run()
			clients = append(clients, c)
		case <-deadlineCtx.Done():
			return clients
		}
	}
	return clients
}
