// Package session owns one bidder connection: the line-oriented read
// loop that fans inbound lines out to every registered task, and the
// serialized write path tasks use to broadcast outbound messages.
package session

import (
	"bufio"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tjgoff/auctioneer/pkg/log"
)

// Sink receives raw inbound lines. pkg/auction.Task implements this so
// pkg/session never needs to import pkg/auction — auction tasks are
// just mailboxes from the session's point of view.
type Sink interface {
	QueueMessage(line string)
}

// Client is a passive fan-out router for one bidder connection. It does
// not interpret message content; every inbound line is handed to every
// currently registered Sink.
type Client struct {
	id   uuid.UUID
	conn net.Conn

	writeMu sync.Mutex
	writer  *bufio.Writer

	regMu sync.Mutex
	tasks []Sink

	closed atomic.Bool
}

// New wraps conn as a Client. The caller is responsible for starting
// ReadLoop in its own goroutine.
func New(conn net.Conn) *Client {
	return &Client{
		id:     uuid.New(),
		conn:   conn,
		writer: bufio.NewWriter(conn),
	}
}

// ID is an opaque connection identifier used only for log correlation;
// it has no bearing on the wire protocol's sessionId/auctionId fields.
func (c *Client) ID() uuid.UUID { return c.id }

// Register adds task to the set of sinks that receive every inbound
// line from this point forward. Thread safe.
func (c *Client) Register(t Sink) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.tasks = append(c.tasks, t)
}

// Unregister removes task from the sink set. A task that unregisters
// while a line is already mid-dispatch may still receive that one line
// — spec.md §4.5 tolerates this race; the auction task's own
// sessionId/auctionId filter (pkg/auction) discards anything stray.
func (c *Client) Unregister(t Sink) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	for i, s := range c.tasks {
		if s == t {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			return
		}
	}
}

// SendMessage appends a newline and writes line to the client. Callers
// (many auction tasks broadcasting concurrently) are serialized by
// writeMu, matching spec.md §4.5's "concurrent senders must be
// serialized by the implementation."
func (c *Client) SendMessage(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.WriteString(line); err != nil {
		return err
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// ReadLoop reads lines until EOF or error, enqueueing each into every
// currently registered task's mailbox. It holds the registration lock
// only briefly per line, per spec.md §4.5. It returns nil on a clean
// EOF and a non-nil error on any other read failure; callers should log
// and close the client on error, per spec.md §7's network-error policy.
func (c *Client) ReadLoop(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()

		c.regMu.Lock()
		sinks := make([]Sink, len(c.tasks))
		copy(sinks, c.tasks)
		c.regMu.Unlock()

		for _, s := range sinks {
			s.QueueMessage(line)
		}
	}
	return scanner.Err()
}

// Run starts the read loop against the client's own connection. A
// terminal read error is logged (not returned) and the connection is
// closed, confining the failure to this client so other clients are
// unaffected (spec.md §7).
func (c *Client) Run() {
	if err := c.ReadLoop(c.conn); err != nil {
		log.L().Warn("client read loop ended with error",
			zap.String("client", c.id.String()), zap.Error(err))
		_ = c.Close()
	}
}
