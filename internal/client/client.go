package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/protocol"
	"github.com/devaloi/chatrelay/internal/router"
)

const (
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultSendBuffer is the outbound queue size used when none is given.
	DefaultSendBuffer = 256
)

// ErrSendBufferFull is returned by Deliver when the peer is not keeping up.
// The event is dropped but the subscription is kept.
var ErrSendBufferFull = errors.New("send buffer full")

// Conn is a framed, bidirectional connection.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Ping() error
	Close() error
}

// Client runs one connection: requests are read and executed by a
// protocol.Session, replies and pushed events leave through a buffered queue.
// Client implements hub.Channel.
type Client struct {
	conn    Conn
	session *protocol.Session
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	log     *slog.Logger
}

// New creates a Client bound to conn. sendBuffer <= 0 selects DefaultSendBuffer.
func New(r *router.Router, conn Conn, log *slog.Logger, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
	c.session = protocol.NewSession(r, c, log)
	return c
}

// Session returns the request executor for this connection.
func (c *Client) Session() *protocol.Session {
	return c.session
}

// Deliver queues a pushed event without blocking.
func (c *Client) Deliver(evt domain.Event) error {
	data, err := protocol.Encode(protocol.EventResponse(evt))
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return fmt.Errorf("client closed: %w", domain.ErrTransportLost)
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("client closed: %w", domain.ErrTransportLost)
	default:
		c.log.Warn("send buffer full, dropping event", "user", c.session.User(), "event", evt.Type)
		return ErrSendBufferFull
	}
}

// reply queues a response to a request, waiting for room so replies are
// never dropped.
func (c *Client) reply(resp protocol.Response) {
	data, err := protocol.Encode(resp)
	if err != nil {
		c.log.Error("encode reply", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

// Run serves the connection until the peer goes away or ctx ends.
func (c *Client) Run(ctx context.Context) {
	go c.WritePump()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	c.ReadPump(ctx)
}

// ReadPump reads request frames and executes them in order.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.Close()

	for {
		data, err := c.conn.ReadFrame()
		if err != nil {
			if !errors.Is(err, ErrPeerClosed) {
				c.log.Debug("read error", "user", c.session.User(), "error", err)
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		c.reply(c.session.HandleFrame(ctx, data))
	}
}

// WritePump writes queued frames and keeps the peer alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteFrame(data); err != nil {
				c.log.Debug("write error", "user", c.session.User(), "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close ends the connection and releases its subscription. Safe to call
// more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.session.Close()
		close(c.done)
		_ = c.conn.Close()
	})
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
