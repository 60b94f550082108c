// Package client implements the Go messaging client: a websocket connection
// with automatic reconnection, a durable outbound queue, and callbacks for
// delivered messages and read receipts.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/client/queue"
	"github.com/Jeyavarma/lost-found-sub000/internal/client/reconnect"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/wire"

	"github.com/gorilla/websocket"
)

// Handlers receive server pushes. Nil handlers are skipped. They run on the
// read loop goroutine, so they must not block.
type Handlers struct {
	OnMessage func(wire.Payload)
	OnRead    func(wire.MessagesRead)
	OnState   func(reconnect.State)
	// OnGaveUp fires when the sweep evicts entries that ran out of retries
	// or expired, so the UI can surface them.
	OnGaveUp func([]queue.Entry)
}

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/api/v1/ws.
	URL string
	// UserID is the identity presented to the server.
	UserID string
	// PingInterval is the liveness probe cadence. A missed pong within the
	// grace window tears the connection down. Zero means 30s.
	PingInterval time.Duration
	// FlushInterval is the cadence of the background queue drain while
	// connected. It resends entries a transient server failure returned to
	// pending and ages out exhausted ones. Zero means 5s.
	FlushInterval time.Duration
	// Policy is the reconnect backoff schedule. Zero value means defaults.
	Policy reconnect.Policy
	Log    *slog.Logger
}

const (
	defaultPingInterval  = 30 * time.Second
	defaultFlushInterval = 5 * time.Second
	pongGrace            = 10 * time.Second
	writeWait            = 10 * time.Second
	dialTimeout          = 10 * time.Second
)

var errConnClosed = errors.New("connection closed")

// Client is the messaging client. Sends go through the outbound queue first,
// so they survive disconnects and restarts; the queue drains on every
// (re)connect and entries leave it only on a server ack.
type Client struct {
	opts     Options
	q        *queue.Queue
	ctrl     *reconnect.Controller
	handlers Handlers
	log      *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	rooms   map[string]struct{}
	retryCh chan struct{}
}

func New(opts Options, q *queue.Queue, handlers Handlers) (*Client, error) {
	if opts.URL == "" || opts.UserID == "" {
		return nil, fmt.Errorf("client: URL and UserID are required")
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.Policy.BaseDelay == 0 {
		opts.Policy = reconnect.DefaultPolicy()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	c := &Client{
		opts:     opts,
		q:        q,
		handlers: handlers,
		log:      opts.Log,
		rooms:    make(map[string]struct{}),
		retryCh:  make(chan struct{}, 1),
	}
	c.ctrl = reconnect.NewController(opts.Policy, opts.Log, handlers.OnState)
	return c, nil
}

// Run dials and keeps the connection alive until ctx is cancelled. When the
// retry budget runs out it parks until Retry is called. Run returns only on
// ctx cancellation.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.ctrl.Connecting()
		conn, err := c.dial(ctx)
		if err == nil {
			c.ctrl.Connected()
			c.onConnected(conn)
			err = c.readLoop(ctx, conn)
			c.teardown(conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug("connection ended", "error", err)

		delay, retry := c.ctrl.Disconnected()
		if !retry {
			// Parked. Wait for a manual retry.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.retryCh:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Retry re-arms a client whose retry budget ran out.
func (c *Client) Retry() bool {
	if !c.ctrl.Retry() {
		return false
	}
	select {
	case c.retryCh <- struct{}{}:
	default:
	}
	return true
}

// State returns the connection lifecycle state.
func (c *Client) State() reconnect.State {
	return c.ctrl.State()
}

// Join subscribes to a room. The subscription is remembered and re-sent after
// every reconnect.
func (c *Client) Join(roomID string) error {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
	return c.writeFrame(wire.Inbound{Type: wire.FrameJoin, RoomID: roomID})
}

// Leave unsubscribes from a room.
func (c *Client) Leave(roomID string) error {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
	return c.writeFrame(wire.Inbound{Type: wire.FrameLeave, RoomID: roomID})
}

// Send enqueues a message and, if connected, flushes immediately. The entry
// stays queued until the server acks it.
func (c *Client) Send(roomID, content string) (queue.Entry, error) {
	e, err := c.q.Enqueue(roomID, content, 0)
	if err != nil {
		return queue.Entry{}, err
	}
	if c.ctrl.State() == reconnect.StateConnected {
		c.flush()
	}
	return e, nil
}

// MarkRead reports messages as read. Receipts are fire-and-forget; a dropped
// frame is re-derivable from history.
func (c *Client) MarkRead(messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return c.writeFrame(wire.Inbound{Type: wire.FrameMarkRead, MessageIDs: messageIDs})
}

// Failed exposes entries the queue gave up on.
func (c *Client) Failed() []queue.Entry {
	return c.q.Failed()
}

// Discard drops a failed entry.
func (c *Client) Discard(correlationID string) error {
	return c.q.Discard(correlationID)
}

// RetryFailed re-queues a failed entry and flushes if connected.
func (c *Client) RetryFailed(correlationID string) error {
	if err := c.q.Retry(correlationID); err != nil {
		return err
	}
	if c.ctrl.State() == reconnect.StateConnected {
		c.flush()
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("X-User-ID", c.opts.UserID)
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

// onConnected rejoins tracked rooms and drains the queue. In-flight entries
// from the previous connection go back to pending first; the server dedupes
// resends on correlation id.
func (c *Client) onConnected(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.mu.Unlock()

	for _, roomID := range rooms {
		if err := c.writeFrame(wire.Inbound{Type: wire.FrameJoin, RoomID: roomID}); err != nil {
			return
		}
	}

	c.q.ResetInFlight()
	c.sweep()
	c.flush()
}

// maintainQueue drains the queue on a timer for as long as the connection is
// up. A transient server failure returns its entry to pending without
// dropping the connection, so something other than the reconnect path has to
// resend it.
func (c *Client) maintainQueue(ctx context.Context) {
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush()
			c.sweep()
		}
	}
}

func (c *Client) sweep() {
	evicted, err := c.q.Sweep()
	if err != nil {
		c.log.Warn("queue sweep failed", "error", err)
	}
	if len(evicted) > 0 && c.handlers.OnGaveUp != nil {
		c.handlers.OnGaveUp(evicted)
	}
}

func (c *Client) flush() {
	err := c.q.Flush(func(e queue.Entry) error {
		msgType := int16(e.MsgType)
		return c.writeFrame(wire.Inbound{
			Type:          wire.FrameMessage,
			RoomID:        e.RoomID,
			CorrelationID: e.CorrelationID,
			Content:       e.Content,
			MsgType:       &msgType,
		})
	})
	if err != nil {
		c.log.Debug("flush incomplete", "error", err)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	pongWait := c.opts.PingInterval + pongGrace
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.pingLoop(pingCtx, conn)
	go c.maintainQueue(pingCtx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(data)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.log.Debug("unreadable frame", "error", err)
		return
	}

	switch envelope.Type {
	case wire.FrameAck:
		var ack wire.Ack
		if err := json.Unmarshal(data, &ack); err == nil && ack.CorrelationID != "" {
			if err := c.q.Ack(ack.CorrelationID); err != nil {
				c.log.Warn("ack not recorded", "correlation_id", ack.CorrelationID, "error", err)
			}
		}
	case wire.FrameMessageFailed:
		var fail wire.Error
		if err := json.Unmarshal(data, &fail); err == nil && fail.CorrelationID != "" {
			transient := fail.Code == "internal_error"
			if err := c.q.Fail(fail.CorrelationID, transient, fail.Error); err != nil {
				c.log.Warn("failure not recorded", "correlation_id", fail.CorrelationID, "error", err)
			}
		}
	case wire.FrameDelivered:
		var msg wire.Message
		if err := json.Unmarshal(data, &msg); err == nil && c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg.Payload)
		}
	case wire.FrameMessagesRead:
		var receipt wire.MessagesRead
		if err := json.Unmarshal(data, &receipt); err == nil && c.handlers.OnRead != nil {
			c.handlers.OnRead(receipt)
		}
	case wire.FrameConnected, wire.FrameJoined, wire.FrameLeft, wire.FramePong:
		// Lifecycle acks need no action here.
	case wire.FrameError:
		var e wire.Error
		if err := json.Unmarshal(data, &e); err == nil {
			c.log.Warn("server reported error", "code", e.Code, "error", e.Error)
		}
	}
}

func (c *Client) writeFrame(frame wire.Inbound) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errConnClosed
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}
