package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/deathmoves/internal/auth"
	"github.com/lox/deathmoves/internal/protocol"
)

// Hub connection limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8192
	outboxSize     = 256
)

var (
	ErrConnectionClosed = errors.New("broadcast: connection closed")
	ErrSendBufferFull   = errors.New("broadcast: send buffer full")
)

// Connection is one authenticated peer attached to a Hub. Every frame it
// reads passes through admit before the hub relays it.
type Connection struct {
	ws       *websocket.Conn
	identity auth.Identity
	hub      *Hub
	logger   *log.Logger

	outbox chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newConnection(ws *websocket.Conn, identity auth.Identity, hub *Hub, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ws:       ws,
		identity: identity,
		hub:      hub,
		logger:   logger.WithPrefix("conn").With("user", identity.UserID),
		outbox:   make(chan []byte, outboxSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Identity returns the authenticated peer.
func (c *Connection) Identity() auth.Identity {
	return c.identity
}

func (c *Connection) serve() {
	go c.transmit()
	go c.receive()
}

// Close disconnects the peer. It is safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.outbox)
	c.mu.Unlock()

	c.cancel()
	return c.ws.Close()
}

// Deliver queues an encoded frame. A peer that cannot keep up is dropped
// instead of stalling the relay for everyone else.
func (c *Connection) Deliver(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.outbox <- frame:
		return nil
	default:
	}
	c.logger.Warn("Peer is not keeping up, disconnecting", "queued", len(c.outbox))
	go func() { _ = c.Close() }()
	return ErrSendBufferFull
}

// admit stamps msg with the authenticated sender and reports whether it may
// be relayed. Peers never speak for the hub, and only game masters open
// flows.
func (c *Connection) admit(msg *protocol.Message) bool {
	switch {
	case msg.Type == protocol.TypeRoster:
		return false
	case msg.Type.OpensFlow() && !c.identity.Privileged:
		return false
	}

	msg.Sender = c.identity.UserID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return true
}

func (c *Connection) receive() {
	defer func() { _ = c.Close() }()

	extend := func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
	c.ws.SetReadLimit(maxMessageSize)
	_ = extend("")
	c.ws.SetPongHandler(extend)

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Peer connection failed", "error", err)
			}
			return
		}

		msg, err := protocol.Unmarshal(frame)
		if err != nil {
			c.logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}
		if !c.admit(msg) {
			c.logger.Warn("Refused message from peer", "type", msg.Type, "privileged", c.identity.Privileged)
			continue
		}
		c.hub.relay(c, msg)
	}
}

func (c *Connection) transmit() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		kind, frame := websocket.PingMessage, []byte(nil)
		select {
		case f, ok := <-c.outbox:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			kind, frame = websocket.TextMessage, f
		case <-ping.C:
		case <-c.ctx.Done():
			return
		}

		if err := c.write(kind, frame); err != nil {
			c.logger.Debug("Write failed", "error", err)
			_ = c.Close()
			return
		}
	}
}

func (c *Connection) write(kind int, frame []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(kind, frame)
}
