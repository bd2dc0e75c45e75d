package broadcast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/deathmoves/internal/protocol"
)

// WSPeer is a Channel backed by a websocket connection to a Hub.
type WSPeer struct {
	conn    *websocket.Conn
	self    protocol.Participant
	send    chan []byte
	receive chan *protocol.Message
	logger  *log.Logger

	mu sync.Mutex
	hs handlers

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// DialOptions identify the local peer to the hub.
type DialOptions struct {
	URL   string
	Token string
	// Self is used when the hub runs without auth. With a token the hub's
	// identity wins.
	Self protocol.Participant
}

// Dial connects to a hub.
func Dial(ctx context.Context, opts DialOptions, logger *log.Logger) (*WSPeer, error) {
	logger = logger.WithPrefix("peer")

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub URL: %w", err)
	}

	// Convert http/https to ws/wss
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	q := u.Query()
	q.Set("user", opts.Self.UserID)
	q.Set("name", opts.Self.Name)
	q.Set("privileged", strconv.FormatBool(opts.Self.Privileged))
	u.RawQuery = q.Encode()

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	logger.Info("Connecting to hub", "url", u.Redacted())
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	peerCtx, cancel := context.WithCancel(context.Background())
	p := &WSPeer{
		conn:    conn,
		self:    opts.Self,
		send:    make(chan []byte, 256),
		receive: make(chan *protocol.Message, 256),
		logger:  logger,
		ctx:     peerCtx,
		cancel:  cancel,
	}

	go p.readPump()
	go p.writePump()
	go p.eventProcessor()

	logger.Info("Connected to hub")
	return p, nil
}

// Done is closed when the connection ends.
func (p *WSPeer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Publish implements Channel.
func (p *WSPeer) Publish(ctx context.Context, msg *protocol.Message) error {
	out := msg.Clone()
	out.Sender = p.self.UserID
	data, err := protocol.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case p.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

// Subscribe implements Channel.
func (p *WSPeer) Subscribe(h Handler) func() {
	p.mu.Lock()
	id := p.hs.add(h)
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.hs.remove(id)
			p.mu.Unlock()
		})
	}
}

// Close disconnects from the hub.
func (p *WSPeer) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.cancel()
		p.mu.Unlock()

		// WriteControl may run alongside the write pump.
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = p.conn.Close()
		p.logger.Info("Disconnected from hub")
	})
	return nil
}

// readPump handles incoming messages from the hub
func (p *WSPeer) readPump() {
	defer p.cancel()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				p.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			p.logger.Debug("Ignoring malformed message", "error", err)
			continue
		}
		if msg.Sender != "" && msg.Sender == p.self.UserID {
			continue
		}

		p.logger.Debug("Received message", "type", msg.Type, "from", msg.Sender)

		select {
		case p.receive <- msg:
		case <-p.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing messages to the hub
func (p *WSPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Error("Failed to write message", "error", err)
				p.cancel()
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.cancel()
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// eventProcessor dispatches received messages to handlers in arrival order
func (p *WSPeer) eventProcessor() {
	for {
		select {
		case msg := <-p.receive:
			p.mu.Lock()
			hs := p.hs.snapshot()
			p.mu.Unlock()
			for _, h := range hs {
				h(p.ctx, msg)
			}
		case <-p.ctx.Done():
			return
		}
	}
}
