package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/deathmoves/internal/auth"
	"github.com/lox/deathmoves/internal/protocol"
)

// Hub relays messages between websocket peers. It is the only party that
// emits ROSTER messages, and it stamps every relayed message with the
// authenticated sender.
type Hub struct {
	upgrader    websocket.Upgrader
	validator   auth.Validator
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	runOnce     sync.Once
}

// NewHub creates a hub that authenticates peers with validator.
func NewHub(validator auth.Validator, logger *log.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	if validator == nil {
		validator = auth.NewNoopValidator()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Peers are VTT browser tabs and terminal clients on any origin
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		validator:   validator,
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("hub"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Handler returns the hub's HTTP routes and starts the connection loop.
func (h *Hub) Handler() http.Handler {
	h.runOnce.Do(func() { go h.run() })

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// ListenAndServe serves the hub on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("Starting hub", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = h.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Stop()
		return srv.Shutdown(shutdownCtx)
	}
}

// Stop closes every connection and stops the loop.
func (h *Hub) Stop() error {
	h.cancel()

	h.mu.Lock()
	for conn := range h.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	h.mu.Unlock()

	return nil
}

// Participants returns the connected peers, sorted by name then id.
func (h *Hub) Participants() []protocol.Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.participantsLocked()
}

func (h *Hub) participantsLocked() []protocol.Participant {
	seen := make(map[string]bool)
	out := make([]protocol.Participant, 0, len(h.connections))
	for conn := range h.connections {
		id := conn.Identity()
		if seen[id.UserID] {
			continue
		}
		seen[id.UserID] = true
		out = append(out, protocol.Participant{
			UserID:     id.UserID,
			Name:       id.Name,
			Privileged: id.Privileged,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// run handles connection lifecycle
func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			total := len(h.connections)
			h.mu.Unlock()
			h.logger.Info("Peer connected", "user", conn.Identity().UserID, "total", total)
			h.broadcastRoster()

		case conn := <-h.unregister:
			h.mu.Lock()
			_, ok := h.connections[conn]
			if ok {
				delete(h.connections, conn)
			}
			total := len(h.connections)
			h.mu.Unlock()
			if ok {
				_ = conn.Close() // Ignore close errors during unregistration
				h.logger.Info("Peer disconnected", "user", conn.Identity().UserID, "total", total)
				h.broadcastRoster()
			}

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) broadcastRoster() {
	h.mu.RLock()
	participants := h.participantsLocked()
	h.mu.RUnlock()

	msg, err := protocol.NewMessage(protocol.Roster{Participants: participants})
	if err != nil {
		h.logger.Error("Failed to build roster", "error", err)
		return
	}
	h.relay(nil, msg)
}

// relay sends msg to every connection except from.
func (h *Hub) relay(from *Connection, msg *protocol.Message) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", "error", err, "type", msg.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for conn := range h.connections {
		if conn == from {
			continue
		}
		if from != nil && conn.Identity().UserID == from.Identity().UserID {
			continue
		}
		if err := conn.Deliver(data); err != nil {
			h.logger.Debug("Failed to send message to peer", "error", err, "user", conn.Identity().UserID)
			continue
		}
		count++
	}

	h.logger.Debug("Relayed message", "type", msg.Type, "recipients", count)
}

// handleWebSocket authenticates and upgrades a peer.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Warn("Rejected peer", "error", err, "remote", r.RemoteAddr)
		http.Error(w, err.Error(), status)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(ws, identity, h, h.logger)
	select {
	case h.register <- conn:
	case <-h.ctx.Done():
		_ = conn.Close()
		return
	}
	conn.serve()

	// Connection cleanup is handled by the connection itself
	go func() {
		<-conn.ctx.Done()
		select {
		case h.unregister <- conn:
		case <-h.ctx.Done():
		}
	}()
}

// authenticate resolves the peer identity. With auth disabled the peer
// names itself through query parameters.
func (h *Hub) authenticate(r *http.Request) (auth.Identity, error) {
	q := r.URL.Query()
	token := q.Get("token")
	if bearer, ok := bearerToken(r.Header.Get("Authorization")); ok {
		token = bearer
	}

	id, err := h.validator.Validate(r.Context(), token)
	if err != nil {
		return auth.Identity{}, err
	}
	if id != nil {
		return *id, nil
	}

	self := auth.Identity{
		UserID: q.Get("user"),
		Name:   q.Get("name"),
	}
	if self.UserID == "" {
		return auth.Identity{}, fmt.Errorf("%w: user is required", auth.ErrInvalidToken)
	}
	if self.Name == "" {
		self.Name = self.UserID
	}
	self.Privileged, _ = strconv.ParseBool(q.Get("privileged"))
	return self, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):], true
	}
	return "", false
}

// handleHealth handles health check requests
func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

// healthPoll is how often WaitForHealthy retries.
const healthPoll = 100 * time.Millisecond

// WaitForHealthy blocks until the hub behind hubURL answers its health check
// or ctx ends. hubURL is the address peers dial, so ws and wss schemes are
// accepted as well as http and https.
func WaitForHealthy(ctx context.Context, hubURL string) error {
	u, err := url.Parse(hubURL)
	if err != nil {
		return fmt.Errorf("invalid hub URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path, u.RawQuery = "/health", ""
	target := u.String()

	client := &http.Client{Timeout: time.Second}
	healthy := func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}

	ticker := time.NewTicker(healthPoll)
	defer ticker.Stop()
	for !healthy() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("hub %s not healthy: %w", u.Host, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
