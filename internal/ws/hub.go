package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenpulse/greenpulse/internal/config"
	"github.com/greenpulse/greenpulse/internal/energy"
	"github.com/greenpulse/greenpulse/internal/meter"
	"github.com/greenpulse/greenpulse/internal/observability"
	"github.com/greenpulse/greenpulse/internal/security"
	"github.com/greenpulse/greenpulse/internal/session"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 32

	// maxControlMessage bounds inbound control frames.
	maxControlMessage = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope is the JSON wrapper around every outbound payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// controlMessage is the inbound signal format: {"action": "start"|"stop"}.
type controlMessage struct {
	Action string `json:"action"`
}

// MeterFactory builds a fresh Meter for one session, bound to the carbon
// intensity looked up at connect time.
type MeterFactory func(carbonIntensity float64) (meter.Meter, error)

// Hub accepts observer WebSocket connections and gives each one its own
// sampling session. Sessions never share state; the hub only tracks them for
// the status surface and for shutdown.
type Hub struct {
	cfg      *config.Config
	seclog   *security.Log
	metrics  *observability.Metrics
	lookup   *energy.Client
	newMeter MeterFactory

	mu      sync.RWMutex
	clients map[*client]*session.Session
}

// New creates a Hub. lookup may serve the fallback mix; newMeter is called
// once per connection.
func New(cfg *config.Config, seclog *security.Log, metrics *observability.Metrics,
	lookup *energy.Client, newMeter MeterFactory) *Hub {
	return &Hub{
		cfg:      cfg,
		seclog:   seclog,
		metrics:  metrics,
		lookup:   lookup,
		newMeter: newMeter,
		clients:  make(map[*client]*session.Session),
	}
}

// Run blocks until ctx is cancelled, then stops all sessions and closes all
// active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Sessions returns a status snapshot of every connected session.
func (h *Hub) Sessions() []session.Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]session.Status, 0, len(h.clients))
	for _, s := range h.clients {
		out = append(out, s.Status())
	}
	return out
}

// Count returns the number of currently connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the HTTP connection to WebSocket, looks up the energy
// mix once, builds the session, and serves control messages until the
// connection closes. Disconnecting always stops the session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	// One lookup per connection; a failure silently falls back — the
	// observer still gets a usable, if approximate, mix.
	info := h.lookup.LookupOrFallback(r.Context(), h.cfg.Energy.Timeout)

	m, err := h.newMeter(info.CarbonIntensity)
	if err != nil {
		slog.Error("ws: could not build meter", "err", err)
		conn.Close()
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	sess := session.New(m, c, h.seclog, h.metrics, info, h.cfg.Session, h.cfg.ESG)

	h.register(c, sess)
	h.metrics.SessionsActive.Inc()
	h.seclog.LogEvent("session_connected", security.SeverityLow, sess.ID())
	slog.Info("ws: observer connected", "session", sess.ID(), "remote", r.RemoteAddr)

	defer func() {
		sess.Stop()
		// The loop is cooperative: an open measurement window runs to
		// completion and still pushes to the sink. The send channel must stay
		// open until the loop has fully exited.
		<-sess.Done()
		h.unregister(c)
		h.metrics.SessionsActive.Dec()
		h.seclog.LogEvent("session_disconnected", security.SeverityLow, sess.ID())
		slog.Info("ws: observer disconnected", "session", sess.ID())
	}()

	// Initial stats so the observer has event-health state right away.
	c.Send(session.EventSecurityStats, h.seclog.Stats())

	go c.writePump()
	h.readLoop(r.Context(), c, sess) // blocks until the connection closes
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client, s *session.Session) {
	h.mu.Lock()
	h.clients[c] = s
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	remaining := make(map[*client]*session.Session, len(h.clients))
	for c, s := range h.clients {
		remaining[c] = s
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, s := range remaining {
		s.Stop()
	}
	// Close channels only after every loop has exited; a loop mid-cycle still
	// pushes its final payloads to the sink.
	for c, s := range remaining {
		<-s.Done()
		close(c.send)
		c.conn.Close()
	}
}

// readLoop processes inbound control messages and detects disconnects.
// The request context cancels when the connection drops, which guarantees
// the session loop terminates even if stop was never sent.
func (h *Hub) readLoop(ctx context.Context, c *client, sess *session.Session) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxControlMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.seclog.LogEvent("invalid_message", security.SeverityMedium, sess.ID())
			c.Send(session.EventError, session.ErrorPayload{Message: "invalid control message"})
			continue
		}

		switch msg.Action {
		case "start":
			if !sess.Start(ctx) {
				// Repeat start while running, or start after stop — a no-op.
				slog.Debug("ws: start ignored", "session", sess.ID(), "state", sess.State())
			}
		case "stop":
			sess.Stop()
		default:
			h.seclog.LogEvent("unknown_action", security.SeverityMedium, msg.Action)
			c.Send(session.EventError, session.ErrorPayload{Message: "unknown action"})
		}
	}
}

// client represents one connected observer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Send implements session.Sink. It marshals the envelope and enqueues it
// without blocking; when the observer's buffer is full the payload is
// dropped — there is no replay of missed pushes.
func (c *client) Send(event string, data any) {
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		slog.Error("ws: marshal payload", "event", event, "err", err)
		return
	}
	select {
	case c.send <- raw:
	default:
		slog.Warn("ws: observer buffer full, payload dropped", "event", event)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
