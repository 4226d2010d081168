package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"livetranslate/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type HubConfig struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBuffer:      16,
		MaxMessageBytes: 512,
	}
}

type ConnectionMetrics interface {
	EventConnectionOpened()
	EventConnectionClosed()
	RecordEventPublished(eventType domain.EventType)
}

// Hub fans session events out to the websocket clients watching each session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]map[*client]struct{}

	cfg     HubConfig
	metrics ConnectionMetrics
	logger  *zap.SugaredLogger
}

type client struct {
	conn      *websocket.Conn
	sessionID domain.SessionID
	userID    domain.UserID
	// send is closed by the hub, under h.mu, once the client is unregistered.
	send chan []byte
}

func NewHub(cfg HubConfig, metrics ConnectionMetrics, logger *zap.SugaredLogger) *Hub {
	def := DefaultHubConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return &Hub{
		sessions: make(map[domain.SessionID]map[*client]struct{}),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Serve registers conn as a watcher of sessionID and blocks until the connection closes.
func (h *Hub) Serve(conn *websocket.Conn, sessionID domain.SessionID, userID domain.UserID) {
	c := &client{
		conn:      conn,
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan []byte, h.cfg.SendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// Publish delivers the event to local watchers. It satisfies ports.EventPublisher.
func (h *Hub) Publish(_ context.Context, event domain.SessionEvent) error {
	h.Deliver(event)
	return nil
}

func (h *Hub) Deliver(event domain.SessionEvent) {
	event.InstanceID = ""
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorw("failed to marshal session event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordEventPublished(event.Type)
	}

	for c := range h.sessions[event.SessionID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warnw("dropping slow event client",
				"session_id", c.sessionID,
				"user_id", c.userID,
			)
			h.removeLocked(c)
		}
	}

	// Nobody can watch an ended session; the writers flush and send a close frame.
	if event.Type == domain.EventSessionEnded {
		for c := range h.sessions[event.SessionID] {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) ConnectionCount(sessionID domain.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.sessions {
		n += len(clients)
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.sessions {
		for c := range clients {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[c.sessionID]
	if !ok {
		clients = make(map[*client]struct{})
		h.sessions[c.sessionID] = clients
	}
	clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.EventConnectionOpened()
	}

	h.logger.Infow("event stream opened",
		"session_id", c.sessionID,
		"user_id", c.userID,
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	close(c.send)
	if h.metrics != nil {
		h.metrics.EventConnectionClosed()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debugw("event write failed", "session_id", c.sessionID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; watchers have nothing to say.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.logger.Infow("event stream closed",
			"session_id", c.sessionID,
			"user_id", c.userID,
		)
	}()

	if h.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debugw("event stream read failed", "session_id", c.sessionID, "error", err)
			}
			return
		}
	}
}

// NewUpgrader accepts any origin when allowed is empty or contains "*".
// Requests without an Origin header come from non-browser clients and are accepted.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	allowAll := len(allowed) == 0
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := origins[strings.TrimRight(strings.ToLower(origin), "/")]
			return ok
		},
	}
}
