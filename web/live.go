package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/beamscope/idgen"
	"github.com/hazyhaar/beamscope/metrics"
	"github.com/hazyhaar/beamscope/store"
)

// liveSendBuffer is the per-client queue depth. A client that cannot
// keep up loses measurements, it never slows the analysis worker down.
const liveSendBuffer = 8

// Hub fans accepted measurements out to websocket clients. Notify is
// the pipeline's measurement hook and must never block, so delivery is
// drop-newest per client, the same policy the frame queues use.
type Hub struct {
	met      *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*liveClient]struct{}
	closed  bool
}

type liveClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(met *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if met == nil {
		met = metrics.New()
	}
	return &Hub{
		met:     met,
		logger:  logger,
		clients: map[*liveClient]struct{}{},
		upgrader: websocket.Upgrader{
			// Single-operator station on a lab network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Notify pushes one measurement to every connected client. Safe to call
// from the analysis worker; a full client queue drops the message.
func (h *Hub) Notify(m store.Measurement) {
	msg, err := json.Marshal(liveMessage(m))
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func liveMessage(m store.Measurement) map[string]any {
	return map[string]any{
		"timestamp": m.Timestamp,
		"cx":        m.CX,
		"cy":        m.CY,
		"temp1":     m.Temps[0],
		"temp2":     m.Temps[1],
		"temp3":     m.Temps[2],
		"temp4":     m.Temps[3],
	}
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("web: live upgrade failed", "error", err)
		return
	}

	c := &liveClient{
		id:   idgen.New(),
		conn: conn,
		send: make(chan []byte, liveSendBuffer),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.met.LiveClients.Inc()
	h.logger.Info("web: live client connected", "client", c.id, "remote", r.RemoteAddr)

	go h.writeLoop(c)

	// Read loop: clients send nothing meaningful, but reading is how we
	// observe the close handshake and network errors.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(c)
}

func (h *Hub) writeLoop(c *liveClient) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	c.conn.Close()
}

// drop unregisters the client; closing send ends its write loop. Notify
// holds the same lock, so no send can race the close.
func (h *Hub) drop(c *liveClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.met.LiveClients.Dec()
		h.logger.Info("web: live client disconnected", "client", c.id)
	}
}

// CloseAll disconnects every client during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*liveClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.drop(c)
	}
}
