// Package debugapi exposes a small operator HTTP surface over the
// scheduler: a live WebSocket stream of scheduler decision events, a
// gzip-compressed point-in-time snapshot, and the Prometheus metrics
// endpoint.
package debugapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxStreamClients = 200

// Event is one scheduler decision pushed to stream subscribers.
type Event struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	ActorID  string    `json:"actor_id,omitempty"`
	Endpoint string    `json:"endpoint_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client serializes writes to one connection: Publish runs on the
// scheduler's goroutine while the ping pump runs on its own, and gorilla
// connections allow only one concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub fans scheduler events out to connected WebSocket clients. Single
// broadcaster, same rationale as a metrics hub: avoids N duplicate
// tickers/subscriptions for N clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty event hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Publish pushes ev to every currently connected client, dropping any that
// fail to keep up rather than blocking the scheduler thread that called
// this.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.writeJSON(ev); err != nil {
			go h.unregister(c)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamClients {
		return nil, false
	}
	c := &client{conn: conn}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeStream upgrades the request and pumps ping/pong until the client
// disconnects, so dead connections are detected and reaped.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("debug stream upgrade failed")
		return
	}
	c, ok := h.register(conn)
	if !ok {
		conn.WriteMessage(websocket.CloseMessage, []byte("max clients reached"))
		conn.Close()
		return
	}
	defer h.unregister(c)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Snapshot is what ServeSnapshot dumps, gzip-compressed.
type Snapshot struct {
	Time        time.Time `json:"time"`
	Strategy    string    `json:"strategy"`
	QueueDepth  int       `json:"queue_depth"`
	Endpoints   int       `json:"endpoint_count"`
	Description string    `json:"description,omitempty"`
}

func marshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}
