package push

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message types pushed to clients.
const (
	MsgTokenUpdated = "token_updated"
	MsgTokenRemoved = "token_removed"
)

// Envelope wraps every pushed message.
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub fans snapshot updates out to connected WebSocket clients. Slow
// clients are dropped rather than allowed to stall the broadcast.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	upgrader websocket.Upgrader
	logger   *logrus.Logger
	prom     *metrics.PrometheusMetrics

	mu       sync.RWMutex
	count    int
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a push hub. prom may be nil.
func NewHub(prom *metrics.PrometheusMetrics) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is already CORS-open; the push channel follows suit
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   utils.GetLogger(),
		prom:     prom,
		stopChan: make(chan struct{}),
	}
}

// Start launches the hub loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
}

// Stop disconnects all clients and halts the hub.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopChan:
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
			}
			h.clients = make(map[*client]bool)
			h.setCount(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount(len(h.clients))
			h.logger.WithField("clients", len(h.clients)).Debug("Push client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount(len(h.clients))
				h.logger.WithField("clients", len(h.clients)).Debug("Push client disconnected")
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.setCount(len(h.clients))
			if h.prom != nil {
				h.prom.WSMessages.Inc()
			}
		}
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	if h.prom != nil {
		h.prom.WSClients.Set(float64(n))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// BroadcastTokenUpdate pushes a fresh snapshot to all clients.
func (h *Hub) BroadcastTokenUpdate(snap *models.TokenSnapshot) {
	h.publish(MsgTokenUpdated, snap)
}

// BroadcastTokenRemoval notifies clients that a token left the live set.
func (h *Hub) BroadcastTokenRemoval(address, reason string) {
	h.publish(MsgTokenRemoved, map[string]string{
		"address": address,
		"reason":  reason,
	})
}

func (h *Hub) publish(msgType string, data interface{}) {
	payload, err := json.Marshal(Envelope{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode push message")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Push broadcast queue full, dropping message")
	}
}

// ServeWS upgrades an HTTP request to a push connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.stopChan:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump drains client frames; the channel is push-only but pongs and
// close frames still need processing.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopChan:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
