// Package ws bridges the Redis signal bus to browser WebSocket clients.
// Clients subscribe to individual bets; the hub forwards the matching
// stats_changed and bet_updated cues as JSON text frames.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/metrics"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 1024

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64

	// maxSubsPerClient caps how many bets one connection may watch.
	maxSubsPerClient = 128
)

// betTopicPattern matches every per-bet channel on the bus. The hub holds
// a single pattern subscription and fans events out to interested clients.
const betTopicPattern = "bet:*"

// upgrader configures the WebSocket upgrade parameters. Origin checking is
// handled by the CORS layer in front of the handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed bet ids
	mu   sync.RWMutex
}

// clientMsg is the JSON frame a client sends to manage its subscriptions:
// {"action":"subscribe","bet_id":"..."} or {"action":"unsubscribe",...}.
type clientMsg struct {
	Action string `json:"action"`
	BetID  string `json:"bet_id"`
}

// Hub manages connected WebSocket clients and routes bet events from the
// signal bus to the clients watching each bet.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan domain.BetEvent
	register   chan *client
	unregister chan *client
	done       chan struct{} // closed when Run exits; unblocks client goroutines
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub backed by the given signal bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.BetEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// Run starts the hub's event loop and blocks until ctx is cancelled. It must
// be running before HandleWS accepts connections.
func (h *Hub) Run(ctx context.Context) error {
	msgCh, err := h.bus.Subscribe(ctx, betTopicPattern)
	if err != nil {
		return err
	}
	go h.pump(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WSClients.Set(0)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			h.logger.Info("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			h.logger.Info("client disconnected", slog.Int("total_clients", n))

		case ev := <-h.broadcast:
			data := domain.EncodeEvent(ev.Type, ev.BetID)
			h.mu.RLock()
			for c := range h.clients {
				if !c.watching(ev.BetID) {
					continue
				}
				select {
				case c.send <- data:
				default:
					// Send buffer full; the client is too slow, drop.
					h.logger.Warn("dropping event for slow client",
						slog.String("bet_id", ev.BetID),
					)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// pump consumes the bus subscription and feeds decoded events to the
// broadcast loop.
func (h *Hub) pump(ctx context.Context, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("bus subscription closed")
				return
			}
			ev, err := domain.DecodeEvent(data)
			if err != nil || ev.BetID == "" {
				h.logger.Warn("discarding malformed event")
				continue
			}
			select {
			case h.broadcast <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. Connections start with no subscriptions.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// detach hands the client back to the hub, or gives up immediately when the
// hub has already shut down and nobody is draining the unregister channel.
func (c *client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump reads subscription frames from the connection until it closes.
func (c *client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg clientMsg
		if err := json.Unmarshal(message, &msg); err != nil || msg.BetID == "" {
			continue
		}
		c.handleSubscription(msg)
	}
}

// handleSubscription applies a subscribe/unsubscribe frame.
func (c *client) handleSubscription(msg clientMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		if len(c.subs) >= maxSubsPerClient && !c.subs[msg.BetID] {
			return
		}
		c.subs[msg.BetID] = true
	case "unsubscribe":
		delete(c.subs, msg.BetID)
	}
}

// watching reports whether the client subscribed to the given bet.
func (c *client) watching(betID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[betID]
}

// writePump pumps events from the hub to the WebSocket connection as JSON
// text frames and sends periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
