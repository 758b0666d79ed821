package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Constants for hub configuration
const (
	MaxWebSocketClients   = 100 // Maximum concurrent WebSocket clients
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
	ClientSendBuffer      = 256
)

// PriceUpdateEvent is the message delivered to a user's connections each
// cycle. Data maps ticker to display-currency price.
type PriceUpdateEvent struct {
	Type      string             `json:"type"`
	Data      map[string]float64 `json:"data"`
	Timestamp string             `json:"timestamp"`
}

// NewPriceUpdateEvent builds a priceUpdate event tagged with the given
// cycle timestamp
func NewPriceUpdateEvent(prices map[string]float64, timestamp string) PriceUpdateEvent {
	return PriceUpdateEvent{
		Type:      "priceUpdate",
		Data:      prices,
		Timestamp: timestamp,
	}
}

// Client represents one WebSocket connection belonging to a user
type Client struct {
	id     string
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks WebSocket clients grouped by user and delivers per-user events
type Hub struct {
	clients    map[*Client]bool
	byUser     map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub creates the hub and starts its bookkeeping loop
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	go h.run()
	return h
}

// run handles client registration and removal
func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxWebSocketClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxWebSocketClients)
				continue
			}
			h.clients[client] = true
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client %s connected for user %d. Total clients: %d", client.id, client.userID, clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClientLocked(client)
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client %s disconnected. Total clients: %d", client.id, clientCount)
		}
	}
}

// removeClientLocked drops a client from both maps. Caller holds h.mu.
func (h *Hub) removeClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if group := h.byUser[client.userID]; group != nil {
		delete(group, client)
		if len(group) == 0 {
			delete(h.byUser, client.userID)
		}
	}
}

// SendToUser delivers an event to every connection belonging to the given
// user and returns the number of connections reached. Delivery is
// fire-and-forget: a client with a full send buffer is dropped so that one
// slow connection cannot block the cycle or other users.
func (h *Hub) SendToUser(userID uint, event PriceUpdateEvent) int {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event for user %d: %v", userID, err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	group := h.byUser[userID]
	if len(group) == 0 {
		return 0
	}

	sent := 0
	deadClients := make([]*Client, 0)
	for client := range group {
		select {
		case client.send <- data:
			sent++
		default:
			// Client buffer full, mark for removal
			deadClients = append(deadClients, client)
		}
	}
	for _, client := range deadClients {
		h.removeClientLocked(client)
	}

	return sent
}

// HandleWebSocket upgrades an authenticated request and registers the
// connection under the given user
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID uint) {
	// Check if at capacity before upgrading
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxWebSocketClients
	h.mu.RUnlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, ClientSendBuffer),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection's read deadline alive. Subscriptions are
// managed over the REST API, so inbound messages are discarded.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserCount returns the number of users with at least one connection
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Shutdown closes all client connections and stops the hub
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.byUser = make(map[uint]map[*Client]bool)
	h.mu.Unlock()

	log.Println("WebSocket hub shutdown complete")
}
