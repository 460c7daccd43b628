package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"pbgui-console/internal/auth"
	"pbgui-console/internal/events"
	"pbgui-console/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by CORS on the HTTP routes and the token is
	// required on the upgrade itself
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSClient represents a WebSocket client
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *WSHub
	username  string
	closeChan chan struct{}
}

// WSHub manages all WebSocket clients
type WSHub struct {
	clients     map[*WSClient]bool
	userClients map[string][]*WSClient // username -> active connections
	broadcast   chan []byte
	register    chan *WSClient
	unregister  chan *WSClient
	done        chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
	logger      *logging.Logger
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:     make(map[*WSClient]bool),
		userClients: make(map[string][]*WSClient),
		broadcast:   make(chan []byte, 4096),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
		done:        make(chan struct{}),
		logger:      logging.WithComponent("websocket"),
	}
}

// Run starts the WebSocket hub and returns after Stop
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.userClients = make(map[string][]*WSClient)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.username != "" {
				h.userClients[client.username] = append(h.userClients[client.username], client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.username != "" {
					h.removeClientFromUserMap(client)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full; let unregister close it
					go h.unregisterClient(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop closes every connection and ends Run
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *WSHub) unregisterClient(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe forwards every bus event to the connected clients and drops
// the connections of users who log out
func (h *WSHub) Subscribe(eventBus *events.EventBus) {
	eventBus.SubscribeAll(h.BroadcastEvent)
	eventBus.Subscribe(events.EventUserLogout, func(event events.Event) {
		if username, ok := event.Data["username"].(string); ok {
			h.DisconnectUser(username)
		}
	})
}

// BroadcastEvent broadcasts an event to all connected clients
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event", "type", event.Type)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", event.Type)
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// removeClientFromUserMap removes a client from the userClients map
// Caller must hold the write lock (h.mu.Lock())
func (h *WSHub) removeClientFromUserMap(client *WSClient) {
	if clients, ok := h.userClients[client.username]; ok {
		for i, c := range clients {
			if c == client {
				h.userClients[client.username] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.userClients[client.username]) == 0 {
			delete(h.userClients, client.username)
		}
	}
}

// DisconnectUser closes every connection of a user
func (h *WSHub) DisconnectUser(username string) {
	if username == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userClients[username]
	if !ok || len(clients) == 0 {
		return
	}

	for _, client := range clients {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			// Closing send makes writePump send a close frame
			close(client.send)
		}
	}
	delete(h.userClients, username)

	h.logger.Info("Disconnected WebSocket connections", "username", username, "count", len(clients))
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.WithError(err).Debug("WebSocket write failed", "username", c.username)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		// Clients only listen; anything they send is discarded
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("WebSocket read failed", "username", c.username)
			}
			return
		}
	}
}

// handleWebSocket upgrades an authenticated request to a websocket
// GET /api/ws
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.requestLog(c).WithError(err).Warn("Failed to upgrade connection")
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       s.hub,
		username:  auth.GetUsername(c),
		closeChan: make(chan struct{}),
	}

	// Queued before registering so the hub cannot have closed send yet
	welcome := events.Event{
		Type:      events.EventConnected,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message":         "WebSocket connection established",
			"catalog_version": s.deps.Registry.Version(),
		},
	}
	if data, err := json.Marshal(welcome); err == nil {
		client.send <- data
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
