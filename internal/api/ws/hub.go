package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/snapvault/internal/auth"
	"github.com/your-org/snapvault/internal/observability"
	"github.com/your-org/snapvault/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID
	groupID string // optional filter
}

// MembershipChecker reports whether a user may watch a group's events.
type MembershipChecker func(c *gin.Context, userID, groupID uuid.UUID) bool

// Hub maintains active WebSocket clients and broadcasts match events.
// A client subscribed to a group gets every event in that group; a client
// without a filter gets only events that resolved to their own identity.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	canView MembershipChecker
}

func NewHub(canView MembershipChecker) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		canView:    canView,
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "user", client.userID, "group", client.groupID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()
			slog.Debug("ws client disconnected", "user", client.userID)

		case message := <-h.broadcast:
			var evt dto.MatchEvent
			if err := json.Unmarshal(message, &evt); err != nil {
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(&evt) {
					continue
				}

				select {
				case client.send <- message:
				default:
					// Client buffer full — disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					observability.WSConnections.Dec()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (c *Client) wants(evt *dto.MatchEvent) bool {
	if c.groupID != "" {
		return evt.GroupID.String() == c.groupID
	}
	return evt.UserID != nil && *evt.UserID == c.userID
}

// BroadcastMatch sends a match event to the interested clients.
func (h *Hub) BroadcastMatch(event *dto.MatchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal match event", "error", err)
		return
	}
	h.broadcast <- data
}

// HandleWS handles WebSocket upgrade requests. Runs behind the auth
// middleware, so the user is already known.
func (h *Hub) HandleWS(c *gin.Context) {
	userID := auth.UserID(c)

	groupFilter := c.Query("group_id")
	if groupFilter != "" {
		groupID, err := uuid.Parse(groupFilter)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
			return
		}
		if h.canView != nil && !h.canView(c, userID, groupID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		userID:  userID,
		groupID: groupFilter,
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// We don't process incoming messages from clients.
		// This loop exists to detect disconnection.
	}
}
