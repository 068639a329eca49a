package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/buddywatch/internal/auth"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/observability"
	"github.com/your-org/buddywatch/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // credentials are checked before upgrade
	},
}

// Client is a connected WebSocket of one principal.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	principal string
}

type message struct {
	owner string
	data  []byte
}

// Hub fans asset events out to the owning principal's sockets only.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop until ctx is cancelled. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "owner", client.principal)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.drop(client)
			}
			h.mu.Unlock()
			slog.Debug("ws client disconnected", "owner", client.principal)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.principal != msg.owner {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	observability.WSConnections.Dec()
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAssetEvent delivers ev to the sockets of ev.OwnerID.
func (h *Hub) BroadcastAssetEvent(ev models.AssetEvent) {
	data, err := json.Marshal(dto.WSEvent{
		Type:      string(ev.Type),
		AssetID:   ev.AssetID,
		Title:     ev.Title,
		Thumbnail: ev.Thumbnail,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}

	select {
	case h.broadcast <- message{owner: ev.OwnerID, data: data}:
	default:
		slog.Warn("ws broadcast queue full, event dropped", "asset_id", ev.AssetID, "type", ev.Type)
	}
}

// HandleWS upgrades an authenticated request to a WebSocket.
func (h *Hub) HandleWS(c *gin.Context) {
	principal := auth.Principal(c)
	if principal == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing or invalid credentials", Code: "unauthenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 64),
		principal: principal,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

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
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		// incoming messages are ignored; the loop detects disconnection
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
