package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Feed clients only send pings
	maxMessageSize = 4 * 1024

	sendBuffer      = 64
	broadcastBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Client is one feed subscriber. A non-empty BotID narrows the feed to that bot.
type Client struct {
	ID    string
	BotID string
	Conn  *websocket.Conn
	Send  chan []byte
	Hub   *Hub

	// mu guards closed and every send that does not come from the hub
	mu     sync.Mutex
	closed bool
}

// closeSend closes Send once. Only the hub calls it.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

type post struct {
	botID string
	frame []byte
}

// Hub fans generated posts out to every connected feed client
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan post
	register   chan *Client
	unregister chan *Client
	dropped    atomic.Int64
	mu         sync.Mutex
	log        *logger.Logger
	now        func() time.Time
}

// NewHub creates a hub. Call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan post, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With("component", "feed"),
		now:        time.Now,
	}
}

// Publish queues content for broadcast. It never blocks; when the queue is
// full the post is dropped.
func (h *Hub) Publish(content models.GeneratedContent) {
	frame, err := ws.Encode(ws.TypePost, content, h.now())
	if err != nil {
		h.log.LogError(err, "Failed to encode feed post", "botId", content.BotID)
		return
	}
	select {
	case h.broadcast <- post{botID: content.BotID, frame: frame}:
	default:
		h.dropped.Add(1)
		h.log.Warn("Feed queue full, dropping post", "botId", content.BotID)
	}
}

// Dropped reports how many posts were discarded because the queue was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Clients reports the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("Feed client registered", "client", client.ID, "botId", client.BotID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.log.Debug("Feed client unregistered", "client", client.ID)
			}
			h.mu.Unlock()

		case p := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.BotID != "" && client.BotID != p.botID {
					continue
				}
				select {
				case client.Send <- p.frame:
				default:
					client.closeSend()
					delete(h.clients, client)
					h.log.Warn("Feed client removed due to blocked channel", "client", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-ctx.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("Feed client read error", "client", c.ID, "error", err.Error())
			}
			return
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != ws.TypePing {
			continue
		}
		c.reply(ws.TypePong, nil)
	}
}

// reply queues a direct answer without blocking the read loop. It reports
// false when the frame was not queued, either because the hub already closed
// the client or because its buffer is full.
func (c *Client) reply(msgType string, content any) bool {
	frame, err := ws.Encode(msgType, content, c.Hub.now())
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and subscribes it to the feed. The optional
// botId query parameter narrows the feed to one bot.
func ServeWs(ctx context.Context, hub *Hub, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("Feed upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		ID:    uuid.NewString(),
		BotID: c.Query("botId"),
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		Hub:   hub,
	}

	client.reply(ws.TypeHello, map[string]string{"clientId": client.ID, "botId": client.BotID})

	select {
	case hub.register <- client:
	case <-ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(ctx)
}
