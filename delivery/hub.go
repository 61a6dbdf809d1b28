package delivery

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub implements Sender over websocket rooms. Each channel id is a room;
// a player's private thread is the room "thread:<tid>:<userID>". The hub
// is process-local state only.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func threadRoom(tid, userID string) string {
	return "thread:" + tid + ":" + userID
}

// ThreadRoom is the room name a client joins to receive a player's private
// thread messages.
func ThreadRoom(tid, userID string) string {
	return threadRoom(tid, userID)
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Info("client joined room",
				slog.String("room", client.room),
				slog.Int("clients", len(h.rooms[client.room])))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, okClient := clients[client]; okClient {
					client.mu.Lock()
					if !client.closed {
						close(client.send)
						client.closed = true
					}
					client.mu.Unlock()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendToChannel broadcasts the message to every client in the channel's
// room. Returns ErrNoRecipient when the room is empty.
func (h *Hub) SendToChannel(channelID string, msg Message) error {
	if channelID == "" {
		return ErrNoRecipient
	}
	return h.broadcast(channelID, msg)
}

func (h *Hub) SendToUserThread(tid, userID string, msg Message, fallbackChannelID string) error {
	if err := h.broadcast(threadRoom(tid, userID), msg); err == nil {
		return nil
	}
	if fallbackChannelID == "" {
		return fmt.Errorf("thread %s/%s: %w", tid, userID, ErrNoRecipient)
	}
	return h.broadcast(fallbackChannelID, msg)
}

func (h *Hub) broadcast(room string, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message for room %s: %w", room, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[room]
	if !ok || len(clients) == 0 {
		return fmt.Errorf("room %s: %w", room, ErrNoRecipient)
	}
	for client := range clients {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- raw:
		default:
			h.logger.Warn("client send buffer full, dropping message", slog.String("room", room))
		}
		client.mu.Unlock()
	}
	return nil
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	room   string
	closed bool
	mu     sync.Mutex
}

// NewClient registers a websocket connection into a room and returns the
// client. Callers must start ReadPump and WritePump.
func NewClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 64),
		room: room,
	}
	hub.register <- c
	return c
}

// ReadPump drains inbound frames (ignored; the hub is one-way) and
// unregisters on disconnect.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error",
					slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
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
