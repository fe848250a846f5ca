// Package realtime provides the broadcast side channel: refresh signals and
// per-user pushes delivered over WebSockets. It implements a hub-and-spoke
// pattern where clients subscribe to topics and receive events broadcast to
// those topics.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Broadcaster is the realtime port the core emits through. Emission never
// blocks and never fails the triggering mutation.
type Broadcaster interface {
	Emit(event string, payload any)
	EmitToRoom(room, event string, payload any)
}

// UserRoom returns the per-user topic name.
func UserRoom(userID string) string { return "user:" + userID }

// Event is a single realtime message sent to WebSocket clients.
type Event struct {
	Event     string    `json:"event"`
	Room      string    `json:"room,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ClientMessage is an inbound subscribe/unsubscribe request from a client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

// Hub is the central connection manager tracking clients and their topic
// subscriptions. All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	log     zerolog.Logger
}

// NewHub creates a Hub ready to manage WebSocket clients.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister removes a client from the hub and all topic subscriptions, and
// closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to an already-registered client.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	client.Topics = append(client.Topics, topics...)
}

// Emit sends an event to every connected client.
func (h *Hub) Emit(event string, payload any) {
	data, ok := h.marshal(Event{Event: event, Timestamp: time.Now(), Payload: payload})
	if !ok {
		return
	}
	// The read lock is held for the whole loop: Unregister closes Send under
	// the write lock, so a client present here cannot be closed mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.all {
		trySend(client, data)
	}
}

// EmitToRoom sends an event to the clients subscribed to a topic.
func (h *Hub) EmitToRoom(room, event string, payload any) {
	data, ok := h.marshal(Event{Event: event, Room: room, Timestamp: time.Now(), Payload: payload})
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[room] {
		trySend(client, data)
	}
}

func (h *Hub) marshal(event Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn().Err(err).Str("event", event.Event).Msg("realtime: failed to marshal event")
		return nil, false
	}
	return data, true
}

// trySend must be called with h.mu held.
func trySend(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// Client buffer full; skip to avoid blocking.
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of clients subscribed to a topic.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[room])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// HandleConnect upgrades an HTTP connection to WebSocket, subscribes the
// client to its personal room plus the shared calendar topic, and starts the
// read/write pumps. It expects AuthMiddleware to have run.
func (h *Hub) HandleConnect(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	topics := []string{"calendar"}
	if userID, ok := c.Get("userID"); ok {
		if id, ok := userID.(string); ok {
			topics = append(topics, UserRoom(id))
		}
	}

	client := &Client{
		ID:     uuid.New().String(),
		Topics: topics,
		Send:   make(chan []byte, 256),
	}
	h.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
}

func (h *Hub) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.Unregister(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		if msg.Action == "subscribe" {
			h.Subscribe(client, msg.Topics)
		}
	}
}

func (h *Hub) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}
