// Package ws is the concrete Transport: a STOMP-like pub/sub protocol
// carried over gorilla/websocket connections, grounded on the teacher's
// ws.Hub/ws.Client pattern.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/epic1st/marketfeed/internal/metrics"
	"github.com/epic1st/marketfeed/internal/transport"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	topicMarketPrefix = "/topic/market/"
	appSubscribePath  = "/app/market/subscribe"
	sendBufferSize    = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is the JSON shape of one inbound STOMP-like frame.
type clientFrame struct {
	Command     string          `json:"command"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body,omitempty"`
}

const (
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdSend        = "SEND"
)

// Lifecycle is the subset of the session lifecycle the hub drives.
type Lifecycle interface {
	OnSubscribeTopic(sessionID string)
	OnSubscribeAction(sessionID string, rawPayload []byte)
	OnDisconnect(sessionID string)
}

// client is one live connection.
type client struct {
	sessionID string
	userID    string
	conn      *websocket.Conn
	send      chan []byte

	mu     sync.Mutex
	topics map[string]bool
}

// Hub is the concrete transport.Transport: it tracks live clients and their
// topic subscriptions and implements best-effort, non-blocking delivery.
type Hub struct {
	auth      transport.Authenticator
	lifecycle Lifecycle

	mu      sync.RWMutex
	clients map[string]*client // sessionID -> client
}

// NewHub creates an empty Hub. SetLifecycle must be called before serving
// connections.
func NewHub(auth transport.Authenticator) *Hub {
	return &Hub{
		auth:    auth,
		clients: make(map[string]*client),
	}
}

// SetLifecycle wires the session lifecycle that receives parsed events.
func (h *Hub) SetLifecycle(l Lifecycle) {
	h.lifecycle = l
}

// ActiveConnections returns the number of currently connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection, authenticates it, and pumps frames.
// Authentication failure rejects the connection before any session state
// is created.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		log.Printf("[WS] authentication failed for %s: %v", r.RemoteAddr, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{
		sessionID: uuid.NewString(),
		userID:    userID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		topics:    make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c.sessionID] = c
	count := len(h.clients)
	h.mu.Unlock()
	metrics.SetActiveConnections(count)

	log.Printf("[WS] connected user=%s session=%s", userID, c.sessionID)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	return h.auth.Authenticate(token)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.sessionID)
		count := len(h.clients)
		h.mu.Unlock()
		metrics.SetActiveConnections(count)
		close(c.send)
		c.conn.Close()
		if h.lifecycle != nil {
			h.lifecycle.OnDisconnect(c.sessionID)
		}
		log.Printf("[WS] disconnected session=%s", c.sessionID)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(c, data)
	}
}

func (h *Hub) handleFrame(c *client, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("[WS] dropping malformed frame from session=%s: %v", c.sessionID, err)
		return
	}

	switch frame.Command {
	case cmdSubscribe:
		c.mu.Lock()
		c.topics[frame.Destination] = true
		c.mu.Unlock()
		if strings.HasPrefix(frame.Destination, topicMarketPrefix) {
			if h.lifecycle != nil {
				h.lifecycle.OnSubscribeTopic(c.sessionID)
			}
		}
	case cmdUnsubscribe:
		c.mu.Lock()
		delete(c.topics, frame.Destination)
		c.mu.Unlock()
	case cmdSend:
		if frame.Destination == appSubscribePath && h.lifecycle != nil {
			h.lifecycle.OnSubscribeAction(c.sessionID, frame.Body)
		}
	default:
		log.Printf("[WS] unrecognized command %q from session=%s", frame.Command, c.sessionID)
	}
}

// Send implements transport.Transport: broadcast to every client currently
// subscribed to destination.
func (h *Hub) Send(destination string, payload []byte) error {
	h.mu.RLock()
	recipients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		c.mu.Lock()
		subscribed := c.topics[destination]
		c.mu.Unlock()
		if subscribed {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		deliver(c, payload)
	}
	return nil
}

// SendToSession implements transport.Transport: deliver directly to one
// session's queue, independent of topic subscriptions. Unknown sessions
// are a silent no-op.
func (h *Hub) SendToSession(sessionID, _ string, payload []byte) error {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	deliver(c, payload)
	return nil
}

// deliver is a non-blocking send: a congested client drops the message
// rather than stalling the dispatcher.
func deliver(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Printf("[WS] send buffer full for session=%s, dropping message", c.sessionID)
	}
}
