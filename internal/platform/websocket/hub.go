// Package websocket pushes live events to open consoles. Clients subscribe
// to topics and the hub fans each event out to the topic's subscribers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Topics consoles subscribe to.
const (
	TopicAssignments          = "assignments"
	TopicReassignmentRequests = "reassignment-requests"
	TopicCenters              = "centers"
	TopicStaff                = "staff"
)

// Event is one notification pushed to consoles.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event with a JSON payload. A payload that cannot be
// encoded is dropped.
func NewEvent(topic, typ string, payload interface{}) Event {
	ev := Event{Type: typ, Topic: topic, Timestamp: time.Now().UTC()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// ClientMessage is what a console sends to change its subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Publisher publishes events. The hub implements it; services depend on it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Client is one open console connection.
type Client struct {
	ID     string
	UserID string
	Send   chan []byte

	topics map[string]struct{}
}

func newClient(userID string, buffer int) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, buffer),
		topics: make(map[string]struct{}),
	}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	allowed map[string]struct{}
	logger  zerolog.Logger
}

// NewHub returns a hub accepting subscriptions to the given topics, or to
// any topic when none are given.
func NewHub(logger zerolog.Logger, topics ...string) *Hub {
	h := &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
	}
	if len(topics) > 0 {
		h.allowed = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			h.allowed[t] = struct{}{}
		}
	}
	return h
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister drops the client and closes its Send channel. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for t := range c.topics {
		h.removeLocked(c, t)
	}
	delete(h.clients, c)
	close(c.Send)
}

// Subscribe adds topics to a client and returns the ones that were refused.
func (h *Hub) Subscribe(c *Client, topics []string) (refused []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if !h.allowedLocked(t) {
			refused = append(refused, t)
			continue
		}
		if h.topics[t] == nil {
			h.topics[t] = make(map[*Client]struct{})
		}
		h.topics[t][c] = struct{}{}
		c.topics[t] = struct{}{}
	}
	return refused
}

func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		h.removeLocked(c, strings.TrimSpace(t))
	}
}

func (h *Hub) removeLocked(c *Client, topic string) {
	delete(c.topics, topic)
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) allowedLocked(topic string) bool {
	if topic == "" {
		return false
	}
	if h.allowed == nil {
		return true
	}
	_, ok := h.allowed[topic]
	return ok
}

// Handle applies a client message.
func (h *Hub) Handle(c *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if refused := h.Subscribe(c, msg.Topics); len(refused) > 0 {
			h.logger.Debug().Str("client_id", c.ID).Strs("topics", refused).Msg("subscription refused")
		}
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topics)
	}
}

// Publish fans the event out to its topic. Slow clients whose buffer is full
// miss the event rather than stall the publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for c := range h.topics[event.Topic] {
		select {
		case c.Send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn().Str("topic", event.Topic).Int("dropped", dropped).Msg("slow clients skipped")
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// Handler upgrades console connections and runs their pumps.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
	userID   func(c echo.Context) string
}

// NewHandler returns a handler accepting connections from the given
// origins. An empty list or "*" accepts any origin.
func NewHandler(hub *Hub, origins []string, userID func(c echo.Context) string) *Handler {
	allowed := make(map[string]struct{}, len(origins))
	open := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			open = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &Handler{
		hub:    hub,
		userID: userID,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if open || origin == "" {
					return true
				}
				_, ok := allowed[strings.TrimRight(origin, "/")]
				return ok
			},
		},
	}
}

func (wh *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/ws", wh.Connect, mw...)
}

// Connect upgrades the request. Initial topics may be given as
// ?topics=a,b.
func (wh *Handler) Connect(c echo.Context) error {
	ws, err := wh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var uid string
	if wh.userID != nil {
		uid = wh.userID(c)
	}
	client := newClient(uid, 64)
	wh.hub.Register(client)
	if topics := c.QueryParam("topics"); topics != "" {
		wh.hub.Subscribe(client, strings.Split(topics, ","))
	}
	wh.hub.logger.Debug().Str("client_id", client.ID).Str("user_id", uid).Msg("console connected")

	go wh.writePump(client, ws)
	go wh.readPump(client, ws)
	return nil
}

func (wh *Handler) readPump(c *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wh.hub.Unregister(c)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessage)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		wh.hub.Handle(c, msg)
	}
}

func (wh *Handler) writePump(c *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, nil)
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
