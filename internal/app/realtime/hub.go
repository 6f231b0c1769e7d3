// Package realtime broadcasts entity-change events to connected clients over
// websockets. The wire protocol mirrors phoenix channel frames: clients join
// collection topics and receive INSERT/UPDATE/DELETE hints that prompt a
// re-fetch.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Topics clients can join. One topic per collection.
const (
	TopicTasks         = "tasks"
	TopicHabits        = "habits"
	TopicFinance       = "finance"
	TopicJournal       = "journal"
	TopicNotifications = "notifications"
	TopicTickets       = "tickets"
)

// Events carried in server-pushed frames.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventReply  = "reply"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
	sendBuffer = 16
)

var knownTopics = map[string]struct{}{
	TopicTasks:         {},
	TopicHabits:        {},
	TopicFinance:       {},
	TopicJournal:       {},
	TopicNotifications: {},
	TopicTickets:       {},
}

// Frame is one websocket message in either direction.
type Frame struct {
	Topic   string      `json:"topic"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
	Ref     string      `json:"ref,omitempty"`
	JoinRef string      `json:"join_ref,omitempty"`
}

type clientFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

// Hub tracks connections and fans events out to the owning user's
// subscribers. A nil hub is valid and drops every publish.
type Hub struct {
	log *logger.Logger

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Hub{
		log:   log,
		conns: make(map[*conn]struct{}),
	}
}

type conn struct {
	userID string
	ws     *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	topics map[string]struct{}

	closeOnce sync.Once
}

func (c *conn) close() {
	c.closeOnce.Do(func() { _ = c.ws.Close() })
}

func (c *conn) join(topic string) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

func (c *conn) leave(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

func (c *conn) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[topic]
	return ok
}

// enqueue hands a frame to the write pump without blocking. A full buffer
// reports failure; the caller decides whether that kills the connection.
func (c *conn) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Serve upgrades the request and pumps frames until the client disconnects.
// The caller has already authenticated the user and checked entitlements.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Browser origin enforcement happens in the CORS middleware.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &conn{
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeConnected()
	h.log.WithField("user_id", userID).Debug("realtime client connected")

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	close(c.send)
	c.close()
	metrics.RealtimeDisconnected()
	h.log.WithField("user_id", userID).Debug("realtime client disconnected")
	return nil
}

// Publish fans one event out to the user's subscribed connections. It never
// blocks; connections too slow to drain their buffer are dropped.
func (h *Hub) Publish(userID, topic, event string, payload interface{}) {
	if h == nil {
		return
	}

	data, err := json.Marshal(Frame{Topic: topic, Event: event, Payload: payload})
	if err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("marshal realtime frame")
		return
	}

	var overflowed []*conn
	h.mu.RLock()
	for c := range h.conns {
		if c.userID != userID || !c.subscribed(topic) {
			continue
		}
		if !c.enqueue(data) {
			overflowed = append(overflowed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range overflowed {
		h.log.WithField("user_id", c.userID).Warn("realtime client too slow, dropping")
		c.close()
	}
}

// ConnCount reports the number of live connections.
func (h *Hub) ConnCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) readPump(c *conn) {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.reply(c, frame, "error", "malformed frame")
			continue
		}

		switch frame.Event {
		case "join", "phx_join":
			if _, ok := knownTopics[frame.Topic]; !ok {
				h.reply(c, frame, "error", "unknown topic")
				continue
			}
			c.join(frame.Topic)
			h.reply(c, frame, "ok", "")
		case "leave", "phx_leave":
			c.leave(frame.Topic)
			h.reply(c, frame, "ok", "")
		case "heartbeat":
			h.reply(c, frame, "ok", "")
		default:
			h.reply(c, frame, "error", "unknown event")
		}
	}
}

func (h *Hub) reply(c *conn, to clientFrame, status, reason string) {
	payload := map[string]string{"status": status}
	if reason != "" {
		payload["reason"] = reason
	}
	data, err := json.Marshal(Frame{
		Topic:   to.Topic,
		Event:   EventReply,
		Payload: payload,
		Ref:     to.Ref,
		JoinRef: to.JoinRef,
	})
	if err != nil {
		return
	}
	if !c.enqueue(data) {
		c.close()
	}
}

func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
