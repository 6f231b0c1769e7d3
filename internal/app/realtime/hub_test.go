package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub, userID string) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, userID)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial: %v", err)
	}
	return ws, server
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return frame
}

func writeFrame(t *testing.T, ws *websocket.Conn, frame Frame) {
	t.Helper()
	if err := ws.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func payloadStatus(t *testing.T, frame Frame) string {
	t.Helper()
	payload, ok := frame.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected payload type %T", frame.Payload)
	}
	status, _ := payload["status"].(string)
	return status
}

func TestHubJoinPublishLeave(t *testing.T) {
	hub := NewHub(nil)
	ws, server := dialTestHub(t, hub, "user-1")
	defer server.Close()
	defer ws.Close()

	writeFrame(t, ws, Frame{Topic: TopicTasks, Event: "join", Ref: "1"})
	reply := readFrame(t, ws)
	if reply.Event != EventReply || payloadStatus(t, reply) != "ok" || reply.Ref != "1" {
		t.Fatalf("unexpected join reply: %#v", reply)
	}

	if got := hub.ConnCount(); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	// A publish for another user must not reach this connection; the next
	// frame read has to be the one addressed to user-1.
	hub.Publish("user-2", TopicTasks, EventInsert, map[string]string{"id": "foreign"})
	hub.Publish("user-1", TopicTasks, EventInsert, map[string]string{"id": "t-1"})

	event := readFrame(t, ws)
	if event.Topic != TopicTasks || event.Event != EventInsert {
		t.Fatalf("unexpected event frame: %#v", event)
	}
	payload, _ := event.Payload.(map[string]interface{})
	if payload["id"] != "t-1" {
		t.Fatalf("event for wrong entity: %#v", event.Payload)
	}

	// Publishes to topics the client never joined are dropped.
	hub.Publish("user-1", TopicFinance, EventUpdate, map[string]string{"id": "acct"})
	hub.Publish("user-1", TopicTasks, EventDelete, map[string]string{"id": "t-1"})
	event = readFrame(t, ws)
	if event.Event != EventDelete {
		t.Fatalf("expected the tasks delete, got %#v", event)
	}

	writeFrame(t, ws, Frame{Topic: TopicTasks, Event: "leave", Ref: "2"})
	reply = readFrame(t, ws)
	if payloadStatus(t, reply) != "ok" {
		t.Fatalf("unexpected leave reply: %#v", reply)
	}
}

func TestHubHeartbeatAndUnknowns(t *testing.T) {
	hub := NewHub(nil)
	ws, server := dialTestHub(t, hub, "user-1")
	defer server.Close()
	defer ws.Close()

	writeFrame(t, ws, Frame{Topic: "phoenix", Event: "heartbeat", Ref: "1"})
	if payloadStatus(t, readFrame(t, ws)) != "ok" {
		t.Fatalf("heartbeat should ack ok")
	}

	writeFrame(t, ws, Frame{Topic: "secrets", Event: "join", Ref: "2"})
	if payloadStatus(t, readFrame(t, ws)) != "error" {
		t.Fatalf("unknown topic join should ack error")
	}

	writeFrame(t, ws, Frame{Topic: TopicTasks, Event: "shout", Ref: "3"})
	if payloadStatus(t, readFrame(t, ws)) != "error" {
		t.Fatalf("unknown event should ack error")
	}
}

func TestHubNilSafePublish(t *testing.T) {
	var hub *Hub
	hub.Publish("user-1", TopicTasks, EventInsert, nil)
	if hub.ConnCount() != 0 {
		t.Fatalf("nil hub reports connections")
	}
}

func TestHubDisconnectDropsConnection(t *testing.T) {
	hub := NewHub(nil)
	ws, server := dialTestHub(t, hub, "user-1")
	defer server.Close()

	writeFrame(t, ws, Frame{Topic: TopicTasks, Event: "join", Ref: "1"})
	readFrame(t, ws)
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
