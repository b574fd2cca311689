package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("u1", 4)
	hub.Register(c)
	hub.Subscribe(c, []string{TopicAssignments})

	if hub.ClientCount() != 1 || hub.TopicCount(TopicAssignments) != 1 {
		t.Fatalf("expected 1 client on assignments, got %d/%d", hub.ClientCount(), hub.TopicCount(TopicAssignments))
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicAssignments) != 0 {
		t.Fatal("expected hub to be empty after unregister")
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected Send to be closed")
	}
}

func TestHub_SubscribeRefusesUnknownTopics(t *testing.T) {
	hub := NewHub(zerolog.Nop(), TopicAssignments, TopicStaff)
	c := newClient("", 4)
	hub.Register(c)

	refused := hub.Subscribe(c, []string{TopicAssignments, "billing-secrets", " "})
	if len(refused) != 2 {
		t.Fatalf("expected 2 refused topics, got %v", refused)
	}
	if hub.TopicCount(TopicAssignments) != 1 {
		t.Error("expected assignments subscription")
	}
	if hub.TopicCount("billing-secrets") != 0 {
		t.Error("unknown topic must not be subscribed")
	}
}

func TestHub_PublishToSubscribersOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := newClient("a", 4), newClient("b", 4)
	hub.Register(a)
	hub.Register(b)
	hub.Subscribe(a, []string{TopicAssignments})
	hub.Subscribe(b, []string{TopicStaff})

	ev := NewEvent(TopicAssignments, "assignments.refreshed", map[string]int{"patients": 12})
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case raw := <-a.Send:
		var got Event
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != "assignments.refreshed" || string(got.Data) != `{"patients":12}` {
			t.Errorf("unexpected event %+v", got)
		}
	default:
		t.Fatal("expected subscriber to receive the event")
	}
	select {
	case <-b.Send:
		t.Fatal("non-subscriber must not receive the event")
	default:
	}
}

func TestHub_PublishSkipsFullBuffers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("", 1)
	hub.Register(c)
	hub.Subscribe(c, []string{TopicCenters})

	for i := 0; i < 3; i++ {
		if err := hub.Publish(context.Background(), NewEvent(TopicCenters, "center.updated", nil)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if len(c.Send) != 1 {
		t.Errorf("expected one buffered event, got %d", len(c.Send))
	}
}

func TestHub_HandleMessages(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("", 4)
	hub.Register(c)

	hub.Handle(c, ClientMessage{Action: "subscribe", Topics: []string{TopicAssignments, TopicStaff}})
	hub.Handle(c, ClientMessage{Action: "unsubscribe", Topics: []string{TopicStaff}})
	hub.Handle(c, ClientMessage{Action: "dance", Topics: []string{TopicCenters}})

	if hub.TopicCount(TopicAssignments) != 1 || hub.TopicCount(TopicStaff) != 0 || hub.TopicCount(TopicCenters) != 0 {
		t.Errorf("unexpected subscriptions: %v", c.topics)
	}
}

func TestHub_ConcurrentUse(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newClient("", 8)
			hub.Register(c)
			hub.Subscribe(c, []string{TopicAssignments})
			hub.Publish(context.Background(), NewEvent(TopicAssignments, "x", nil))
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	h := NewHandler(NewHub(zerolog.Nop()), nil, nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	if err := h.Connect(e.NewContext(req, rec)); err == nil {
		t.Error("expected an error for a non-upgrade request")
	}
}

func TestHandler_FullUpgrade(t *testing.T) {
	hub := NewHub(zerolog.Nop(), TopicAssignments, TopicReassignmentRequests)
	h := NewHandler(hub, []string{"http://console.example.org"}, func(c echo.Context) string { return "u-9" })
	e := echo.New()
	h.RegisterRoutes(e)
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topics=" + TopicAssignments

	header := http.Header{"Origin": []string{"http://evil.example.org"}}
	if _, _, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}

	header.Set("Origin", "http://console.example.org")
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool { return hub.TopicCount(TopicAssignments) == 1 })

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{TopicReassignmentRequests}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitFor(t, func() bool { return hub.TopicCount(TopicReassignmentRequests) == 1 })

	hub.Publish(context.Background(), NewEvent(TopicReassignmentRequests, "requests.refreshed", nil))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "requests.refreshed" {
		t.Errorf("expected requests.refreshed, got %s", got.Type)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
