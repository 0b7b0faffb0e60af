package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEventMarshal(t *testing.T) {
	event := Event{
		Type:    EventProgress,
		BatchID: "batch-1",
		At:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Payload: map[string]interface{}{"completed_count": 2},
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(event.Marshal(), &decoded); err != nil {
		t.Fatalf("marshal produced invalid JSON: %v", err)
	}
	if decoded["type"] != "progress" || decoded["batch_id"] != "batch-1" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestRecorder(t *testing.T) {
	recorder := &Recorder{}
	recorder.Publish("batch-1", Event{Type: EventProgress})
	recorder.Publish("batch-1", Event{Type: EventError})
	recorder.Publish("batch-2", Event{Type: EventProgress})

	if got := len(recorder.ByType(EventProgress)); got != 2 {
		t.Errorf("progress events = %d, want 2", got)
	}
	if got := recorder.ByType(EventError); len(got) != 1 || got[0].BatchID != "batch-1" {
		t.Errorf("error events = %v", got)
	}
}

func TestHubPublishToSubscriber(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS("batch-1", w, r)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens on the server goroutine after the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("batch-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish("batch-1", Event{
		Type:    EventComplete,
		Payload: map[string]interface{}{"status": "COMPLETED"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != EventComplete || event.BatchID != "batch-1" {
		t.Errorf("received %+v", event)
	}
	if event.At.IsZero() {
		t.Errorf("publish did not stamp the event time")
	}
}

func TestHubPublishWithoutSubscribersIsSilent(t *testing.T) {
	hub := NewHub()
	hub.Publish("nobody-listening", Event{Type: EventProgress})
	if got := hub.SubscriberCount("nobody-listening"); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
}

func TestHubUnregisterDropsBatch(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS("batch-1", w, r)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("batch-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("batch-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never unregistered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
