package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans events out to WebSocket subscribers grouped by batch.
type Hub struct {
	mu      sync.RWMutex
	batches map[string]map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{batches: make(map[string]map[*websocket.Conn]bool)}
}

// Publish broadcasts the event to every subscriber of the batch. Slow or
// broken connections are dropped; the caller never sees an error.
func (h *Hub) Publish(batchID string, event Event) {
	event.BatchID = batchID
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	message := event.Marshal()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.batches[batchID] {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Debug("Dropping batch subscriber: ", err)
			conn.Close()
			delete(h.batches[batchID], conn)
		}
	}
}

// Register adds a subscriber for a batch.
func (h *Hub) Register(batchID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.batches[batchID] == nil {
		h.batches[batchID] = make(map[*websocket.Conn]bool)
	}
	h.batches[batchID][conn] = true
	log.Info("Subscriber connected for batch ", batchID)
}

// Unregister removes and closes a subscriber.
func (h *Hub) Unregister(batchID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.batches[batchID]; ok {
		if clients[conn] {
			delete(clients, conn)
			conn.Close()
		}
		if len(clients) == 0 {
			delete(h.batches, batchID)
		}
	}
}

// SubscriberCount reports the live subscribers for a batch.
func (h *Hub) SubscriberCount(batchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.batches[batchID])
}

// ServeWS upgrades the request and keeps the connection subscribed until
// the client goes away.
func (h *Hub) ServeWS(batchID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade error: ", err)
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	h.Register(batchID, conn)
	defer h.Unregister(batchID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
