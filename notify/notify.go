// Package notify carries best-effort progress events from the workflow
// core to connected clients. Delivery is fire and forget: a failed or
// absent subscriber never fails a workflow transition.
package notify

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType classifies a batch event.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventCancelled EventType = "cancelled"
	EventError     EventType = "error"
)

// Event is the message published for a batch.
type Event struct {
	Type    EventType              `json:"type"`
	BatchID string                 `json:"batch_id"`
	At      time.Time              `json:"at"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Marshal renders the event for the wire. Errors are swallowed into an
// empty message because publishing must never propagate failure.
func (e Event) Marshal() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// Publisher is the surface the workflow core publishes through.
type Publisher interface {
	Publish(batchID string, event Event)
}

// Noop discards all events.
type Noop struct{}

func (Noop) Publish(string, Event) {}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(batchID string, event Event) {
	event.BatchID = batchID
	r.mu.Lock()
	r.Events = append(r.Events, event)
	r.mu.Unlock()
}

// ByType returns the recorded events of one type.
func (r *Recorder) ByType(kind EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.Events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}
