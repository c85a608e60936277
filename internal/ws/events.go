package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types pushed to owners while an import runs.
const (
	EventImportProgress = "import.progress"
	EventImportPlanned  = "import.planned"
	EventImportApplied  = "import.applied"
	EventImportFailed   = "import.failed"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id"`
	OwnerID string          `json:"-"`
	Data    json.RawMessage `json:"data"`
	Time    time.Time       `json:"time"`
}

// ProgressData is the payload of an import.progress event.
type ProgressData struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// SubscribeMsg is sent by the client on connect to request event replay.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// ResetMsg tells the client the requested events are gone and it should
// re-fetch the latest plan.
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventSequence hands out monotonic event IDs per owner.
type EventSequence struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

// NewEventSequence creates a new EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{counters: make(map[string]*atomic.Uint64)}
}

// Next returns the next sequence number for ownerID, starting at 1.
func (es *EventSequence) Next(ownerID string) uint64 {
	es.mu.Lock()
	counter, ok := es.counters[ownerID]
	if !ok {
		counter = &atomic.Uint64{}
		es.counters[ownerID] = counter
	}
	es.mu.Unlock()

	return counter.Add(1)
}
