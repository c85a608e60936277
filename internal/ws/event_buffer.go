package ws

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultBufferMaxLen = 500
	defaultBufferMaxAge = 30 * time.Minute
	bufferSweepInterval = 5 * time.Minute
)

// EventBuffer keeps each owner's recent events so a reconnecting client
// can catch up on an import that is still running.
type EventBuffer struct {
	mu       sync.RWMutex
	events   map[string][]Event
	maxAge   time.Duration
	maxLen   int
	stop     chan struct{}
	stopOnce sync.Once
}

// NewEventBuffer creates an EventBuffer and starts its sweeper goroutine.
func NewEventBuffer(maxLen int, maxAge time.Duration) *EventBuffer {
	eb := &EventBuffer{
		events: make(map[string][]Event),
		maxAge: maxAge,
		maxLen: maxLen,
		stop:   make(chan struct{}),
	}
	go eb.sweepLoop()

	return eb
}

// Stop halts the sweeper. It is safe to call more than once.
func (eb *EventBuffer) Stop() {
	eb.stopOnce.Do(func() { close(eb.stop) })
}

func (eb *EventBuffer) sweepLoop() {
	ticker := time.NewTicker(bufferSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-eb.stop:
			return
		case <-ticker.C:
			eb.sweep(time.Now())
		}
	}
}

// sweep drops owners whose newest event is older than maxAge.
func (eb *EventBuffer) sweep(now time.Time) {
	cutoff := now.Add(-eb.maxAge)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for owner, buf := range eb.events {
		if len(buf) == 0 || buf[len(buf)-1].Time.Before(cutoff) {
			delete(eb.events, owner)
		}
	}
}

// Append stores evt for ownerID, trimming expired and excess entries.
func (eb *EventBuffer) Append(ownerID string, evt *Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	buf := eb.events[ownerID]

	cutoff := time.Now().Add(-eb.maxAge)
	start := sort.Search(len(buf), func(i int) bool { return !buf[i].Time.Before(cutoff) })
	buf = append(buf[start:], *evt)

	if len(buf) > eb.maxLen {
		buf = buf[len(buf)-eb.maxLen:]
	}

	eb.events[ownerID] = buf
}

// Since returns a copy of ownerID's events with ID > lastEventID.
func (eb *EventBuffer) Since(ownerID string, lastEventID uint64) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	buf := eb.events[ownerID]
	i := sort.Search(len(buf), func(i int) bool { return buf[i].ID > lastEventID })
	if i >= len(buf) {
		return nil
	}

	out := make([]Event, len(buf)-i)
	copy(out, buf[i:])

	return out
}

// OldestID returns the oldest buffered event ID for ownerID, or 0.
func (eb *EventBuffer) OldestID(ownerID string) uint64 {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	buf := eb.events[ownerID]
	if len(buf) == 0 {
		return 0
	}

	return buf[0].ID
}
