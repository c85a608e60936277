package ws

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func startHub(t *testing.T) *Hub {
	t.Helper()

	h := NewHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	return h
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var evt Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	return Event{}
}

func TestEventSequence_PerOwner(t *testing.T) {
	seq := NewEventSequence()

	if got := seq.Next("a"); got != 1 {
		t.Errorf("first a = %d, want 1", got)
	}
	if got := seq.Next("a"); got != 2 {
		t.Errorf("second a = %d, want 2", got)
	}
	if got := seq.Next("b"); got != 1 {
		t.Errorf("first b = %d, want 1", got)
	}
}

func TestEventBuffer_SinceAndTrim(t *testing.T) {
	eb := NewEventBuffer(3, time.Hour)
	defer eb.Stop()

	for i := uint64(1); i <= 5; i++ {
		eb.Append("owner", &Event{ID: i, Time: time.Now()})
	}

	if got := eb.OldestID("owner"); got != 3 {
		t.Errorf("OldestID = %d, want 3", got)
	}

	since := eb.Since("owner", 3)
	if len(since) != 2 || since[0].ID != 4 || since[1].ID != 5 {
		t.Errorf("Since(3) = %+v, want IDs 4,5", since)
	}

	if got := eb.Since("owner", 5); got != nil {
		t.Errorf("Since(5) = %+v, want nil", got)
	}
	if got := eb.Since("other", 0); got != nil {
		t.Errorf("Since on unknown owner = %+v, want nil", got)
	}
}

func TestEventBuffer_SweepDropsStaleOwners(t *testing.T) {
	eb := NewEventBuffer(10, time.Minute)
	defer eb.Stop()

	eb.Append("stale", &Event{ID: 1, Time: time.Now().Add(-2 * time.Minute)})
	eb.Append("fresh", &Event{ID: 1, Time: time.Now()})

	eb.sweep(time.Now())

	if eb.OldestID("stale") != 0 {
		t.Error("stale owner should be swept")
	}
	if eb.OldestID("fresh") != 1 {
		t.Error("fresh owner should survive the sweep")
	}
}

func TestHub_BroadcastEventIsOwnerScoped(t *testing.T) {
	h := startHub(t)

	alice := NewClient(h, nil, nil, "alice", "")
	bob := NewClient(h, nil, nil, "bob", "")
	h.Register(alice)
	h.Register(bob)
	waitForClients(t, h, 2)

	h.Publish("alice", EventImportProgress, ProgressData{RunID: "r1", Message: "hash pass started"})

	evt := receive(t, alice)
	if evt.Type != EventImportProgress || evt.ID != 1 {
		t.Errorf("event = %+v, want import.progress #1", evt)
	}

	var data ProgressData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.RunID != "r1" {
		t.Errorf("run_id = %q, want r1", data.RunID)
	}

	select {
	case msg := <-bob.send:
		t.Errorf("bob received %s, want nothing", msg)
	default:
	}
}

func TestHub_Unregister(t *testing.T) {
	h := startHub(t)

	c := NewClient(h, nil, nil, "alice", "")
	h.Register(c)
	waitForClients(t, h, 1)

	h.Unregister(c)
	waitForClients(t, h, 0)

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_PerOwnerLimit(t *testing.T) {
	h := startHub(t)

	for range maxClientsPerOwner {
		h.Register(NewClient(h, nil, nil, "alice", ""))
	}
	waitForClients(t, h, maxClientsPerOwner)

	extra := NewClient(h, nil, nil, "alice", "")
	h.Register(extra)

	select {
	case _, ok := <-extra.send:
		if ok {
			t.Error("expected closed channel for rejected client")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rejected client was never closed")
	}

	if h.ClientCount() != maxClientsPerOwner {
		t.Errorf("ClientCount = %d, want %d", h.ClientCount(), maxClientsPerOwner)
	}
}

func TestHub_ReplayEvents(t *testing.T) {
	h := NewHub(quietLogger())
	defer h.buffer.Stop()

	for range 3 {
		h.BroadcastEvent(EventImportProgress, "alice", json.RawMessage(`{}`))
	}

	c := NewClient(h, nil, nil, "alice", "")
	if !h.ReplayEvents(c, 1) {
		t.Fatal("ReplayEvents returned false for buffered ID")
	}

	if got := receive(t, c).ID; got != 2 {
		t.Errorf("first replayed ID = %d, want 2", got)
	}
	if got := receive(t, c).ID; got != 3 {
		t.Errorf("second replayed ID = %d, want 3", got)
	}
}

func TestHub_ReplayEventsTooOld(t *testing.T) {
	h := NewHub(quietLogger())
	h.buffer.Stop()
	h.buffer = NewEventBuffer(2, time.Hour)
	defer h.buffer.Stop()

	for range 4 {
		h.BroadcastEvent(EventImportProgress, "alice", json.RawMessage(`{}`))
	}

	c := NewClient(h, nil, nil, "alice", "")
	if h.ReplayEvents(c, 1) {
		t.Error("ReplayEvents should report evicted history")
	}
	if !h.ReplayEvents(c, 2) {
		t.Error("ReplayEvents should succeed when the next event is still buffered")
	}
}

func TestHub_HandleSubscribeSendsReset(t *testing.T) {
	h := NewHub(quietLogger())
	h.buffer.Stop()
	h.buffer = NewEventBuffer(1, time.Hour)
	defer h.buffer.Stop()

	for range 3 {
		h.BroadcastEvent(EventImportProgress, "alice", json.RawMessage(`{}`))
	}

	c := NewClient(h, nil, nil, "alice", "")
	c.handleMessage([]byte(`{"type":"subscribe","last_event_id":1}`))

	msg := <-c.send
	var reset ResetMsg
	if err := json.Unmarshal(msg, &reset); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reset.Type != "reset" {
		t.Errorf("type = %q, want reset", reset.Type)
	}
}

func TestHub_ShutdownNotifiesClients(t *testing.T) {
	h := NewHub(quietLogger())
	go h.Run(context.Background())

	c := NewClient(h, nil, nil, "alice", "")
	h.Register(c)
	waitForClients(t, h, 1)

	got := make(chan []string, 1)
	go func() {
		var msgs []string
		for msg := range c.send {
			msgs = append(msgs, string(msg))
		}
		got <- msgs
	}()

	h.Shutdown()

	msgs := <-got
	if len(msgs) != 1 || msgs[0] != `{"type":"shutdown","message":"server shutting down"}` {
		t.Errorf("messages = %v, want one shutdown frame", msgs)
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after shutdown, want 0", h.ClientCount())
	}
}
