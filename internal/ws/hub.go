// Package ws pushes import progress and results to an owner's connected
// WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/metrics"
)

// Hub channel buffer sizes and connection caps.
const (
	broadcastBuffer    = 256
	registerBuffer     = 64
	maxClients         = 500
	maxClientsPerOwner = 20
)

type ownerBroadcast struct {
	ownerID string
	msg     []byte
}

// Hub manages active WebSocket clients and fans events out per owner.
// All client map mutations happen in the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	ownerCount map[string]int
	register   chan *Client
	unregister chan *Client
	broadcast  chan ownerBroadcast
	shutdown   chan struct{}
	done       chan struct{}
	count      atomic.Int64
	log        *logrus.Logger
	seq        *EventSequence
	buffer     *EventBuffer
}

// NewHub creates a new Hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		ownerCount: make(map[string]int),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		broadcast:  make(chan ownerBroadcast, broadcastBuffer),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
		seq:        NewEventSequence(),
		buffer:     NewEventBuffer(defaultBufferMaxLen, defaultBufferMaxAge),
	}
}

// drainTimeout is how long the hub waits for clients to flush after shutdown.
const drainTimeout = 3 * time.Second

// Run starts the hub event loop. It exits when Shutdown is called or ctx
// is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.buffer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drainClients()

			return
		case <-h.shutdown:
			h.drainClients()

			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
			}
			h.log.WithField("total", len(h.clients)).Debug("client unregistered")

		case b := <-h.broadcast:
			for client := range h.clients {
				if client.OwnerID != b.ownerID {
					continue
				}
				select {
				case client.send <- b.msg:
				default:
					metrics.ProgressDropped.Inc()
					h.log.WithField("owner_id", client.OwnerID).Warn("client send buffer full, disconnecting")
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) add(client *Client) {
	if len(h.clients) >= maxClients {
		h.log.Warn("global connection limit reached, dropping client")
		client.closeSend()

		return
	}

	if h.ownerCount[client.OwnerID] >= maxClientsPerOwner {
		h.log.WithField("owner_id", client.OwnerID).Warn("per-owner connection limit reached, dropping client")
		client.closeSend()

		return
	}

	h.clients[client] = true
	h.ownerCount[client.OwnerID]++
	h.updateCount()
	h.log.WithField("total", len(h.clients)).Debug("client registered")
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	client.closeSend()

	h.ownerCount[client.OwnerID]--
	if h.ownerCount[client.OwnerID] <= 0 {
		delete(h.ownerCount, client.OwnerID)
	}

	h.updateCount()
}

func (h *Hub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// maxBroadcastPayload is the largest event frame the hub will send.
const maxBroadcastPayload = 16 << 10

// BroadcastToOwner queues msg for every client of ownerID. Oversized
// payloads and messages arriving while the queue is full are dropped.
func (h *Hub) BroadcastToOwner(ownerID string, msg []byte) {
	if len(msg) > maxBroadcastPayload {
		h.log.WithFields(logrus.Fields{
			"owner_id":     ownerID,
			"payload_size": len(msg),
			"max_size":     maxBroadcastPayload,
		}).Warn("dropping oversized broadcast payload")

		return
	}

	select {
	case h.broadcast <- ownerBroadcast{ownerID: ownerID, msg: msg}:
	default:
		metrics.ProgressDropped.Inc()
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// BroadcastEvent assigns a sequence ID, buffers the event for replay and
// sends it to every client of ownerID.
func (h *Hub) BroadcastEvent(eventType, ownerID string, data json.RawMessage) {
	evt := Event{
		Type:    eventType,
		ID:      h.seq.Next(ownerID),
		OwnerID: ownerID,
		Data:    data,
		Time:    time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal event")

		return
	}

	h.buffer.Append(ownerID, &evt)
	h.BroadcastToOwner(ownerID, msg)
}

// Publish marshals payload and broadcasts it as an eventType event.
func (h *Hub) Publish(ownerID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("failed to marshal event payload")

		return
	}

	h.BroadcastEvent(eventType, ownerID, data)
}

// Shutdown asks Run to drain clients and blocks until it has.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainClients sends a shutdown frame to every client, waits for their
// buffers to flush and then closes them.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining WebSocket clients")

	shutdownMsg := []byte(`{"type":"shutdown","message":"server shutting down"}`)
	for client := range h.clients {
		select {
		case client.send <- shutdownMsg:
		default:
		}
	}

	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond) //nolint:mnd // poll interval
	defer ticker.Stop()

	for !h.flushed() {
		select {
		case <-deadline:
			h.log.Warn("WebSocket drain timeout, closing remaining clients")
			h.closeAll()

			return
		case <-ticker.C:
		}
	}

	h.closeAll()
}

func (h *Hub) flushed() bool {
	for client := range h.clients {
		if len(client.send) > 0 {
			return false
		}
	}

	return true
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}

	h.ownerCount = make(map[string]int)
	h.updateCount()
}

// ReplayEvents sends buffered events newer than lastEventID to client.
// It returns false when lastEventID has already been evicted.
func (h *Hub) ReplayEvents(client *Client, lastEventID uint64) bool {
	oldest := h.buffer.OldestID(client.OwnerID)
	if oldest > 0 && lastEventID > 0 && lastEventID+1 < oldest {
		return false
	}

	for _, evt := range h.buffer.Since(client.OwnerID, lastEventID) {
		msg, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		select {
		case client.send <- msg:
		default:
			return true
		}
	}

	return true
}
