package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout        = 10 * time.Second
	wsReadLimit         = 4096
	clientSendBuffer    = 256
	maxConnLifetime     = 4 * time.Hour
	keyRecheckInterval  = 15 * time.Minute
	keyRecheckTimeout   = 10 * time.Second
	pingInterval        = 30 * time.Second
	pingTimeout         = 10 * time.Second
	maxMissedPongs      = int32(2)
	subscribeMessageKey = "subscribe"
)

// OwnerValidator re-checks that an API key still maps to an owner.
type OwnerValidator interface {
	GetOwnerByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// Client wraps a single WebSocket connection managed by the Hub.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	log         *logrus.Logger
	OwnerID     string
	apiKey      string
	validator   OwnerValidator
	closeOnce   sync.Once
	connectedAt time.Time
}

// NewClient creates a Client for conn owned by ownerID.
func NewClient(hub *Hub, conn *websocket.Conn, validator OwnerValidator, ownerID, apiKey string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, clientSendBuffer),
		log:         hub.log,
		OwnerID:     ownerID,
		apiKey:      apiKey,
		validator:   validator,
		connectedAt: time.Now(),
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump reads client messages until the connection closes. The only
// message understood is a subscribe request for event replay.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown
	}()

	c.conn.SetReadLimit(wsReadLimit)

	for {
		_, msg, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.WithField("status", status).Debug("client disconnected")
			}

			return
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg SubscribeMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != subscribeMessageKey {
		return
	}

	if c.hub.ReplayEvents(c, msg.LastEventID) {
		return
	}

	reset, err := json.Marshal(ResetMsg{
		Type:   "reset",
		Reason: "requested events no longer available, fetch the latest plan",
	})
	if err != nil {
		return
	}

	select {
	case c.send <- reset:
	default:
	}
}

// WritePump writes queued messages to the connection. It pings the peer,
// re-checks the API key periodically and enforces a maximum lifetime.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	lifetime := time.NewTimer(time.Until(c.connectedAt.Add(maxConnLifetime)))
	defer lifetime.Stop()

	recheck := time.NewTicker(keyRecheckInterval)
	defer recheck.Stop()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var missedPongs atomic.Int32

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if c.sendPing(ctx, &missedPongs) {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()

			if err != nil {
				c.log.WithError(err).Debug("write failed")

				return
			}
		case <-recheck.C:
			if !c.recheckKey(ctx) {
				return
			}
		case <-lifetime.C:
			c.log.WithField("owner_id", c.OwnerID).Info("closing WebSocket: max connection lifetime exceeded")
			c.conn.Close(websocket.StatusNormalClosure, "max connection lifetime exceeded") //nolint:errcheck // best-effort

			return
		}
	}
}

// sendPing reports whether the connection should close after too many
// missed pongs.
func (c *Client) sendPing(ctx context.Context, missedPongs *atomic.Int32) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := c.conn.Ping(pingCtx)
	cancel()

	if err == nil {
		missedPongs.Store(0)

		return false
	}

	if missedPongs.Add(1) >= maxMissedPongs {
		c.log.Debug("closing: consecutive missed pongs")

		return true
	}

	return false
}

// recheckKey reports whether the API key still belongs to this client's owner.
func (c *Client) recheckKey(ctx context.Context) bool {
	if c.validator == nil {
		return true
	}

	checkCtx, cancel := context.WithTimeout(ctx, keyRecheckTimeout)
	ownerID, err := c.validator.GetOwnerByAPIKey(checkCtx, c.apiKey)
	cancel()

	if err != nil || ownerID != c.OwnerID {
		c.log.WithField("owner_id", c.OwnerID).Info("closing WebSocket: API key no longer valid")
		c.conn.Close(websocket.StatusPolicyViolation, "authentication expired") //nolint:errcheck // best-effort

		return false
	}

	return true
}
