package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/analfistt/ArbiWeb/internal/model"
)

const (
	// sendBuffer bounds the per-connection outbound queue; a subscriber that
	// cannot drain it is disconnected rather than allowed to back up the hub.
	sendBuffer = 128

	writeWait = 10 * time.Second

	// CloseUnauthorized is sent when the handshake credential is rejected.
	CloseUnauthorized = 4401
)

// Client is one live subscriber connection owned by the hub.
type Client struct {
	Identity string
	IsAdmin  bool

	ws     *websocket.Conn
	send   chan model.Event
	done   chan struct{}
	alive  atomic.Bool
	logger *slog.Logger

	closeOnce sync.Once
}

// NewClient wraps an upgraded websocket connection. The ws argument may be
// nil in tests; delivery then only fills the send channel.
func NewClient(cred Credential, ws *websocket.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		Identity: cred.Identity,
		IsAdmin:  cred.IsAdmin,
		ws:       ws,
		send:     make(chan model.Event, sendBuffer),
		done:     make(chan struct{}),
		logger:   logger,
	}
	c.alive.Store(true)
	return c
}

// deliver queues an event without blocking. It reports false when the
// client's queue is full, which the hub treats as a dead connection. The send
// channel is never closed, so concurrent dispatches cannot race a close; a
// client that is already shut down just swallows the event.
func (c *Client) deliver(event model.Event) bool {
	select {
	case <-c.done:
		return true
	case c.send <- event:
		return true
	default:
		return false
	}
}

// ping sends a liveness probe. WriteControl is safe alongside the write pump.
func (c *Client) ping() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// markAlive records that the peer answered since the last liveness sweep.
func (c *Client) markAlive() {
	c.alive.Store(true)
}

// sweep resets the liveness flag and reports whether the peer responded
// since the previous sweep.
func (c *Client) sweep() bool {
	return c.alive.Swap(false)
}

// close terminates the connection once, releasing the write pump. The send
// channel stays open; deliver and WritePump both watch done instead.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// WritePump drains the send queue onto the wire. It exits when the hub
// closes the client or a write fails.
func (c *Client) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			if c.ws == nil {
				continue
			}

			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(event); err != nil {
				c.logger.Debug("subscriber write failed",
					"identity", c.Identity,
					"error", err)
				return
			}
		}
	}
}

// ReadPump consumes inbound frames: pongs refresh liveness, an application
// "ping" message gets a "pong" event back, everything else is ignored. It
// unregisters the client from the hub when the connection drops.
func (c *Client) ReadPump(hub *Hub) {
	defer hub.Unregister(c)

	if c.ws == nil {
		return
	}

	c.ws.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.markAlive()

		var inbound model.Event
		if err := json.Unmarshal(payload, &inbound); err != nil {
			continue
		}
		if inbound.Type == "ping" {
			c.deliver(model.Event{Type: model.EventPong})
		}
	}
}
