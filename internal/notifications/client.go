package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"zanhu/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// dropNotice tells the browser it missed frames and should re-fetch counts.
var dropNotice = mustEncode(Event{Key: "messages_dropped", Payload: map[string]string{"reason": "buffer_full"}})

func mustEncode(e Event) []byte {
	s, err := e.Encode()
	if err != nil {
		panic(err)
	}
	return []byte(s)
}

// Client is one browser tab listening for pushed events. The hub writes into
// Send; Serve drains it onto the socket.
type Client struct {
	UserID uint
	Send   chan []byte

	hub        *Hub
	conn       *websocket.Conn
	onActivity func(userID uint)

	done      chan struct{}
	stopOnce  sync.Once
	goingAway atomic.Bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
		conn:   conn,
		done:   make(chan struct{}),
	}
}

// stop releases the writer. Safe to call more than once.
func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// shutdown stops the client and has the write loop say goodbye with a
// going-away close frame. Only the write loop touches the socket.
func (c *Client) shutdown() {
	c.goingAway.Store(true)
	c.stop()
}

func (c *Client) alive() {
	if c.onActivity != nil {
		c.onActivity(c.UserID)
	}
}

// Serve runs the connection until the peer leaves or the hub shuts down.
// Browsers only listen, so inbound frames only count as activity.
func (c *Client) Serve() {
	go c.writeLoop()
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wsLog.LogError(context.Background(), c.UserID, err, "read")
			}
			return
		}
		c.alive()
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			if c.goingAway.Load() {
				err := write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
				if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
					wsLog.LogError(context.Background(), c.UserID, err, "close_frame")
				}
				_ = c.conn.Close()
			}
			return
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case frame := <-c.Send:
			if err := write(websocket.TextMessage, frame); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					wsLog.LogError(context.Background(), c.UserID, err, "write")
				}
				_ = c.conn.Close()
				return
			}
		}
	}
}

// TrySend queues frame without blocking. The last buffer slot is kept for a
// drop notice, so a client that falls behind learns it missed frames.
func (c *Client) TrySend(frame []byte) {
	select {
	case <-c.done:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return
	default:
	}

	if len(c.Send) < cap(c.Send)-1 {
		select {
		case c.Send <- frame:
			return
		default:
		}
	}
	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	select {
	case c.Send <- dropNotice:
	default:
	}
}
