package notifications

import (
	"context"
	"errors"
	"sync"

	"zanhu/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

var wsLog = observability.NewWSLogger("notification hub")

// Hub maps userID -> connected Clients and fans pub/sub events into them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	presence   *Presence
}

// NewHub creates a Hub. Presence is mirrored into Redis when a client is given.
func NewHub(redisClients ...*redis.Client) *Hub {
	var rdb *redis.Client
	if len(redisClients) > 0 {
		rdb = redisClients[0]
	}
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: NewPresence(rdb),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Presence exposes the hub's online tracking.
func (h *Hub) Presence() *Presence { return h.presence }

// Register a connection for a given userID. Returns the Client or an error if limits are exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed || h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerFull
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserFull
	}

	client := newClient(h, conn, userID)
	client.onActivity = func(uid uint) {
		h.presence.Touch(context.Background(), uid)
	}
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	h.presence.Connect(context.Background(), userID)
	observability.WebSocketEventsTotal.WithLabelValues("connect").Inc()
	wsLog.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes a client; unknown clients are ignored.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
			client.stop()
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		h.presence.Disconnect(client.UserID)
		observability.WebSocketEventsTotal.WithLabelValues("disconnect").Inc()
		wsLog.LogDisconnect(context.Background(), client.UserID, "unregistered")
	}
}

// IsOnline reports whether userID has a live connection on any process.
func (h *Hub) IsOnline(userID uint) bool {
	return h.presence.IsOnline(context.Background(), userID)
}

// SendToUser delivers message to every connection of userID.
func (h *Hub) SendToUser(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.conns[userID] {
		c.TrySend(data)
	}
}

// SendToAll delivers message to every connected client.
func (h *Hub) SendToAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// Dispatch routes a pub/sub message by channel name.
func (h *Hub) Dispatch(channel, payload string) {
	if channel == GroupChannel {
		h.SendToAll(payload)
		return
	}
	userID, ok := parseUserChannel(channel)
	if !ok {
		wsLog.LogLifecycle(context.Background(), "unknown_channel", map[string]interface{}{"channel": channel})
		return
	}
	h.SendToUser(userID, payload)
}

// StartWiring subscribes the hub to the group and user channels.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.Dispatch)
}

// Shutdown closes every connection with a going-away frame.
func (h *Hub) Shutdown(_ context.Context) error {
	h.presence.Stop()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, userConns := range h.conns {
		for client := range userConns {
			client.shutdown()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	wsLog.LogLifecycle(context.Background(), "shutdown", nil)
	return nil
}
