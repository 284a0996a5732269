package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func offlineSent(p *Presence, userID uint) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.offlineSent[userID]
}

func connCount(h *Hub, userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, connCount(hub, 1))
	assert.True(t, hub.IsOnline(1))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, connCount(hub, 1))

	hub.UnregisterClient(b)
	assert.Equal(t, 0, connCount(hub, 1))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = hub.Register(8, nil)
	assert.NoError(t, err)
}

func TestHub_RegisterAfterShutdown(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Shutdown(context.Background()))

	_, err := hub.Register(1, nil)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestHub_ShutdownHandsCloseToWriteLoop(t *testing.T) {
	hub := NewHub()
	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	for _, c := range []*Client{alice, bob} {
		assert.True(t, c.goingAway.Load())
		select {
		case <-c.done:
		default:
			t.Fatalf("client %d still running after shutdown", c.UserID)
		}
		c.TrySend([]byte(`{"key":"late"}`))
		assert.Len(t, c.Send, 0)
	}
}

func TestHub_DispatchRoutesByChannel(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.Dispatch(UserChannel(2), `{"key":"message"}`)
	assert.Len(t, alice.Send, 0)
	require.Len(t, bob.Send, 1)
	assert.Equal(t, `{"key":"message"}`, string(<-bob.Send))

	hub.Dispatch(GroupChannel, `{"key":"notification"}`)
	assert.Equal(t, `{"key":"notification"}`, string(<-alice.Send))
	assert.Equal(t, `{"key":"notification"}`, string(<-bob.Send))

	hub.Dispatch("other:channel", "ignored")
	assert.Len(t, alice.Send, 0)
	assert.Len(t, bob.Send, 0)
}

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	clientA, err := hub.Register(10, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	_, err = hub.Register(10, nil)
	assert.NoError(t, err)

	assert.Never(t, func() bool {
		return offlineSent(hub.presence, 10)
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, hub.IsOnline(10))

	_ = hub.Shutdown(context.Background())
}

func TestHub_MultiConnectionLastDisconnectTriggersOfflineOnce(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	var offline int32
	hub.presence.SetCallbacks(nil, func(_ uint) { atomic.AddInt32(&offline, 1) })

	clientA, err := hub.Register(15, nil)
	assert.NoError(t, err)
	clientB, err := hub.Register(15, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	assert.Never(t, func() bool {
		return offlineSent(hub.presence, 15)
	}, 10*testPollInterval, testPollInterval)

	hub.UnregisterClient(clientB)
	assert.Eventually(t, func() bool {
		return offlineSent(hub.presence, 15)
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, hub.IsOnline(15))
	assert.Equal(t, int32(1), atomic.LoadInt32(&offline))

	_ = hub.Shutdown(context.Background())
}

func TestHub_StartWiringDeliversPublishedEvents(t *testing.T) {
	_, rdb := newTestRedis(t)

	hub := NewHub(rdb)
	defer func() { _ = hub.Shutdown(context.Background()) }()
	notifier := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, notifier))

	client, err := hub.Register(42, nil)
	require.NoError(t, err)

	require.NoError(t, notifier.PublishUser(ctx, 42, Event{Key: KeyMessage, ActorName: "alice"}))

	select {
	case msg := <-client.Send:
		assert.JSONEq(t, `{"key":"message","actor_name":"alice"}`, string(msg))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("user event not delivered")
	}

	require.NoError(t, notifier.PublishGroup(ctx, Event{Key: KeyAdditionalNews, ActorName: "bob"}))
	select {
	case msg := <-client.Send:
		assert.JSONEq(t, `{"key":"additional_news","actor_name":"bob"}`, string(msg))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("group event not delivered")
	}
}

func TestClient_DropNoticeAndStop(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	client, err := hub.Register(4, nil)
	require.NoError(t, err)
	for i := 0; i < sendBuffer+3; i++ {
		client.TrySend([]byte("x"))
	}
	require.Len(t, client.Send, sendBuffer)

	var last []byte
	for len(client.Send) > 0 {
		last = <-client.Send
	}
	assert.JSONEq(t, `{"key":"messages_dropped","actor_name":"","payload":{"reason":"buffer_full"}}`, string(last))

	hub.UnregisterClient(client)
	client.TrySend([]byte("after"))
	assert.Len(t, client.Send, 0)
}
