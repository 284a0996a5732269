package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"zanhu/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey  = "presence:online"
	presenceLastSeenKeyNS = "presence:last_seen:"
	presenceTTL           = 90 * time.Second
	presenceOfflineGrace  = 5 * time.Second
	presenceReapInterval  = 60 * time.Second
)

// Presence counts websocket connections per user, mirrors online users into Redis
// so every process sees the same set, and reports online/offline transitions.
// A user goes offline only after the grace period passes with no connection.
type Presence struct {
	rdb *redis.Client

	mu            sync.RWMutex
	local         map[uint]int
	offlineTimers map[uint]*time.Timer
	offlineSent   map[uint]bool
	grace         time.Duration

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates a Presence. A reaper drops stale Redis entries when rdb is set.
func NewPresence(rdb *redis.Client) *Presence {
	p := &Presence{
		rdb:           rdb,
		local:         make(map[uint]int),
		offlineTimers: make(map[uint]*time.Timer),
		offlineSent:   make(map[uint]bool),
		grace:         presenceOfflineGrace,
		stopCh:        make(chan struct{}),
	}
	if rdb != nil {
		go p.reapLoop(presenceReapInterval)
	}
	return p
}

// SetCallbacks installs the transition callbacks. Either may be nil.
func (p *Presence) SetCallbacks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onOnline = onOnline
	p.onOffline = onOffline
	p.mu.Unlock()
}

// SetOfflineGracePeriod overrides the delay before a disconnected user is reported offline.
func (p *Presence) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.grace = d
	p.mu.Unlock()
}

// Stop ends the reaper and cancels pending offline timers.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for userID, t := range p.offlineTimers {
			t.Stop()
			delete(p.offlineTimers, userID)
		}
		p.mu.Unlock()
	})
}

// Connect records a new connection for userID.
func (p *Presence) Connect(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
		delete(p.offlineTimers, userID)
	}
	p.local[userID]++
	p.offlineSent[userID] = false
	p.mu.Unlock()

	p.Touch(ctx, userID)
	if !wasOnline {
		p.emit(userID, true)
	}
}

// Touch refreshes the user's last-seen marker.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	pipe := p.rdb.Pipeline()
	pipe.SAdd(ctx, presenceOnlineSetKey, uid)
	pipe.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.Warn("presence touch failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Disconnect records a closed connection. The last one starts the offline grace timer.
func (p *Presence) Disconnect(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := p.local[userID] - 1; n > 0 {
		p.local[userID] = n
		return
	}
	delete(p.local, userID)

	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
	}
	p.offlineTimers[userID] = time.AfterFunc(p.grace, func() {
		p.finalizeOffline(context.Background(), userID)
	})
}

// IsOnline reports whether the user has a connection here or a fresh marker in Redis.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	n := p.local[userID]
	p.mu.RUnlock()
	if n > 0 {
		return true
	}
	if p.rdb == nil {
		return false
	}
	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// reapOnce removes online-set members whose last-seen marker expired.
func (p *Presence) reapOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}
	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return
	}
	for _, raw := range members {
		id64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		userID := uint(id64)
		exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if err != nil || exists > 0 {
			continue
		}
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()

		p.mu.RLock()
		hasLocal := p.local[userID] > 0
		p.mu.RUnlock()
		if !hasLocal {
			p.emit(userID, false)
		}
	}
}

func (p *Presence) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) finalizeOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.offlineTimers, userID)
	reconnected := p.local[userID] > 0
	p.mu.Unlock()
	if reconnected {
		return
	}

	if p.rdb != nil {
		// another process may still hold a connection for this user
		if exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result(); err == nil && exists > 0 {
			return
		}
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}
	p.emit(userID, false)
}

func (p *Presence) emit(userID uint, online bool) {
	p.mu.Lock()
	if !online && p.offlineSent[userID] {
		p.mu.Unlock()
		return
	}
	p.offlineSent[userID] = !online
	cb := p.onOnline
	if !online {
		cb = p.onOffline
	}
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (p *Presence) lastSeenKey(userID uint) string {
	return presenceLastSeenKeyNS + strconv.FormatUint(uint64(userID), 10)
}
