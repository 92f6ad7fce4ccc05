// Package realtime 把 Redis 上发布的事件按房间（timeline:{id} / post:{id} / user:{id}）推给在线客户端。
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/logger"
	"github.com/d60-Lab/feedline/pkg/metrics"
)

// Client 一个在线连接，只读 Events()
type Client struct {
	id     uint64
	topics []string
	events chan model.Event

	mu     sync.RWMutex
	closed bool
}

func (c *Client) Events() <-chan model.Event { return c.events }

// send 不阻塞；已关闭或缓冲满时返回 false
func (c *Client) send(ev model.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		logger.Warn("realtime client too slow, drop event",
			zap.Uint64("client", c.id), zap.String("kind", string(ev.Kind)))
		return false
	}
}

func (c *Client) Topics() []string { return c.topics }

// Hub 房间注册表；每个房间是 clientID -> Client 的并发 map
type Hub struct {
	rdb    redis.UniversalClient
	rooms  *xsync.MapOf[string, *xsync.MapOf[uint64, *Client]]
	buffer int
	nextID atomic.Uint64
	ready  chan struct{}
}

func NewHub(rdb redis.UniversalClient, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		rdb:    rdb,
		rooms:  xsync.NewMapOf[string, *xsync.MapOf[uint64, *Client]](),
		buffer: buffer,
		ready:  make(chan struct{}),
	}
}

// Join 加入若干房间
func (h *Hub) Join(topics []string) *Client {
	c := &Client{id: h.nextID.Add(1), topics: topics, events: make(chan model.Event, h.buffer)}
	for _, t := range topics {
		h.rooms.Compute(t, func(room *xsync.MapOf[uint64, *Client], loaded bool) (*xsync.MapOf[uint64, *Client], bool) {
			if !loaded {
				room = xsync.NewMapOf[uint64, *Client]()
			}
			room.Store(c.id, c)
			return room, false
		})
	}
	metrics.RealtimeJoined()
	return c
}

// Leave 离开所有房间并关闭事件通道；可重复调用
func (h *Hub) Leave(c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, t := range c.topics {
		h.rooms.Compute(t, func(room *xsync.MapOf[uint64, *Client], loaded bool) (*xsync.MapOf[uint64, *Client], bool) {
			if !loaded {
				return room, true
			}
			room.Delete(c.id)
			return room, room.Size() == 0
		})
	}
	c.closed = true
	close(c.events)
	metrics.RealtimeLeft()
}

// Broadcast 投递给事件所属房间里的所有客户端，返回送达数；客户端缓冲满时丢弃该条
func (h *Hub) Broadcast(ev model.Event) int {
	delivered := 0
	for _, t := range ev.Topics() {
		room, ok := h.rooms.Load(t)
		if !ok {
			continue
		}
		room.Range(func(_ uint64, c *Client) bool {
			if c.send(ev) {
				delivered++
			}
			return true
		})
	}
	return delivered
}

// Ready 在 Run 确认订阅成功后关闭
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run 订阅每种事件的频道直到 ctx 结束
func (h *Hub) Run(ctx context.Context) error {
	channels := make([]string, len(model.EventKinds))
	for i, kind := range model.EventKinds {
		channels[i] = service.ChannelFor(kind)
	}
	sub := h.rdb.Subscribe(ctx, channels...)
	defer sub.Close()
	// 每个频道回一条订阅确认
	for range channels {
		if _, err := sub.Receive(ctx); err != nil {
			return errors.Wrap(err, "subscribe realtime channels")
		}
	}
	close(h.ready)
	logger.Info("realtime hub subscribed", zap.Strings("channels", channels))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("bad realtime payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			h.Broadcast(ev)
		}
	}
}
