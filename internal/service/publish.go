package service

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedline/internal/model"
)

// ChannelPrefix 事件发布的频道前缀，频道名为 feedline:{kind}
const ChannelPrefix = "feedline:"

// ChannelFor 返回事件类型对应的 pub/sub 频道
func ChannelFor(kind model.EventKind) string { return ChannelPrefix + string(kind) }

// Notifier 扇出引擎的通知出口；实现不得阻塞太久，失败由调用方记录后丢弃
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}

// NopNotifier 丢弃所有事件
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.Event) error { return nil }

// RedisPublisher 把事件序列化为 JSON 发布到 Redis 频道
type RedisPublisher struct{ rdb redis.UniversalClient }

func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

// Notify 发布一条事件
func (p *RedisPublisher) Notify(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrapf(err, "encode %s event", ev.Kind)
	}
	return errors.Wrapf(p.rdb.Publish(ctx, ChannelFor(ev.Kind), payload).Err(), "publish %s event", ev.Kind)
}
