package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedline/internal/model"
)

// SubscriptionRepository 订阅边，正向 user:{id}:subscriptions，反向 timeline:{id}:subscribers
type SubscriptionRepository interface {
	// Create 幂等：返回这次调用是否真的新增了边
	Create(ctx context.Context, subscriberID, timelineID string, at time.Time) (bool, error)
	// Delete 幂等：返回这次调用是否真的删除了边
	Delete(ctx context.Context, subscriberID, timelineID string) (bool, error)
	Exists(ctx context.Context, subscriberID, timelineID string) (bool, error)
	ListSubscriptions(ctx context.Context, subscriberID string, offset, limit int) ([]*model.Subscription, error)
	// SubscriptionIDs 最近订阅的在前
	SubscriptionIDs(ctx context.Context, subscriberID string) ([]string, error)
	SubscriberIDs(ctx context.Context, timelineID string) ([]string, error)
	// Touch 把订阅的分值刷新为 at（群组有新帖时调用）
	Touch(ctx context.Context, subscriberIDs []string, timelineID string, at time.Time) error
}

type subscriptionRepository struct{ rdb redis.UniversalClient }

func NewSubscriptionRepository(rdb redis.UniversalClient) SubscriptionRepository {
	return &subscriptionRepository{rdb: rdb}
}

func (r *subscriptionRepository) Create(ctx context.Context, subscriberID, timelineID string, at time.Time) (bool, error) {
	var added *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.ZAddNX(ctx, feedSubscriptionsKey(subscriberID), zMember(at.UnixMilli(), timelineID))
		pipe.ZAddNX(ctx, timelineSubscribersKey(timelineID), zMember(at.UnixMilli(), subscriberID))
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "subscribe %s to %s", subscriberID, timelineID)
	}
	return added.Val() > 0, nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, subscriberID, timelineID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, feedSubscriptionsKey(subscriberID), timelineID)
		pipe.ZRem(ctx, timelineSubscribersKey(timelineID), subscriberID)
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "unsubscribe %s from %s", subscriberID, timelineID)
	}
	return removed.Val() > 0, nil
}

func (r *subscriptionRepository) Exists(ctx context.Context, subscriberID, timelineID string) (bool, error) {
	_, err := r.rdb.ZScore(ctx, feedSubscriptionsKey(subscriberID), timelineID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "check subscription %s -> %s", subscriberID, timelineID)
	}
	return true, nil
}

func (r *subscriptionRepository) ListSubscriptions(ctx context.Context, subscriberID string, offset, limit int) ([]*model.Subscription, error) {
	zs, err := r.rdb.ZRevRangeWithScores(ctx, feedSubscriptionsKey(subscriberID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "list subscriptions of %s", subscriberID)
	}
	res := make([]*model.Subscription, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		res = append(res, &model.Subscription{
			SubscriberID: subscriberID,
			TimelineID:   id,
			CreatedAt:    time.UnixMilli(int64(z.Score)),
		})
	}
	return res, nil
}

func (r *subscriptionRepository) SubscriptionIDs(ctx context.Context, subscriberID string) ([]string, error) {
	ids, err := r.rdb.ZRevRange(ctx, feedSubscriptionsKey(subscriberID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load subscriptions of %s", subscriberID)
}

func (r *subscriptionRepository) SubscriberIDs(ctx context.Context, timelineID string) ([]string, error) {
	ids, err := r.rdb.ZRevRange(ctx, timelineSubscribersKey(timelineID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load subscribers of %s", timelineID)
}

func (r *subscriptionRepository) Touch(ctx context.Context, subscriberIDs []string, timelineID string, at time.Time) error {
	if len(subscriberIDs) == 0 {
		return nil
	}
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range subscriberIDs {
			pipe.ZAddXX(ctx, feedSubscriptionsKey(id), zMember(at.UnixMilli(), timelineID))
		}
		return nil
	})
	return errors.Wrapf(err, "touch subscriptions to %s", timelineID)
}
