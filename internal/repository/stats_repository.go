package repository

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedline/internal/model"
)

// StatsRepository 计数存于 stats:{feedId} 哈希，同时维护每个类别的排行榜 stats:{category}
type StatsRepository interface {
	Create(ctx context.Context, feedID string) error
	Incr(ctx context.Context, feedID string, category model.StatsCategory, delta int64) error
	Get(ctx context.Context, feedID string) (*model.Stats, error)
	Top(ctx context.Context, category model.StatsCategory, limit int) ([]model.RankedFeed, error)
}

type statsRepository struct{ rdb redis.UniversalClient }

func NewStatsRepository(rdb redis.UniversalClient) StatsRepository { return &statsRepository{rdb: rdb} }

func (r *statsRepository) Create(ctx context.Context, feedID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range model.StatsCategories {
			pipe.HSetNX(ctx, statsKey(feedID), string(c), 0)
			pipe.ZAddNX(ctx, statsBoardKey(string(c)), zMember(0, feedID))
		}
		return nil
	})
	return errors.Wrapf(err, "create stats of %s", feedID)
}

func (r *statsRepository) Incr(ctx context.Context, feedID string, category model.StatsCategory, delta int64) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, statsKey(feedID), string(category), delta)
		pipe.ZIncrBy(ctx, statsBoardKey(string(category)), float64(delta), feedID)
		return nil
	})
	return errors.Wrapf(err, "incr %s of %s", category, feedID)
}

func (r *statsRepository) Get(ctx context.Context, feedID string) (*model.Stats, error) {
	raw, err := r.rdb.HGetAll(ctx, statsKey(feedID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load stats of %s", feedID)
	}
	n := func(c model.StatsCategory) int64 {
		v, _ := strconv.ParseInt(raw[string(c)], 10, 64)
		return v
	}
	return &model.Stats{
		FeedID:        feedID,
		Posts:         n(model.StatsPosts),
		Likes:         n(model.StatsLikes),
		Discussions:   n(model.StatsDiscussions),
		Subscribers:   n(model.StatsSubscribers),
		Subscriptions: n(model.StatsSubscriptions),
	}, nil
}

func (r *statsRepository) Top(ctx context.Context, category model.StatsCategory, limit int) ([]model.RankedFeed, error) {
	zs, err := r.rdb.ZRevRangeWithScores(ctx, statsBoardKey(string(category)), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load %s leaderboard", category)
	}
	res := make([]model.RankedFeed, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		res = append(res, model.RankedFeed{FeedID: id, Value: int64(z.Score)})
	}
	return res, nil
}
