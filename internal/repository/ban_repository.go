package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type BanRepository interface {
	Create(ctx context.Context, feedID, bannedID string, at time.Time) error
	Delete(ctx context.Context, feedID, bannedID string) error
	Exists(ctx context.Context, feedID, bannedID string) (bool, error)
	// BanIDs 最近屏蔽的在前
	BanIDs(ctx context.Context, feedID string) ([]string, error)
}

type banRepository struct{ rdb redis.UniversalClient }

func NewBanRepository(rdb redis.UniversalClient) BanRepository { return &banRepository{rdb: rdb} }

func (r *banRepository) Create(ctx context.Context, feedID, bannedID string, at time.Time) error {
	// 重复屏蔽保留最早的时间
	return errors.Wrapf(r.rdb.ZAddNX(ctx, feedBansKey(feedID), zMember(at.UnixMilli(), bannedID)).Err(),
		"ban %s by %s", bannedID, feedID)
}

func (r *banRepository) Delete(ctx context.Context, feedID, bannedID string) error {
	return errors.Wrapf(r.rdb.ZRem(ctx, feedBansKey(feedID), bannedID).Err(), "unban %s by %s", bannedID, feedID)
}

func (r *banRepository) Exists(ctx context.Context, feedID, bannedID string) (bool, error) {
	_, err := r.rdb.ZScore(ctx, feedBansKey(feedID), bannedID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "check ban %s -> %s", feedID, bannedID)
	}
	return true, nil
}

func (r *banRepository) BanIDs(ctx context.Context, feedID string) ([]string, error) {
	ids, err := r.rdb.ZRevRange(ctx, feedBansKey(feedID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load bans of %s", feedID)
}
