package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

type FeedRepository interface {
	Create(ctx context.Context, feed *model.Feed) error
	FindByID(ctx context.Context, id string) (*model.Feed, error)
	FindByUsername(ctx context.Context, username string) (*model.Feed, error)
	FindMany(ctx context.Context, ids []string) ([]*model.Feed, error)
	Update(ctx context.Context, feed *model.Feed) error

	// TimelineID 返回 (feed, purpose) 对应的时间线 id，不存在时懒创建
	TimelineID(ctx context.Context, feedID string, purpose model.Purpose) (string, error)
	// TimelineIDs 只返回已经创建过的时间线
	TimelineIDs(ctx context.Context, feedID string) (map[model.Purpose]string, error)

	AddAdministrator(ctx context.Context, groupID, feedID string, at time.Time) error
	RemoveAdministrator(ctx context.Context, groupID, feedID string) error
	AdministratorIDs(ctx context.Context, groupID string) ([]string, error)
}

type feedRepository struct{ rdb redis.UniversalClient }

func NewFeedRepository(rdb redis.UniversalClient) FeedRepository { return &feedRepository{rdb: rdb} }

func (r *feedRepository) Create(ctx context.Context, f *model.Feed) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	// 用户名唯一：SETNX 抢占
	ok, err := r.rdb.SetNX(ctx, usernameKey(f.Username), f.ID, 0).Result()
	if err != nil {
		return errors.Wrap(err, "reserve username")
	}
	if !ok {
		return apperr.Validation("Username is already taken")
	}
	err = r.rdb.HSet(ctx, feedKey(f.ID), map[string]interface{}{
		"username":   f.Username,
		"screenName": f.ScreenName,
		"type":       string(f.Kind),
		"isPrivate":  boolFlag(f.IsPrivate),
		"createdAt":  millis(f.CreatedAt),
		"updatedAt":  millis(f.UpdatedAt),
	}).Err()
	if err != nil {
		_ = r.rdb.Del(ctx, usernameKey(f.Username)).Err()
		return errors.Wrapf(err, "create feed %s", f.ID)
	}
	return nil
}

func (r *feedRepository) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	attrs, err := r.rdb.HGetAll(ctx, feedKey(id)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load feed %s", id)
	}
	if len(attrs) == 0 {
		return nil, apperr.NotFound("Feed not found")
	}
	return feedFromHash(id, attrs), nil
}

func (r *feedRepository) FindByUsername(ctx context.Context, username string) (*model.Feed, error) {
	id, err := r.rdb.Get(ctx, usernameKey(username)).Result()
	if err == redis.Nil {
		return nil, apperr.NotFound("Feed not found")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolve username %s", username)
	}
	return r.FindByID(ctx, id)
}

func (r *feedRepository) FindMany(ctx context.Context, ids []string) ([]*model.Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, feedKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load feeds")
	}
	res := make([]*model.Feed, 0, len(ids))
	for i, cmd := range cmds {
		attrs := cmd.Val()
		if len(attrs) == 0 {
			continue
		}
		res = append(res, feedFromHash(ids[i], attrs))
	}
	return res, nil
}

func (r *feedRepository) Update(ctx context.Context, f *model.Feed) error {
	return errors.Wrapf(r.rdb.HSet(ctx, feedKey(f.ID), map[string]interface{}{
		"screenName": f.ScreenName,
		"isPrivate":  boolFlag(f.IsPrivate),
		"updatedAt":  millis(f.UpdatedAt),
	}).Err(), "update feed %s", f.ID)
}

func (r *feedRepository) TimelineID(ctx context.Context, feedID string, purpose model.Purpose) (string, error) {
	if !purpose.Valid() || purpose == model.PurposeEveryone {
		return "", apperr.Validation("Invalid timeline purpose " + string(purpose))
	}
	id, err := r.rdb.HGet(ctx, feedTimelinesKey(feedID), string(purpose)).Result()
	if err == nil {
		return id, nil
	}
	if err != redis.Nil {
		return "", errors.Wrapf(err, "load %s timeline of %s", purpose, feedID)
	}

	// 先写时间线记录，再 HSETNX 登记；并发时输的一方删掉自己的记录
	newID := uuid.New().String()
	if err := r.rdb.HSet(ctx, timelineKey(newID), "name", string(purpose), "userId", feedID).Err(); err != nil {
		return "", errors.Wrapf(err, "create %s timeline of %s", purpose, feedID)
	}
	won, err := r.rdb.HSetNX(ctx, feedTimelinesKey(feedID), string(purpose), newID).Result()
	if err != nil {
		return "", errors.Wrapf(err, "register %s timeline of %s", purpose, feedID)
	}
	if won {
		return newID, nil
	}
	_ = r.rdb.Del(ctx, timelineKey(newID)).Err()
	id, err = r.rdb.HGet(ctx, feedTimelinesKey(feedID), string(purpose)).Result()
	return id, errors.Wrapf(err, "load %s timeline of %s", purpose, feedID)
}

func (r *feedRepository) TimelineIDs(ctx context.Context, feedID string) (map[model.Purpose]string, error) {
	raw, err := r.rdb.HGetAll(ctx, feedTimelinesKey(feedID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load timelines of %s", feedID)
	}
	res := make(map[model.Purpose]string, len(raw))
	for k, v := range raw {
		res[model.Purpose(k)] = v
	}
	return res, nil
}

func (r *feedRepository) AddAdministrator(ctx context.Context, groupID, feedID string, at time.Time) error {
	return errors.Wrapf(r.rdb.ZAdd(ctx, feedAdminsKey(groupID), zMember(at.UnixMilli(), feedID)).Err(),
		"add administrator to %s", groupID)
}

func (r *feedRepository) RemoveAdministrator(ctx context.Context, groupID, feedID string) error {
	return errors.Wrapf(r.rdb.ZRem(ctx, feedAdminsKey(groupID), feedID).Err(), "remove administrator from %s", groupID)
}

func (r *feedRepository) AdministratorIDs(ctx context.Context, groupID string) ([]string, error) {
	ids, err := r.rdb.ZRevRange(ctx, feedAdminsKey(groupID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load administrators of %s", groupID)
}

func feedFromHash(id string, attrs map[string]string) *model.Feed {
	kind := model.FeedKind(attrs["type"])
	if kind == "" {
		kind = model.FeedKindUser
	}
	return &model.Feed{
		ID:         id,
		Username:   attrs["username"],
		ScreenName: attrs["screenName"],
		Kind:       kind,
		IsPrivate:  parseFlag(attrs["isPrivate"], false),
		CreatedAt:  parseMillis(attrs["createdAt"]),
		UpdatedAt:  parseMillis(attrs["updatedAt"]),
	}
}
