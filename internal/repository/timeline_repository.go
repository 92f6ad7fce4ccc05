package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

// TimelineRepository 时间线成员（timeline:{id}:posts）与帖子反向索引（post:{id}:timelines）总是成对写入
type TimelineRepository interface {
	FindByID(ctx context.Context, id string) (*model.Timeline, error)
	FindMany(ctx context.Context, ids []string) ([]*model.Timeline, error)
	EnsureEveryone(ctx context.Context) error

	// InsertOrBump 写入或更新分值（ZADD 覆盖）
	InsertOrBump(ctx context.Context, timelineID, postID string, score int64) error
	// InsertIfAbsent 只在帖子尚不在时间线里时写入，已存在的分值不变
	InsertIfAbsent(ctx context.Context, timelineID, postID string, score int64) error
	Remove(ctx context.Context, timelineID, postID string) error
	RemoveMany(ctx context.Context, timelineID string, postIDs []string) error

	Page(ctx context.Context, timelineID string, offset, limit int) ([]model.TimelineEntry, error)
	PostIDs(ctx context.Context, timelineID string) ([]string, error)
	Score(ctx context.Context, timelineID, postID string) (int64, bool, error)
	Scores(ctx context.Context, timelineID string, postIDs []string) (map[string]int64, error)
	Count(ctx context.Context, timelineID string) (int64, error)
	TimelineIDsOfPost(ctx context.Context, postID string) ([]string, error)

	// Merge 把 src 的成员按 MAX 聚合并入 dst，并补齐反向索引
	Merge(ctx context.Context, dstID, srcID string) error
	// UnionMax 把若干来源按 MAX 聚合到临时 key 并设置过期，返回该 key 下的分页
	UnionMax(ctx context.Context, scratchKey string, ttl time.Duration, sourceIDs []string, offset, limit int) ([]model.TimelineEntry, error)
}

type timelineRepository struct{ rdb redis.UniversalClient }

func NewTimelineRepository(rdb redis.UniversalClient) TimelineRepository {
	return &timelineRepository{rdb: rdb}
}

func (r *timelineRepository) FindByID(ctx context.Context, id string) (*model.Timeline, error) {
	attrs, err := r.rdb.HGetAll(ctx, timelineKey(id)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load timeline %s", id)
	}
	if len(attrs) == 0 {
		return nil, apperr.NotFound("Timeline not found")
	}
	return &model.Timeline{ID: id, Name: model.Purpose(attrs["name"]), OwnerID: attrs["userId"]}, nil
}

func (r *timelineRepository) FindMany(ctx context.Context, ids []string) ([]*model.Timeline, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, timelineKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load timelines")
	}
	res := make([]*model.Timeline, 0, len(ids))
	for i, cmd := range cmds {
		attrs := cmd.Val()
		if len(attrs) == 0 {
			continue
		}
		res = append(res, &model.Timeline{ID: ids[i], Name: model.Purpose(attrs["name"]), OwnerID: attrs["userId"]})
	}
	return res, nil
}

func (r *timelineRepository) EnsureEveryone(ctx context.Context) error {
	return errors.Wrap(r.rdb.HSetNX(ctx, timelineKey(model.EveryoneTimelineID), "name", string(model.PurposeEveryone)).Err(),
		"ensure everyone timeline")
}

func (r *timelineRepository) InsertOrBump(ctx context.Context, timelineID, postID string, score int64) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, timelinePostsKey(timelineID), zMember(score, postID))
		pipe.SAdd(ctx, postTimelinesKey(postID), timelineID)
		return nil
	})
	return errors.Wrapf(err, "insert post %s into timeline %s", postID, timelineID)
}

func (r *timelineRepository) InsertIfAbsent(ctx context.Context, timelineID, postID string, score int64) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, timelinePostsKey(timelineID), zMember(score, postID))
		pipe.SAdd(ctx, postTimelinesKey(postID), timelineID)
		return nil
	})
	return errors.Wrapf(err, "insert post %s into timeline %s", postID, timelineID)
}

func (r *timelineRepository) Remove(ctx context.Context, timelineID, postID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, timelinePostsKey(timelineID), postID)
		pipe.SRem(ctx, postTimelinesKey(postID), timelineID)
		return nil
	})
	return errors.Wrapf(err, "remove post %s from timeline %s", postID, timelineID)
}

func (r *timelineRepository) RemoveMany(ctx context.Context, timelineID string, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, timelinePostsKey(timelineID), toMembers(postIDs)...)
		for _, id := range postIDs {
			pipe.SRem(ctx, postTimelinesKey(id), timelineID)
		}
		return nil
	})
	return errors.Wrapf(err, "remove %d posts from timeline %s", len(postIDs), timelineID)
}

func (r *timelineRepository) Page(ctx context.Context, timelineID string, offset, limit int) ([]model.TimelineEntry, error) {
	return r.page(ctx, timelinePostsKey(timelineID), offset, limit)
}

func (r *timelineRepository) page(ctx context.Context, key string, offset, limit int) ([]model.TimelineEntry, error) {
	if limit <= 0 {
		return []model.TimelineEntry{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	zs, err := r.rdb.ZRevRangeWithScores(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "range %s", key)
	}
	res := make([]model.TimelineEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		res = append(res, model.TimelineEntry{PostID: member, Score: int64(z.Score)})
	}
	return res, nil
}

func (r *timelineRepository) PostIDs(ctx context.Context, timelineID string) ([]string, error) {
	ids, err := r.rdb.ZRevRange(ctx, timelinePostsKey(timelineID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load posts of timeline %s", timelineID)
}

func (r *timelineRepository) Score(ctx context.Context, timelineID, postID string) (int64, bool, error) {
	score, err := r.rdb.ZScore(ctx, timelinePostsKey(timelineID), postID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "score of %s in %s", postID, timelineID)
	}
	return int64(score), true, nil
}

func (r *timelineRepository) Scores(ctx context.Context, timelineID string, postIDs []string) (map[string]int64, error) {
	res := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return res, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.FloatCmd, len(postIDs))
	for i, id := range postIDs {
		cmds[i] = pipe.ZScore(ctx, timelinePostsKey(timelineID), id)
	}
	// 缺失成员的 redis.Nil 会作为首个错误返回，逐条判断
	_, _ = pipe.Exec(ctx)
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "scores in %s", timelineID)
		}
		res[postIDs[i]] = int64(score)
	}
	return res, nil
}

func (r *timelineRepository) Count(ctx context.Context, timelineID string) (int64, error) {
	n, err := r.rdb.ZCard(ctx, timelinePostsKey(timelineID)).Result()
	return n, errors.Wrapf(err, "count timeline %s", timelineID)
}

func (r *timelineRepository) TimelineIDsOfPost(ctx context.Context, postID string) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, postTimelinesKey(postID)).Result()
	return ids, errors.Wrapf(err, "load timelines of post %s", postID)
}

func (r *timelineRepository) Merge(ctx context.Context, dstID, srcID string) error {
	dst := timelinePostsKey(dstID)
	err := r.rdb.ZUnionStore(ctx, dst, &redis.ZStore{
		Keys:      []string{dst, timelinePostsKey(srcID)},
		Aggregate: "MAX",
	}).Err()
	if err != nil {
		return errors.Wrapf(err, "merge %s into %s", srcID, dstID)
	}
	postIDs, err := r.PostIDs(ctx, srcID)
	if err != nil {
		return err
	}
	if len(postIDs) == 0 {
		return nil
	}
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range postIDs {
			pipe.SAdd(ctx, postTimelinesKey(id), dstID)
		}
		return nil
	})
	return errors.Wrapf(err, "index merged posts of %s", dstID)
}

func (r *timelineRepository) UnionMax(ctx context.Context, scratchKey string, ttl time.Duration, sourceIDs []string, offset, limit int) ([]model.TimelineEntry, error) {
	keys := make([]string, len(sourceIDs))
	for i, id := range sourceIDs {
		keys[i] = timelinePostsKey(id)
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZUnionStore(ctx, scratchKey, &redis.ZStore{Keys: keys, Aggregate: "MAX"})
		pipe.Expire(ctx, scratchKey, ttl)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "union into %s", scratchKey)
	}
	return r.page(ctx, scratchKey, offset, limit)
}
