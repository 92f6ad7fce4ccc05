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

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id string) (*model.Post, error)
	FindMany(ctx context.Context, ids []string) (map[string]*model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	// Touch 只刷新 updatedAt（bump 时用）
	Touch(ctx context.Context, id string, at time.Time) error
	// Delete 删除帖子记录以及点赞、评论列表、附件、反向索引
	Delete(ctx context.Context, id string) error

	// AddLike 返回是否新增
	AddLike(ctx context.Context, postID, feedID string, at time.Time) (bool, error)
	// RemoveLike 返回是否删除
	RemoveLike(ctx context.Context, postID, feedID string) (bool, error)
	HasLike(ctx context.Context, postID, feedID string) (bool, error)
	LikeIDs(ctx context.Context, postID string) ([]string, error)
	LikeCount(ctx context.Context, postID string) (int64, error)

	AppendComment(ctx context.Context, postID, commentID string) error
	RemoveComment(ctx context.Context, postID, commentID string) error
	CommentIDs(ctx context.Context, postID string) ([]string, error)
}

type postRepository struct{ rdb redis.UniversalClient }

func NewPostRepository(rdb redis.UniversalClient) PostRepository { return &postRepository{rdb: rdb} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, postKey(p.ID), map[string]interface{}{
			"body":      p.Body,
			"userId":    p.AuthorID,
			"bumpable":  boolFlag(p.Bumpable),
			"createdAt": millis(p.CreatedAt),
			"updatedAt": millis(p.UpdatedAt),
		})
		if len(p.AttachmentIDs) > 0 {
			pipe.RPush(ctx, postAttachmentsKey(p.ID), toMembers(p.AttachmentIDs)...)
		}
		return nil
	})
	return errors.Wrapf(err, "create post %s", p.ID)
}

func (r *postRepository) FindByID(ctx context.Context, id string) (*model.Post, error) {
	var (
		attrs *redis.MapStringStringCmd
		atts  *redis.StringSliceCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		attrs = pipe.HGetAll(ctx, postKey(id))
		atts = pipe.LRange(ctx, postAttachmentsKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load post %s", id)
	}
	if len(attrs.Val()) == 0 {
		return nil, apperr.NotFound("Post not found")
	}
	return postFromHash(id, attrs.Val(), atts.Val()), nil
}

func (r *postRepository) FindMany(ctx context.Context, ids []string) (map[string]*model.Post, error) {
	res := make(map[string]*model.Post, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	pipe := r.rdb.Pipeline()
	attrs := make([]*redis.MapStringStringCmd, len(ids))
	atts := make([]*redis.StringSliceCmd, len(ids))
	for i, id := range ids {
		attrs[i] = pipe.HGetAll(ctx, postKey(id))
		atts[i] = pipe.LRange(ctx, postAttachmentsKey(id), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load posts")
	}
	for i, id := range ids {
		if len(attrs[i].Val()) == 0 {
			continue
		}
		res[id] = postFromHash(id, attrs[i].Val(), atts[i].Val())
	}
	return res, nil
}

func (r *postRepository) Update(ctx context.Context, p *model.Post) error {
	return errors.Wrapf(r.rdb.HSet(ctx, postKey(p.ID),
		"body", p.Body,
		"updatedAt", millis(p.UpdatedAt),
	).Err(), "update post %s", p.ID)
}

func (r *postRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return errors.Wrapf(r.rdb.HSet(ctx, postKey(id), "updatedAt", millis(at)).Err(), "touch post %s", id)
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	return errors.Wrapf(r.rdb.Del(ctx,
		postKey(id),
		postLikesKey(id),
		postCommentsKey(id),
		postAttachmentsKey(id),
		postTimelinesKey(id),
	).Err(), "delete post %s", id)
}

func (r *postRepository) AddLike(ctx context.Context, postID, feedID string, at time.Time) (bool, error) {
	n, err := r.rdb.ZAddNX(ctx, postLikesKey(postID), zMember(at.UnixMilli(), feedID)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "like post %s", postID)
	}
	return n > 0, nil
}

func (r *postRepository) RemoveLike(ctx context.Context, postID, feedID string) (bool, error) {
	n, err := r.rdb.ZRem(ctx, postLikesKey(postID), feedID).Result()
	if err != nil {
		return false, errors.Wrapf(err, "unlike post %s", postID)
	}
	return n > 0, nil
}

func (r *postRepository) HasLike(ctx context.Context, postID, feedID string) (bool, error) {
	_, err := r.rdb.ZScore(ctx, postLikesKey(postID), feedID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "check like on %s", postID)
	}
	return true, nil
}

func (r *postRepository) LikeIDs(ctx context.Context, postID string) ([]string, error) {
	ids, err := r.rdb.ZRevRange(ctx, postLikesKey(postID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load likes of %s", postID)
}

func (r *postRepository) LikeCount(ctx context.Context, postID string) (int64, error) {
	n, err := r.rdb.ZCard(ctx, postLikesKey(postID)).Result()
	return n, errors.Wrapf(err, "count likes of %s", postID)
}

func (r *postRepository) AppendComment(ctx context.Context, postID, commentID string) error {
	return errors.Wrapf(r.rdb.RPush(ctx, postCommentsKey(postID), commentID).Err(), "append comment to %s", postID)
}

func (r *postRepository) RemoveComment(ctx context.Context, postID, commentID string) error {
	return errors.Wrapf(r.rdb.LRem(ctx, postCommentsKey(postID), 0, commentID).Err(), "remove comment from %s", postID)
}

func (r *postRepository) CommentIDs(ctx context.Context, postID string) ([]string, error) {
	ids, err := r.rdb.LRange(ctx, postCommentsKey(postID), 0, -1).Result()
	return ids, errors.Wrapf(err, "load comments of %s", postID)
}

func postFromHash(id string, attrs map[string]string, attachments []string) *model.Post {
	return &model.Post{
		ID:            id,
		Body:          attrs["body"],
		AuthorID:      attrs["userId"],
		Bumpable:      parseFlag(attrs["bumpable"], true),
		AttachmentIDs: attachments,
		CreatedAt:     parseMillis(attrs["createdAt"]),
		UpdatedAt:     parseMillis(attrs["updatedAt"]),
	}
}
