package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	FindMany(ctx context.Context, ids []string) ([]*model.Comment, error)
	Update(ctx context.Context, c *model.Comment) error
	Delete(ctx context.Context, id string) error
}

type commentRepository struct{ rdb redis.UniversalClient }

func NewCommentRepository(rdb redis.UniversalClient) CommentRepository {
	return &commentRepository{rdb: rdb}
}

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return errors.Wrapf(r.rdb.HSet(ctx, commentKey(c.ID), map[string]interface{}{
		"body":      c.Body,
		"postId":    c.PostID,
		"userId":    c.AuthorID,
		"createdAt": millis(c.CreatedAt),
		"updatedAt": millis(c.UpdatedAt),
	}).Err(), "create comment %s", c.ID)
}

func (r *commentRepository) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	attrs, err := r.rdb.HGetAll(ctx, commentKey(id)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load comment %s", id)
	}
	if len(attrs) == 0 {
		return nil, apperr.NotFound("Comment not found")
	}
	return commentFromHash(id, attrs), nil
}

// FindMany 按 ids 顺序返回，缺失的跳过
func (r *commentRepository) FindMany(ctx context.Context, ids []string) ([]*model.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, commentKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load comments")
	}
	res := make([]*model.Comment, 0, len(ids))
	for i, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		res = append(res, commentFromHash(ids[i], cmd.Val()))
	}
	return res, nil
}

func (r *commentRepository) Update(ctx context.Context, c *model.Comment) error {
	return errors.Wrapf(r.rdb.HSet(ctx, commentKey(c.ID),
		"body", c.Body,
		"updatedAt", millis(c.UpdatedAt),
	).Err(), "update comment %s", c.ID)
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	return errors.Wrapf(r.rdb.Del(ctx, commentKey(id)).Err(), "delete comment %s", id)
}

func commentFromHash(id string, attrs map[string]string) *model.Comment {
	return &model.Comment{
		ID:        id,
		Body:      attrs["body"],
		PostID:    attrs["postId"],
		AuthorID:  attrs["userId"],
		CreatedAt: parseMillis(attrs["createdAt"]),
		UpdatedAt: parseMillis(attrs["updatedAt"]),
	}
}
