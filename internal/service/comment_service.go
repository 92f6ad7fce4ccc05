package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/pkg/logger"
)

type CommentService interface {
	Create(ctx context.Context, userID, postID, body string) (*model.Comment, error)
	Update(ctx context.Context, actorID, commentID, body string) (*model.Comment, error)
	Destroy(ctx context.Context, actorID, commentID string) error
}

type commentService struct {
	*engine
}

func NewCommentService(repos *repository.Repositories, runner *FanoutRunner) CommentService {
	return &commentService{engine: newEngine(repos, runner)}
}

func (s *commentService) Create(ctx context.Context, userID, postID, body string) (*model.Comment, error) {
	body, err := normalizeBody(body, "Comment")
	if err != nil {
		return nil, err
	}
	post, err := s.repos.Posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.vis.mustShow(ctx, userID, post); err != nil {
		return nil, err
	}
	commented, err := s.hasCommented(ctx, post.ID, userID)
	if err != nil {
		return nil, err
	}

	timelines, err := s.postTimelines(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	closure, err := s.closure.forActivity(ctx, post, timelines, userID, model.PurposeComments)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	c := &model.Comment{Body: body, PostID: post.ID, AuthorID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.repos.Comments.Create(ctx, c); err != nil {
		return nil, err
	}
	// 评论记录一落地就计数；destroy 以作者在帖下是否还有评论为准回退
	if !commented {
		if err := s.repos.Stats.Incr(ctx, userID, model.StatsDiscussions, 1); err != nil {
			logger.Error("update discussions count", zap.String("feed", userID), zap.Error(err))
		}
	}
	if err := s.repos.Posts.AppendComment(ctx, post.ID, c.ID); err != nil {
		return nil, err
	}

	if post.Bumpable {
		if err := s.repos.Posts.Touch(ctx, post.ID, now); err != nil {
			return nil, err
		}
	}

	ev := model.Event{Kind: model.EventNewComment, PostID: post.ID, Payload: c, CreatedAt: now}
	tasks := tasksFor(closure, s.bumpWrite(post, now), func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	})
	tasks = append(tasks, postScoped(ev))
	if err := s.runner.Run(ctx, "comment.create", tasks); err != nil {
		return c, apperr.Infra(err, "comment fan-out incomplete")
	}
	return c, nil
}

// hasCommented feedID 在该帖子下是否已有评论
func (s *commentService) hasCommented(ctx context.Context, postID, feedID string) (bool, error) {
	ids, err := s.repos.Posts.CommentIDs(ctx, postID)
	if err != nil {
		return false, err
	}
	comments, err := s.repos.Comments.FindMany(ctx, ids)
	if err != nil {
		return false, err
	}
	for _, c := range comments {
		if c.AuthorID == feedID {
			return true, nil
		}
	}
	return false, nil
}

func (s *commentService) owned(ctx context.Context, actorID, commentID, action string) (*model.Comment, error) {
	c, err := s.repos.Comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actorID {
		return nil, apperr.Forbidden("You can't " + action + " another user's comment")
	}
	return c, nil
}

func (s *commentService) Update(ctx context.Context, actorID, commentID, body string) (*model.Comment, error) {
	c, err := s.owned(ctx, actorID, commentID, "update")
	if err != nil {
		return nil, err
	}
	if c.Body, err = normalizeBody(body, "Comment"); err != nil {
		return nil, err
	}
	c.UpdatedAt = nowFunc()
	if err := s.repos.Comments.Update(ctx, c); err != nil {
		return nil, err
	}

	timelines, err := s.repos.Timelines.TimelineIDsOfPost(ctx, c.PostID)
	if err != nil {
		return nil, err
	}
	ev := model.Event{Kind: model.EventUpdateComment, PostID: c.PostID, Payload: c, CreatedAt: c.UpdatedAt}
	tasks := tasksFor(timelines, nil, func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	})
	tasks = append(tasks, postScoped(ev))
	return c, s.runner.Run(ctx, "comment.update", tasks)
}

func (s *commentService) Destroy(ctx context.Context, actorID, commentID string) error {
	c, err := s.owned(ctx, actorID, commentID, "destroy")
	if err != nil {
		return err
	}
	post, err := s.repos.Posts.FindByID(ctx, c.PostID)
	if err != nil {
		return err
	}
	return s.destroy(ctx, c, post)
}

// destroy 删除评论并通知；作者在该帖下已无其他评论时回退 discussions 计数，并把帖子移出其 Comments 时间线
func (s *commentService) destroy(ctx context.Context, c *model.Comment, post *model.Post) error {
	if err := s.repos.Posts.RemoveComment(ctx, post.ID, c.ID); err != nil {
		return err
	}
	if err := s.repos.Comments.Delete(ctx, c.ID); err != nil {
		return err
	}
	remaining, err := s.hasCommented(ctx, post.ID, c.AuthorID)
	if err != nil {
		return err
	}
	if !remaining {
		if err := s.repos.Stats.Incr(ctx, c.AuthorID, model.StatsDiscussions, -1); err != nil {
			logger.Error("update discussions count", zap.String("feed", c.AuthorID), zap.Error(err))
		}
	}

	timelines, err := s.repos.Timelines.TimelineIDsOfPost(ctx, post.ID)
	if err != nil {
		return err
	}
	ev := model.Event{Kind: model.EventDestroyComment, PostID: post.ID, Payload: model.CommentRef{PostID: post.ID, CommentID: c.ID}}
	tasks := tasksFor(timelines, nil, func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	})
	tasks = append(tasks, postScoped(ev))
	if err := s.runner.Run(ctx, "comment.destroy", tasks); err != nil {
		return err
	}

	if remaining {
		return nil
	}
	commentsID, err := s.repos.Feeds.TimelineID(ctx, c.AuthorID, model.PurposeComments)
	if err != nil {
		return err
	}
	return s.repos.Timelines.Remove(ctx, commentsID, post.ID)
}
