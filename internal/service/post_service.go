package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/pkg/logger"
)

// CreatePostInput Feeds 为目标 feed 的用户名；发给别人的个人 feed 即私信
type CreatePostInput struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
	Feeds       []string `json:"feeds"`
}

// PostView 读出的帖子：附带点赞、评论与当前读者的隐藏标记
type PostView struct {
	*model.Post
	IsHidden bool             `json:"isHidden,omitempty"`
	Likes    []string         `json:"likes"`
	Comments []*model.Comment `json:"comments"`
}

type PostService interface {
	Create(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error)
	Get(ctx context.Context, readerID, postID string) (*PostView, error)
	Update(ctx context.Context, actorID, postID, body string) (*model.Post, error)
	Destroy(ctx context.Context, actorID, postID string) error

	Like(ctx context.Context, userID, postID string) error
	Unlike(ctx context.Context, userID, postID string) error
	Hide(ctx context.Context, userID, postID string) error
	Unhide(ctx context.Context, userID, postID string) error
}

type postService struct {
	*engine
	comments *commentService
}

func NewPostService(repos *repository.Repositories, runner *FanoutRunner) PostService {
	e := newEngine(repos, runner)
	return &postService{engine: e, comments: &commentService{engine: e}}
}

func (s *postService) Create(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error) {
	body, err := normalizeBody(in.Body, "Post")
	if err != nil {
		return nil, err
	}
	if len(in.Feeds) == 0 {
		return nil, apperr.Validation("Cannot publish post to /dev/null")
	}
	author, err := s.repos.Feeds.FindByID(ctx, authorID)
	if err != nil {
		return nil, err
	}

	// 所有目标先解析并校验，任一失败则不做任何写入
	var (
		targets  []*model.Timeline
		groups   []string
		everyone bool
		seen     = make(map[string]struct{}, len(in.Feeds))
	)
	for _, handle := range in.Feeds {
		dest, err := s.repos.Feeds.FindByUsername(ctx, handle)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Forbidden("Not found")
		}
		if err != nil {
			return nil, err
		}
		if _, dup := seen[dest.ID]; dup {
			continue
		}
		seen[dest.ID] = struct{}{}
		if err := s.feeds.ValidateCanPost(ctx, dest, author); err != nil {
			return nil, err
		}

		if dest.ID == author.ID || !capabilityOf(dest.Kind).directFromOthers {
			tl, err := s.timelineOf(ctx, dest.ID, model.PurposePosts)
			if err != nil {
				return nil, err
			}
			targets = append(targets, tl)
			if !dest.IsPrivate {
				everyone = true
			}
			if dest.IsGroup() {
				groups = append(groups, tl.ID)
			}
			continue
		}
		for _, owner := range []string{author.ID, dest.ID} {
			tl, err := s.timelineOf(ctx, owner, model.PurposeDirects)
			if err != nil {
				return nil, err
			}
			targets = append(targets, tl)
		}
	}

	closure, err := s.closure.forPost(ctx, author.ID, targets, everyone)
	if err != nil {
		return nil, err
	}
	if everyone {
		if err := s.repos.Timelines.EnsureEveryone(ctx); err != nil {
			return nil, err
		}
	}

	now := nowFunc()
	post := &model.Post{
		Body:          body,
		AuthorID:      author.ID,
		Bumpable:      true,
		AttachmentIDs: in.Attachments,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repos.Posts.Create(ctx, post); err != nil {
		return nil, err
	}

	tasks := tasksFor(closure, s.bumpWrite(post, now), func(id string) *model.Event {
		return &model.Event{Kind: model.EventNewPost, TimelineID: id, PostID: post.ID, Payload: post, CreatedAt: now}
	})
	fanErr := s.runner.Run(ctx, "post.create", tasks)

	if err := s.repos.Stats.Incr(ctx, author.ID, model.StatsPosts, 1); err != nil {
		logger.Error("update posts count", zap.String("feed", author.ID), zap.Error(err))
	}
	// 群组有新帖：刷新成员订阅列表里该群组的位置
	for _, g := range groups {
		members, err := s.repos.Subscriptions.SubscriberIDs(ctx, g)
		if err == nil {
			err = s.repos.Subscriptions.Touch(ctx, members, g, now)
		}
		if err != nil {
			logger.Warn("touch group subscriptions", zap.String("timeline", g), zap.Error(err))
		}
	}

	if fanErr != nil {
		return post, apperr.Infra(fanErr, "post fan-out incomplete")
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, readerID, postID string) (*PostView, error) {
	post, err := s.repos.Posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.vis.mustShow(ctx, readerID, post); err != nil {
		return nil, err
	}
	views, err := buildViews(ctx, s.repos, []*model.Post{post}, nil)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// owned 取出帖子并确认 actor 是作者
func (s *postService) owned(ctx context.Context, actorID, postID, action string) (*model.Post, error) {
	post, err := s.repos.Posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, apperr.Forbidden("You can't " + action + " another user's post")
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, actorID, postID, body string) (*model.Post, error) {
	post, err := s.owned(ctx, actorID, postID, "update")
	if err != nil {
		return nil, err
	}
	if post.Body, err = normalizeBody(body, "Post"); err != nil {
		return nil, err
	}
	post.UpdatedAt = nowFunc()
	if err := s.repos.Posts.Update(ctx, post); err != nil {
		return nil, err
	}

	timelines, err := s.repos.Timelines.TimelineIDsOfPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	ev := model.Event{Kind: model.EventUpdatePost, PostID: post.ID, Payload: post, CreatedAt: post.UpdatedAt}
	tasks := tasksFor(timelines, nil, func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	})
	tasks = append(tasks, postScoped(ev))
	return post, s.runner.Run(ctx, "post.update", tasks)
}

func (s *postService) Destroy(ctx context.Context, actorID, postID string) error {
	post, err := s.owned(ctx, actorID, postID, "delete")
	if err != nil {
		return err
	}

	commentIDs, err := s.repos.Posts.CommentIDs(ctx, post.ID)
	if err != nil {
		return err
	}
	comments, err := s.repos.Comments.FindMany(ctx, commentIDs)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if err := s.comments.destroy(ctx, c, post); err != nil {
			return err
		}
	}

	timelines, err := s.repos.Timelines.TimelineIDsOfPost(ctx, post.ID)
	if err != nil {
		return err
	}
	ev := model.Event{Kind: model.EventDestroyPost, PostID: post.ID, Payload: model.PostRef{PostID: post.ID}}
	notify := tasksFor(timelines, nil, func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	})
	notify = append(notify, postScoped(ev))
	// 先通知再移除成员关系
	if err := s.runner.Run(ctx, "post.destroy.notify", notify); err != nil {
		return err
	}
	remove := tasksFor(timelines, func(ctx context.Context, id string) error {
		return s.repos.Timelines.Remove(ctx, id, post.ID)
	}, nil)
	if err := s.runner.Run(ctx, "post.destroy", remove); err != nil {
		return apperr.Infra(err, "post removal incomplete")
	}

	likes, err := s.repos.Posts.LikeCount(ctx, post.ID)
	if err != nil {
		return err
	}
	if err := s.repos.Posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	if err := s.repos.Stats.Incr(ctx, post.AuthorID, model.StatsPosts, -1); err != nil {
		logger.Error("update posts count", zap.String("feed", post.AuthorID), zap.Error(err))
	}
	if likes > 0 {
		if err := s.repos.Stats.Incr(ctx, post.AuthorID, model.StatsLikes, -likes); err != nil {
			logger.Error("update likes count", zap.String("feed", post.AuthorID), zap.Error(err))
		}
	}
	return nil
}

// visiblePost 读者看不到的帖子一律按不存在处理
func (s *postService) visiblePost(ctx context.Context, readerID, postID string) (*model.Post, error) {
	post, err := s.repos.Posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.vis.mustShow(ctx, readerID, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) Like(ctx context.Context, userID, postID string) error {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if err := s.feeds.ValidateCanLike(ctx, userID, post); err != nil {
		return err
	}
	// 先算受影响的时间线，读失败时点赞尚未写入
	timelines, err := s.postTimelines(ctx, post.ID)
	if err != nil {
		return err
	}
	closure, err := s.closure.forActivity(ctx, post, timelines, userID, model.PurposeLikes)
	if err != nil {
		return err
	}

	now := nowFunc()
	added, err := s.repos.Posts.AddLike(ctx, post.ID, userID, now)
	if err != nil {
		return err
	}
	if !added {
		return apperr.Forbidden("already liked")
	}
	// 计数紧跟点赞边，后续步骤失败不会让两者失配
	if err := s.repos.Stats.Incr(ctx, post.AuthorID, model.StatsLikes, 1); err != nil {
		logger.Error("update likes count", zap.String("feed", post.AuthorID), zap.Error(err))
	}

	if post.Bumpable {
		if err := s.repos.Posts.Touch(ctx, post.ID, now); err != nil {
			return err
		}
	}

	ev := model.Event{Kind: model.EventNewLike, PostID: post.ID, Payload: model.LikePayload{PostID: post.ID, UserID: userID}, CreatedAt: now}
	tasks := tasksFor(closure, s.bumpWrite(post, now), func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	})
	tasks = append(tasks, postScoped(ev))
	if err := s.runner.Run(ctx, "post.like", tasks); err != nil {
		return apperr.Infra(err, "like fan-out incomplete")
	}
	return nil
}

func (s *postService) Unlike(ctx context.Context, userID, postID string) error {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if err := s.feeds.ValidateCanUnlike(ctx, userID, post); err != nil {
		return err
	}
	likesID, err := s.repos.Feeds.TimelineID(ctx, userID, model.PurposeLikes)
	if err != nil {
		return err
	}
	timelines, err := s.postTimelines(ctx, post.ID)
	if err != nil {
		return err
	}

	removed, err := s.repos.Posts.RemoveLike(ctx, post.ID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.Forbidden("not liked")
	}
	if err := s.repos.Stats.Incr(ctx, post.AuthorID, model.StatsLikes, -1); err != nil {
		logger.Error("update likes count", zap.String("feed", post.AuthorID), zap.Error(err))
	}

	ev := model.Event{Kind: model.EventRemoveLike, PostID: post.ID, Payload: model.LikePayload{PostID: post.ID, UserID: userID}, CreatedAt: nowFunc()}
	event := func(id string) *model.Event {
		e := ev
		e.TimelineID = id
		return &e
	}
	tasks := tasksFor([]string{likesID}, func(ctx context.Context, id string) error {
		return s.repos.Timelines.Remove(ctx, id, post.ID)
	}, event)
	others := newTimelineSet()
	others.seen[likesID] = struct{}{}
	others.add(timelineIDs(timelines, model.PurposeHides)...)
	tasks = append(tasks, tasksFor(others.list(), nil, event)...)
	tasks = append(tasks, postScoped(ev))
	if err := s.runner.Run(ctx, "post.unlike", tasks); err != nil {
		return apperr.Infra(err, "unlike fan-out incomplete")
	}
	return nil
}

// Hide 只是读者自己的覆盖层：写入 Hides，不动 RiverOfNews，不冒泡
func (s *postService) Hide(ctx context.Context, userID, postID string) error {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return err
	}
	hidesID, err := s.repos.Feeds.TimelineID(ctx, userID, model.PurposeHides)
	if err != nil {
		return err
	}
	if err := s.repos.Timelines.InsertOrBump(ctx, hidesID, post.ID, post.Score()); err != nil {
		return err
	}
	s.runner.Notify(ctx, model.Event{Kind: model.EventHidePost, PostID: post.ID, UserID: userID, Payload: model.PostRef{PostID: post.ID}})
	return nil
}

func (s *postService) Unhide(ctx context.Context, userID, postID string) error {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return err
	}
	hidesID, err := s.repos.Feeds.TimelineID(ctx, userID, model.PurposeHides)
	if err != nil {
		return err
	}
	if err := s.repos.Timelines.Remove(ctx, hidesID, post.ID); err != nil {
		return err
	}
	s.runner.Notify(ctx, model.Event{Kind: model.EventUnhidePost, PostID: post.ID, UserID: userID, Payload: model.PostRef{PostID: post.ID}})
	return nil
}
