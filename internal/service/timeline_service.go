package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
)

// TimelinePage 一页时间线；Posts 只包含读者可见的帖子
type TimelinePage struct {
	Timeline *model.Timeline `json:"timeline"`
	Posts    []*PostView     `json:"posts"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
}

// TimelineService 各类时间线的读取；每个帖子都经过可见性判断
type TimelineService interface {
	// Home 读者的 RiverOfNews，带隐藏标记
	Home(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error)
	Posts(ctx context.Context, username, readerID string, offset, limit int) (*TimelinePage, error)
	Likes(ctx context.Context, username, readerID string, offset, limit int) (*TimelinePage, error)
	Comments(ctx context.Context, username, readerID string, offset, limit int) (*TimelinePage, error)
	Directs(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error)
	// MyDiscussions 读时合并 Comments 与 Likes（按最大分值）
	MyDiscussions(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error)
	Everyone(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error)
	// Authorize 读者能否实时订阅该时间线
	Authorize(ctx context.Context, readerID, timelineID string) error
}

type timelineService struct {
	repos        *repository.Repositories
	vis          *Visibility
	defaultLimit int
	maxLimit     int
	unionTTL     time.Duration
}

func NewTimelineService(repos *repository.Repositories, cfg config.TimelineConfig) TimelineService {
	s := &timelineService{
		repos:        repos,
		vis:          NewVisibility(repos),
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		unionTTL:     cfg.UnionTTL,
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 25
	}
	if s.maxLimit <= 0 {
		s.maxLimit = 100
	}
	if s.unionTTL <= 0 {
		s.unionTTL = 30 * time.Second
	}
	return s
}

func (s *timelineService) bounds(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return offset, limit
}

func requireReader(readerID string) error {
	if readerID == "" {
		return apperr.Forbidden("Not authenticated")
	}
	return nil
}

func (s *timelineService) own(ctx context.Context, feedID string, purpose model.Purpose) (*model.Timeline, error) {
	id, err := s.repos.Feeds.TimelineID(ctx, feedID, purpose)
	if err != nil {
		return nil, err
	}
	return &model.Timeline{ID: id, Name: purpose, OwnerID: feedID}, nil
}

func (s *timelineService) Home(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error) {
	if err := requireReader(readerID); err != nil {
		return nil, err
	}
	tl, err := s.own(ctx, readerID, model.PurposeRiverOfNews)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, tl, readerID, offset, limit, true)
}

func (s *timelineService) Posts(ctx context.Context, username, readerID string, offset, limit int) (*TimelinePage, error) {
	return s.named(ctx, username, model.PurposePosts, readerID, offset, limit)
}

func (s *timelineService) Likes(ctx context.Context, username, readerID string, offset, limit int) (*TimelinePage, error) {
	return s.named(ctx, username, model.PurposeLikes, readerID, offset, limit)
}

func (s *timelineService) Comments(ctx context.Context, username, readerID string, offset, limit int) (*TimelinePage, error) {
	return s.named(ctx, username, model.PurposeComments, readerID, offset, limit)
}

func (s *timelineService) named(ctx context.Context, username string, purpose model.Purpose, readerID string, offset, limit int) (*TimelinePage, error) {
	f, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	tl, err := s.own(ctx, f.ID, purpose)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, tl, readerID, offset, limit, false)
}

func (s *timelineService) Directs(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error) {
	if err := requireReader(readerID); err != nil {
		return nil, err
	}
	tl, err := s.own(ctx, readerID, model.PurposeDirects)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, tl, readerID, offset, limit, false)
}

func (s *timelineService) MyDiscussions(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error) {
	if err := requireReader(readerID); err != nil {
		return nil, err
	}
	comments, err := s.repos.Feeds.TimelineID(ctx, readerID, model.PurposeComments)
	if err != nil {
		return nil, err
	}
	likes, err := s.repos.Feeds.TimelineID(ctx, readerID, model.PurposeLikes)
	if err != nil {
		return nil, err
	}
	tl, err := s.own(ctx, readerID, model.PurposeMyDiscussions)
	if err != nil {
		return nil, err
	}

	offset, limit = s.bounds(offset, limit)
	scratch := repository.DiscussionsScratchKey(readerID, uuid.New().String())
	entries, err := s.repos.Timelines.UnionMax(ctx, scratch, s.unionTTL, []string{comments, likes}, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, tl, entries, readerID, offset, limit, false)
}

func (s *timelineService) Everyone(ctx context.Context, readerID string, offset, limit int) (*TimelinePage, error) {
	tl := &model.Timeline{ID: model.EveryoneTimelineID, Name: model.PurposeEveryone}
	return s.read(ctx, tl, readerID, offset, limit, false)
}

func (s *timelineService) read(ctx context.Context, tl *model.Timeline, readerID string, offset, limit int, overlay bool) (*TimelinePage, error) {
	offset, limit = s.bounds(offset, limit)
	entries, err := s.repos.Timelines.Page(ctx, tl.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, tl, entries, readerID, offset, limit, overlay)
}

func (s *timelineService) render(ctx context.Context, tl *model.Timeline, entries []model.TimelineEntry, readerID string, offset, limit int, overlay bool) (*TimelinePage, error) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PostID
	}
	found, err := s.repos.Posts.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	w, err := s.vis.viewer(ctx, readerID)
	if err != nil {
		return nil, err
	}
	posts := make([]*model.Post, 0, len(ids))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			continue
		}
		visible, err := w.canShow(ctx, p)
		if err != nil {
			return nil, err
		}
		if visible {
			posts = append(posts, p)
		}
	}

	var hidden map[string]int64
	if overlay && readerID != "" {
		hidesID, err := s.repos.Feeds.TimelineID(ctx, readerID, model.PurposeHides)
		if err != nil {
			return nil, err
		}
		if hidden, err = s.repos.Timelines.Scores(ctx, hidesID, ids); err != nil {
			return nil, err
		}
	}

	views, err := buildViews(ctx, s.repos, posts, hidden)
	if err != nil {
		return nil, err
	}
	return &TimelinePage{Timeline: tl, Posts: views, Offset: offset, Limit: limit}, nil
}

// buildViews 补齐点赞与评论；hidden 里出现的帖子标记为隐藏
func buildViews(ctx context.Context, repos *repository.Repositories, posts []*model.Post, hidden map[string]int64) ([]*PostView, error) {
	views := make([]*PostView, 0, len(posts))
	for _, p := range posts {
		likes, err := repos.Posts.LikeIDs(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		commentIDs, err := repos.Posts.CommentIDs(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		comments, err := repos.Comments.FindMany(ctx, commentIDs)
		if err != nil {
			return nil, err
		}
		if comments == nil {
			comments = []*model.Comment{}
		}
		_, isHidden := hidden[p.ID]
		views = append(views, &PostView{Post: p, IsHidden: isHidden, Likes: likes, Comments: comments})
	}
	return views, nil
}

// personalPurposes 只有所有者本人能读的时间线
var personalPurposes = map[model.Purpose]struct{}{
	model.PurposeRiverOfNews:   {},
	model.PurposeHides:         {},
	model.PurposeDirects:       {},
	model.PurposeMyDiscussions: {},
}

func (s *timelineService) Authorize(ctx context.Context, readerID, timelineID string) error {
	if timelineID == model.EveryoneTimelineID {
		return nil
	}
	tl, err := s.repos.Timelines.FindByID(ctx, timelineID)
	if err != nil {
		return err
	}
	if readerID != "" && tl.OwnerID == readerID {
		return nil
	}
	if _, personal := personalPurposes[tl.Name]; personal {
		return apperr.Forbidden("You can't read this timeline")
	}
	if readerID != "" {
		banned, err := s.repos.Bans.Exists(ctx, tl.OwnerID, readerID)
		if err != nil {
			return err
		}
		if banned {
			return apperr.Forbidden("You can't read this timeline")
		}
	}
	owner, err := s.repos.Feeds.FindByID(ctx, tl.OwnerID)
	if err != nil {
		return err
	}
	if !owner.IsPrivate {
		return nil
	}
	if readerID != "" {
		postsID, err := s.repos.Feeds.TimelineID(ctx, owner.ID, model.PurposePosts)
		if err != nil {
			return err
		}
		ok, err := s.repos.Subscriptions.Exists(ctx, readerID, postsID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Forbidden("You can't read this timeline")
}
