package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/pkg/logger"
)

// CreateFeedInput 新建用户或群组
type CreateFeedInput struct {
	Username   string `json:"username" validate:"required,alphanum,min=3,max=25,username"`
	ScreenName string `json:"screenName" validate:"omitempty,min=3,max=25"`
	IsPrivate  bool   `json:"isPrivate"`
}

// UpdateProfileInput 修改资料；nil 字段不修改
type UpdateProfileInput struct {
	ScreenName *string `json:"screenName" validate:"omitempty,min=3,max=25"`
	IsPrivate  *bool   `json:"isPrivate"`
}

// FeedService 用户 / 群组：资料、订阅与屏蔽名单、发帖与点赞权限、计数
type FeedService interface {
	CreateUser(ctx context.Context, in CreateFeedInput) (*model.Feed, error)
	GetByID(ctx context.Context, id string) (*model.Feed, error)
	GetByUsername(ctx context.Context, username string) (*model.Feed, error)
	UpdateProfile(ctx context.Context, feedID string, in UpdateProfileInput) (*model.Feed, error)

	// GetSubscriptionIDs 订阅的时间线 id，最近订阅的在前
	GetSubscriptionIDs(ctx context.Context, feedID string) ([]string, error)
	// GetSubscriberIDs 订阅了该 feed Posts 时间线的 feed id
	GetSubscriberIDs(ctx context.Context, feedID string) ([]string, error)
	// GetBanIDs 屏蔽的 feed id，最近屏蔽的在前
	GetBanIDs(ctx context.Context, feedID string) ([]string, error)

	ValidateCanPost(ctx context.Context, target, author *model.Feed) error
	ValidateCanLike(ctx context.Context, feedID string, post *model.Post) error
	ValidateCanUnlike(ctx context.Context, feedID string, post *model.Post) error

	GetStats(ctx context.Context, username string) (*model.Stats, error)
	TopFeeds(ctx context.Context, category model.StatsCategory, limit int) ([]model.RankedFeed, error)
}

type feedService struct {
	repos *repository.Repositories
}

func NewFeedService(repos *repository.Repositories) FeedService {
	return &feedService{repos: repos}
}

func (s *feedService) CreateUser(ctx context.Context, in CreateFeedInput) (*model.Feed, error) {
	return s.create(ctx, model.FeedKindUser, in)
}

func (s *feedService) create(ctx context.Context, kind model.FeedKind, in CreateFeedInput) (*model.Feed, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.ScreenName == "" {
		in.ScreenName = in.Username
	}
	now := nowFunc()
	f := &model.Feed{
		Username:   in.Username,
		ScreenName: in.ScreenName,
		Kind:       kind,
		IsPrivate:  in.IsPrivate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repos.Feeds.Create(ctx, f); err != nil {
		return nil, err
	}
	if err := s.repos.Stats.Create(ctx, f.ID); err != nil {
		return nil, err
	}
	for _, p := range capabilityOf(kind).timelines {
		if _, err := s.repos.Feeds.TimelineID(ctx, f.ID, p); err != nil {
			return nil, err
		}
	}
	logger.Info("feed created", zap.String("id", f.ID), zap.String("username", f.Username), zap.String("type", string(kind)))
	return f, nil
}

func (s *feedService) GetByID(ctx context.Context, id string) (*model.Feed, error) {
	return s.repos.Feeds.FindByID(ctx, id)
}

func (s *feedService) GetByUsername(ctx context.Context, username string) (*model.Feed, error) {
	return s.repos.Feeds.FindByUsername(ctx, username)
}

func (s *feedService) UpdateProfile(ctx context.Context, feedID string, in UpdateProfileInput) (*model.Feed, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	f, err := s.repos.Feeds.FindByID(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if in.ScreenName != nil {
		f.ScreenName = *in.ScreenName
	}
	if in.IsPrivate != nil {
		f.IsPrivate = *in.IsPrivate
	}
	f.UpdatedAt = nowFunc()
	if err := s.repos.Feeds.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *feedService) GetSubscriptionIDs(ctx context.Context, feedID string) ([]string, error) {
	return s.repos.Subscriptions.SubscriptionIDs(ctx, feedID)
}

func (s *feedService) GetSubscriberIDs(ctx context.Context, feedID string) ([]string, error) {
	postsID, err := s.repos.Feeds.TimelineID(ctx, feedID, model.PurposePosts)
	if err != nil {
		return nil, err
	}
	return s.repos.Subscriptions.SubscriberIDs(ctx, postsID)
}

func (s *feedService) GetBanIDs(ctx context.Context, feedID string) ([]string, error) {
	return s.repos.Bans.BanIDs(ctx, feedID)
}

func (s *feedService) ValidateCanPost(ctx context.Context, target, author *model.Feed) error {
	if target.ID == author.ID {
		return nil
	}
	return capabilityOf(target.Kind).canPost(ctx, s, target, author)
}

func (s *feedService) ValidateCanLike(ctx context.Context, feedID string, post *model.Post) error {
	liked, err := s.repos.Posts.HasLike(ctx, post.ID, feedID)
	if err != nil {
		return err
	}
	if liked {
		return apperr.Forbidden("already liked")
	}
	return nil
}

func (s *feedService) ValidateCanUnlike(ctx context.Context, feedID string, post *model.Post) error {
	liked, err := s.repos.Posts.HasLike(ctx, post.ID, feedID)
	if err != nil {
		return err
	}
	if !liked {
		return apperr.Forbidden("not liked")
	}
	return nil
}

func (s *feedService) GetStats(ctx context.Context, username string) (*model.Stats, error) {
	f, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repos.Stats.Get(ctx, f.ID)
}

func (s *feedService) TopFeeds(ctx context.Context, category model.StatsCategory, limit int) ([]model.RankedFeed, error) {
	if !category.Valid() {
		return nil, apperr.Validation("Unknown stats category")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repos.Stats.Top(ctx, category, limit)
}

// mutual a 与 b 互相订阅了对方的 Posts 时间线
func (s *feedService) mutual(ctx context.Context, a, b string) (bool, error) {
	aPosts, err := s.repos.Feeds.TimelineID(ctx, a, model.PurposePosts)
	if err != nil {
		return false, err
	}
	bPosts, err := s.repos.Feeds.TimelineID(ctx, b, model.PurposePosts)
	if err != nil {
		return false, err
	}
	ok, err := s.repos.Subscriptions.Exists(ctx, a, bPosts)
	if err != nil || !ok {
		return false, err
	}
	return s.repos.Subscriptions.Exists(ctx, b, aPosts)
}
