package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/pkg/logger"
)

// SubscriptionList 订阅列表：时间线及其所属 feed
type SubscriptionList struct {
	Subscriptions []*model.Timeline `json:"subscriptions"`
	Feeds         []*model.Feed     `json:"subscribers"`
}

// RelationshipService 订阅与屏蔽
type RelationshipService interface {
	Subscribe(ctx context.Context, subscriberID, username string) error
	Unsubscribe(ctx context.Context, subscriberID, username string) error
	// SubscribeTo 订阅一个 Posts 时间线，同时订阅其所属 feed 的公开时间线并把帖子合并进自己的 RiverOfNews
	SubscribeTo(ctx context.Context, subscriberID, timelineID string) error
	UnsubscribeFrom(ctx context.Context, subscriberID, timelineID string) error

	Ban(ctx context.Context, feedID, username string) error
	Unban(ctx context.Context, feedID, username string) error

	ListSubscriptions(ctx context.Context, username string, page, pageSize int) (*SubscriptionList, error)
	ListSubscribers(ctx context.Context, username string, page, pageSize int) ([]*model.Feed, error)
	// SubscriberFeeds 订阅了任意一条时间线（Posts / Comments / Likes）的 feed，最近订阅的在前
	SubscriberFeeds(ctx context.Context, timelineID string, page, pageSize int) ([]*model.Feed, error)
}

type relationshipService struct {
	repos *repository.Repositories
}

func NewRelationshipService(repos *repository.Repositories) RelationshipService {
	return &relationshipService{repos: repos}
}

func (s *relationshipService) Subscribe(ctx context.Context, subscriberID, username string) error {
	postsID, err := s.postsTimelineOf(ctx, username)
	if err != nil {
		return err
	}
	return s.SubscribeTo(ctx, subscriberID, postsID)
}

func (s *relationshipService) Unsubscribe(ctx context.Context, subscriberID, username string) error {
	postsID, err := s.postsTimelineOf(ctx, username)
	if err != nil {
		return err
	}
	return s.UnsubscribeFrom(ctx, subscriberID, postsID)
}

func (s *relationshipService) postsTimelineOf(ctx context.Context, username string) (string, error) {
	f, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return s.repos.Feeds.TimelineID(ctx, f.ID, model.PurposePosts)
}

// target 取出并校验被订阅的 Posts 时间线
func (s *relationshipService) target(ctx context.Context, subscriberID, timelineID string) (*model.Timeline, error) {
	tl, err := s.repos.Timelines.FindByID(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	if tl.Name != model.PurposePosts {
		return nil, apperr.Validation("Invalid timeline")
	}
	if tl.OwnerID == subscriberID {
		return nil, apperr.Validation("Invalid")
	}
	return tl, nil
}

func (s *relationshipService) SubscribeTo(ctx context.Context, subscriberID, timelineID string) error {
	tl, err := s.target(ctx, subscriberID, timelineID)
	if err != nil {
		return err
	}
	if banned, err := s.repos.Bans.Exists(ctx, tl.OwnerID, subscriberID); err != nil {
		return err
	} else if banned {
		return apperr.Forbidden("You cannot subscribe to this feed")
	}
	if banned, err := s.repos.Bans.Exists(ctx, subscriberID, tl.OwnerID); err != nil {
		return err
	} else if banned {
		return apperr.Forbidden("You have banned this feed")
	}
	subscribed, err := s.repos.Subscriptions.Exists(ctx, subscriberID, tl.ID)
	if err != nil {
		return err
	}
	if subscribed {
		// 上次订阅可能在合并前失败：重放补齐边与 River，再报告已订阅
		if err := s.subscribe(ctx, subscriberID, tl); err != nil {
			return err
		}
		return apperr.Forbidden("You are already subscribed to that user")
	}
	return s.subscribe(ctx, subscriberID, tl)
}

// subscribe 各步骤都幂等，可单独重试；计数只在 Posts 边真正新增时立即调整
func (s *relationshipService) subscribe(ctx context.Context, subscriberID string, tl *model.Timeline) error {
	now := nowFunc()
	for _, p := range model.PublicPurposes {
		id := tl.ID
		if p != model.PurposePosts {
			var err error
			if id, err = s.repos.Feeds.TimelineID(ctx, tl.OwnerID, p); err != nil {
				return err
			}
		}
		added, err := s.repos.Subscriptions.Create(ctx, subscriberID, id, now)
		if err != nil {
			return err
		}
		if p == model.PurposePosts && added {
			s.adjustCounts(ctx, subscriberID, tl.OwnerID, 1)
		}
	}

	riverID, err := s.repos.Feeds.TimelineID(ctx, subscriberID, model.PurposeRiverOfNews)
	if err != nil {
		return err
	}
	if err := s.repos.Timelines.Merge(ctx, riverID, tl.ID); err != nil {
		return err
	}
	logger.Debug("subscribed", zap.String("subscriber", subscriberID), zap.String("timeline", tl.ID))
	return nil
}

func (s *relationshipService) UnsubscribeFrom(ctx context.Context, subscriberID, timelineID string) error {
	tl, err := s.target(ctx, subscriberID, timelineID)
	if err != nil {
		return err
	}
	subscribed, err := s.repos.Subscriptions.Exists(ctx, subscriberID, tl.ID)
	if err != nil {
		return err
	}
	if !subscribed {
		return apperr.Forbidden("You are not subscribed to that user")
	}
	owner, err := s.repos.Feeds.FindByID(ctx, tl.OwnerID)
	if err != nil {
		return err
	}
	if capabilityOf(owner.Kind).administered {
		admins, err := s.repos.Feeds.AdministratorIDs(ctx, owner.ID)
		if err != nil {
			return err
		}
		for _, id := range admins {
			if id == subscriberID {
				return apperr.Forbidden("Group administrators cannot unsubscribe from own groups")
			}
		}
	}
	return s.unsubscribe(ctx, subscriberID, tl)
}

func (s *relationshipService) unsubscribe(ctx context.Context, subscriberID string, tl *model.Timeline) error {
	// 只处理已存在的时间线，取消订阅不懒创建
	owned, err := s.repos.Feeds.TimelineIDs(ctx, tl.OwnerID)
	if err != nil {
		return err
	}
	for _, p := range model.PublicPurposes {
		id := tl.ID
		if p != model.PurposePosts {
			var ok bool
			if id, ok = owned[p]; !ok {
				continue
			}
		}
		removed, err := s.repos.Subscriptions.Delete(ctx, subscriberID, id)
		if err != nil {
			return err
		}
		if p == model.PurposePosts && removed {
			s.adjustCounts(ctx, subscriberID, tl.OwnerID, -1)
		}
	}

	if err := s.unmerge(ctx, subscriberID, tl.ID); err != nil {
		return err
	}
	logger.Debug("unsubscribed", zap.String("subscriber", subscriberID), zap.String("timeline", tl.ID))
	return nil
}

// unmerge 从 RiverOfNews 移除该 Posts 时间线的帖子，自己发的除外
func (s *relationshipService) unmerge(ctx context.Context, subscriberID, postsID string) error {
	postIDs, err := s.repos.Timelines.PostIDs(ctx, postsID)
	if err != nil || len(postIDs) == 0 {
		return err
	}
	ownID, err := s.repos.Feeds.TimelineID(ctx, subscriberID, model.PurposePosts)
	if err != nil {
		return err
	}
	own, err := s.repos.Timelines.Scores(ctx, ownID, postIDs)
	if err != nil {
		return err
	}
	drop := postIDs[:0:0]
	for _, id := range postIDs {
		if _, mine := own[id]; !mine {
			drop = append(drop, id)
		}
	}
	riverID, err := s.repos.Feeds.TimelineID(ctx, subscriberID, model.PurposeRiverOfNews)
	if err != nil {
		return err
	}
	return s.repos.Timelines.RemoveMany(ctx, riverID, drop)
}

// adjustCounts 计数失败只记日志
func (s *relationshipService) adjustCounts(ctx context.Context, subscriberID, ownerID string, delta int64) {
	if err := s.repos.Stats.Incr(ctx, subscriberID, model.StatsSubscriptions, delta); err != nil {
		logger.Error("update subscriptions count", zap.String("feed", subscriberID), zap.Error(err))
	}
	if err := s.repos.Stats.Incr(ctx, ownerID, model.StatsSubscribers, delta); err != nil {
		logger.Error("update subscribers count", zap.String("feed", ownerID), zap.Error(err))
	}
}

func (s *relationshipService) Ban(ctx context.Context, feedID, username string) error {
	other, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if other.ID == feedID {
		return apperr.Validation("You cannot ban yourself")
	}
	postsID, err := s.repos.Feeds.TimelineID(ctx, feedID, model.PurposePosts)
	if err != nil {
		return err
	}
	subscribed, err := s.repos.Subscriptions.Exists(ctx, other.ID, postsID)
	if err != nil {
		return err
	}
	if subscribed {
		tl, err := s.repos.Timelines.FindByID(ctx, postsID)
		if err != nil {
			return err
		}
		if err := s.unsubscribe(ctx, other.ID, tl); err != nil {
			return err
		}
	}
	return s.repos.Bans.Create(ctx, feedID, other.ID, nowFunc())
}

func (s *relationshipService) Unban(ctx context.Context, feedID, username string) error {
	other, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.repos.Bans.Delete(ctx, feedID, other.ID)
}

func (s *relationshipService) ListSubscriptions(ctx context.Context, username string, page, pageSize int) (*SubscriptionList, error) {
	f, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	offset, pageSize := pageBounds(page, pageSize)
	items, err := s.repos.Subscriptions.ListSubscriptions(ctx, f.ID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.TimelineID
	}
	timelines, err := s.repos.Timelines.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(timelines))
	seen := make(map[string]struct{}, len(timelines))
	for _, tl := range timelines {
		if _, ok := seen[tl.OwnerID]; ok {
			continue
		}
		seen[tl.OwnerID] = struct{}{}
		owners = append(owners, tl.OwnerID)
	}
	feeds, err := s.repos.Feeds.FindMany(ctx, owners)
	if err != nil {
		return nil, err
	}
	return &SubscriptionList{Subscriptions: timelines, Feeds: feeds}, nil
}

func (s *relationshipService) ListSubscribers(ctx context.Context, username string, page, pageSize int) ([]*model.Feed, error) {
	postsID, err := s.postsTimelineOf(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.SubscriberFeeds(ctx, postsID, page, pageSize)
}

func (s *relationshipService) SubscriberFeeds(ctx context.Context, timelineID string, page, pageSize int) ([]*model.Feed, error) {
	if _, err := s.repos.Timelines.FindByID(ctx, timelineID); err != nil {
		return nil, err
	}
	ids, err := s.repos.Subscriptions.SubscriberIDs(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	offset, pageSize := pageBounds(page, pageSize)
	if offset >= len(ids) {
		return []*model.Feed{}, nil
	}
	end := offset + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	return s.repos.Feeds.FindMany(ctx, ids[offset:end])
}

// maxPage 页码上限，保证 (page-1)*pageSize 不溢出
const maxPage = 1 << 20

// pageBounds 页码从 1 开始
func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}
