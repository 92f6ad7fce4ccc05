package service

import (
	"context"

	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
)

// timelineSet 按加入顺序去重
type timelineSet struct {
	ids  []string
	seen map[string]struct{}
}

func newTimelineSet() *timelineSet { return &timelineSet{seen: make(map[string]struct{})} }

func (s *timelineSet) add(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

func (s *timelineSet) list() []string { return s.ids }

// closureStrategy 把一个目标时间线展开成额外受影响的时间线
type closureStrategy func(ctx context.Context, r *closureResolver, tl *model.Timeline) ([]string, error)

// closureStrategies 未列出的用途不向外展开
var closureStrategies = map[model.Purpose]closureStrategy{
	model.PurposePosts:    subscriberRivers,
	model.PurposeComments: friendOfFriend,
	model.PurposeLikes:    friendOfFriend,
}

// subscriberRivers 每个订阅者的 RiverOfNews（只展开一跳）
func subscriberRivers(ctx context.Context, r *closureResolver, tl *model.Timeline) ([]string, error) {
	subs, err := r.repos.Subscriptions.SubscriberIDs(ctx, tl.ID)
	if err != nil {
		return nil, err
	}
	return r.riversOf(ctx, subs)
}

// friendOfFriend 所有者自己的 RiverOfNews 加上订阅者的 RiverOfNews
func friendOfFriend(ctx context.Context, r *closureResolver, tl *model.Timeline) ([]string, error) {
	own, err := r.repos.Feeds.TimelineID(ctx, tl.OwnerID, model.PurposeRiverOfNews)
	if err != nil {
		return nil, err
	}
	rivers, err := subscriberRivers(ctx, r, tl)
	if err != nil {
		return nil, err
	}
	return append([]string{own}, rivers...), nil
}

// closureResolver 计算一次变更影响的时间线集合，只读不写
type closureResolver struct {
	repos *repository.Repositories
}

func (r *closureResolver) expand(ctx context.Context, tl *model.Timeline) ([]string, error) {
	strategy, ok := closureStrategies[tl.Name]
	if !ok {
		return nil, nil
	}
	return strategy(ctx, r, tl)
}

func (r *closureResolver) riversOf(ctx context.Context, feedIDs []string) ([]string, error) {
	res := make([]string, 0, len(feedIDs))
	for _, id := range feedIDs {
		river, err := r.repos.Feeds.TimelineID(ctx, id, model.PurposeRiverOfNews)
		if err != nil {
			return nil, err
		}
		res = append(res, river)
	}
	return res, nil
}

// forPost 新帖：目标时间线，Posts 目标的订阅者 River，非私信时再加作者 River 与（公开时）Everyone
func (r *closureResolver) forPost(ctx context.Context, authorID string, targets []*model.Timeline, everyone bool) ([]string, error) {
	set := newTimelineSet()
	direct := true
	for _, tl := range targets {
		set.add(tl.ID)
		if tl.Name == model.PurposePosts {
			direct = false
		}
	}
	for _, tl := range targets {
		extra, err := r.expand(ctx, tl)
		if err != nil {
			return nil, err
		}
		set.add(extra...)
	}
	if !direct {
		river, err := r.repos.Feeds.TimelineID(ctx, authorID, model.PurposeRiverOfNews)
		if err != nil {
			return nil, err
		}
		set.add(river)
		if everyone {
			set.add(model.EveryoneTimelineID)
		}
	}
	return set.list(), nil
}

// forActivity 评论 / 点赞：帖子所在时间线（不含 Hides）、作者 River、
// actor 的 Comments/Likes 时间线及其展开；私信帖只在自己所在的时间线里冒泡
func (r *closureResolver) forActivity(ctx context.Context, post *model.Post, postTimelines []*model.Timeline, actorID string, purpose model.Purpose) ([]string, error) {
	set := newTimelineSet()
	for _, tl := range postTimelines {
		if tl.Name == model.PurposeHides {
			continue
		}
		set.add(tl.ID)
	}
	if isDirect(postTimelines) {
		return set.list(), nil
	}

	authorRiver, err := r.repos.Feeds.TimelineID(ctx, post.AuthorID, model.PurposeRiverOfNews)
	if err != nil {
		return nil, err
	}
	set.add(authorRiver)

	activityID, err := r.repos.Feeds.TimelineID(ctx, actorID, purpose)
	if err != nil {
		return nil, err
	}
	set.add(activityID)
	extra, err := r.expand(ctx, &model.Timeline{ID: activityID, Name: purpose, OwnerID: actorID})
	if err != nil {
		return nil, err
	}
	set.add(extra...)
	return set.list(), nil
}

// isDirect 帖子只在 Directs 里，没有任何 Posts 时间线
func isDirect(timelines []*model.Timeline) bool {
	direct := false
	for _, tl := range timelines {
		switch tl.Name {
		case model.PurposePosts, model.PurposeEveryone:
			return false
		case model.PurposeDirects:
			direct = true
		}
	}
	return direct
}
