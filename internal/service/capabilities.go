package service

import (
	"context"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

// capability 按 feed 类型分派的行为差异
type capability struct {
	// canPost 校验 author 能否向 target 发帖（target != author 时才会调用）
	canPost func(ctx context.Context, s *feedService, target, author *model.Feed) error
	// directFromOthers 他人发来的帖子进双方 Directs，而不是 target 的 Posts
	directFromOthers bool
	// administered 有管理员名单
	administered bool
	// timelines 创建 feed 时预建的时间线
	timelines []model.Purpose
}

var capabilities = map[model.FeedKind]capability{
	model.FeedKindUser: {
		canPost:          userCanPost,
		directFromOthers: true,
		timelines: []model.Purpose{
			model.PurposeRiverOfNews, model.PurposeHides, model.PurposeComments,
			model.PurposeLikes, model.PurposePosts, model.PurposeDirects,
		},
	},
	model.FeedKindGroup: {
		canPost:      groupCanPost,
		administered: true,
		timelines:    []model.Purpose{model.PurposePosts},
	},
}

func capabilityOf(kind model.FeedKind) capability {
	if c, ok := capabilities[kind]; ok {
		return c
	}
	return capabilities[model.FeedKindUser]
}

// userCanPost 给别人发私信要求互相订阅
func userCanPost(ctx context.Context, s *feedService, target, author *model.Feed) error {
	ok, err := s.mutual(ctx, target.ID, author.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("You can't send private messages to friends that are not mutual")
	}
	return nil
}

// groupCanPost 管理员或已订阅的成员可以发帖
func groupCanPost(ctx context.Context, s *feedService, group, author *model.Feed) error {
	admins, err := s.repos.Feeds.AdministratorIDs(ctx, group.ID)
	if err != nil {
		return err
	}
	for _, id := range admins {
		if id == author.ID {
			return nil
		}
	}
	postsID, err := s.repos.Feeds.TimelineID(ctx, group.ID, model.PurposePosts)
	if err != nil {
		return err
	}
	member, err := s.repos.Subscriptions.Exists(ctx, author.ID, postsID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Forbidden("You can't post to a group you are not a member of")
	}
	return nil
}
