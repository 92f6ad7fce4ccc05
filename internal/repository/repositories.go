package repository

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repositories 汇总所有仓储，方便服务层装配
type Repositories struct {
	Feeds         FeedRepository
	Timelines     TimelineRepository
	Subscriptions SubscriptionRepository
	Bans          BanRepository
	Posts         PostRepository
	Comments      CommentRepository
	Stats         StatsRepository
	Accounts      AccountRepository
}

// NewRepositories db 为 nil 时不装配账号仓储
func NewRepositories(rdb redis.UniversalClient, db *gorm.DB) *Repositories {
	r := &Repositories{
		Feeds:         NewFeedRepository(rdb),
		Timelines:     NewTimelineRepository(rdb),
		Subscriptions: NewSubscriptionRepository(rdb),
		Bans:          NewBanRepository(rdb),
		Posts:         NewPostRepository(rdb),
		Comments:      NewCommentRepository(rdb),
		Stats:         NewStatsRepository(rdb),
	}
	if db != nil {
		r.Accounts = NewAccountRepository(db)
	}
	return r
}
