package model

// StatsCategory 计数项，同时是排行榜 zset 的名字（stats:{category}）
type StatsCategory string

const (
	StatsPosts         StatsCategory = "posts"
	StatsLikes         StatsCategory = "likes"
	StatsDiscussions   StatsCategory = "discussions"
	StatsSubscribers   StatsCategory = "subscribers"
	StatsSubscriptions StatsCategory = "subscriptions"
)

var StatsCategories = []StatsCategory{StatsPosts, StatsLikes, StatsDiscussions, StatsSubscribers, StatsSubscriptions}

func (c StatsCategory) Valid() bool {
	for _, v := range StatsCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Stats 每个 feed 的计数
type Stats struct {
	FeedID        string `json:"userId"`
	Posts         int64  `json:"posts"`
	Likes         int64  `json:"likes"`
	Discussions   int64  `json:"discussions"`
	Subscribers   int64  `json:"subscribers"`
	Subscriptions int64  `json:"subscriptions"`
}

// RankedFeed 排行榜条目
type RankedFeed struct {
	FeedID string `json:"userId"`
	Value  int64  `json:"value"`
}
