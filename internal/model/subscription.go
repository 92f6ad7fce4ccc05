package model

import "time"

// Subscription 订阅边（subscriber 订阅了某个 Posts 时间线）
// 正向存于 user:{subscriber}:subscriptions，冗余反向存于 timeline:{timeline}:subscribers
type Subscription struct {
	SubscriberID string    `json:"subscriberId"`
	TimelineID   string    `json:"timelineId"`
	CreatedAt    time.Time `json:"createdAt"`
}
