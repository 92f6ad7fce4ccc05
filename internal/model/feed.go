package model

import "time"

// FeedKind 可发帖身份的类型：个人用户或群组
type FeedKind string

const (
	FeedKindUser  FeedKind = "user"
	FeedKindGroup FeedKind = "group"
)

// Feed 用户或群组（存于 user:{id} 哈希）
type Feed struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	ScreenName string    `json:"screenName"`
	Kind       FeedKind  `json:"type"`
	IsPrivate  bool      `json:"isPrivate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (f *Feed) IsUser() bool  { return f.Kind == FeedKindUser }
func (f *Feed) IsGroup() bool { return f.Kind == FeedKindGroup }
