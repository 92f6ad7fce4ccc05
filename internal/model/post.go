package model

import "time"

// Post 帖子（post:{id} 哈希；反向成员集合 post:{id}:timelines）
type Post struct {
	ID            string    `json:"id"`
	Body          string    `json:"body"`
	AuthorID      string    `json:"createdBy"`
	Bumpable      bool      `json:"-"`
	AttachmentIDs []string  `json:"attachments"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Score 帖子当前的 bump 分值（毫秒）
func (p *Post) Score() int64 { return p.UpdatedAt.UnixMilli() }
