package model

import "time"

// Comment 评论
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
