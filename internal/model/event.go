package model

import "time"

// EventKind 推送事件类型
type EventKind string

const (
	EventNewPost        EventKind = "newPost"
	EventUpdatePost     EventKind = "updatePost"
	EventDestroyPost    EventKind = "destroyPost"
	EventNewComment     EventKind = "newComment"
	EventUpdateComment  EventKind = "updateComment"
	EventDestroyComment EventKind = "destroyComment"
	EventNewLike        EventKind = "newLike"
	EventRemoveLike     EventKind = "removeLike"
	EventHidePost       EventKind = "hidePost"
	EventUnhidePost     EventKind = "unhidePost"
)

var EventKinds = []EventKind{
	EventNewPost, EventUpdatePost, EventDestroyPost,
	EventNewComment, EventUpdateComment, EventDestroyComment,
	EventNewLike, EventRemoveLike, EventHidePost, EventUnhidePost,
}

// Event 一条推送：作用域是一个时间线、一个帖子或一个用户（私有事件）
type Event struct {
	Kind       EventKind   `json:"kind"`
	TimelineID string      `json:"timelineId,omitempty"`
	PostID     string      `json:"postId,omitempty"`
	UserID     string      `json:"userId,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Topics 事件应投递到的房间名
func (e Event) Topics() []string {
	switch {
	case e.TimelineID != "":
		return []string{"timeline:" + e.TimelineID}
	case e.UserID != "" && (e.Kind == EventHidePost || e.Kind == EventUnhidePost):
		return []string{"user:" + e.UserID}
	case e.PostID != "":
		return []string{"post:" + e.PostID}
	}
	return nil
}

// LikePayload newLike / removeLike 的负载
type LikePayload struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// CommentRef destroyComment 的负载
type CommentRef struct {
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
}

// PostRef destroyPost / hidePost / unhidePost 的负载
type PostRef struct {
	PostID string `json:"postId"`
}
