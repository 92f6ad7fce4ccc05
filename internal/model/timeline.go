package model

// Purpose 时间线用途；(owner, purpose) 唯一
type Purpose string

const (
	PurposePosts         Purpose = "Posts"
	PurposeRiverOfNews   Purpose = "RiverOfNews"
	PurposeComments      Purpose = "Comments"
	PurposeLikes         Purpose = "Likes"
	PurposeDirects       Purpose = "Directs"
	PurposeHides         Purpose = "Hides"
	PurposeMyDiscussions Purpose = "MyDiscussions"
	PurposeEveryone      Purpose = "Everyone"
)

// EveryoneTimelineID 全站单例时间线
const EveryoneTimelineID = "everyone"

// PublicPurposes 订阅一个 feed 时同时订阅的时间线
var PublicPurposes = []Purpose{PurposeComments, PurposeLikes, PurposePosts}

func (p Purpose) Valid() bool {
	switch p {
	case PurposePosts, PurposeRiverOfNews, PurposeComments, PurposeLikes,
		PurposeDirects, PurposeHides, PurposeMyDiscussions, PurposeEveryone:
		return true
	}
	return false
}

// Timeline 某个 feed 的一条有序帖子集合（成员存于 timeline:{id}:posts，score 为最后活跃时间毫秒）
type Timeline struct {
	ID      string  `json:"id"`
	Name    Purpose `json:"name"`
	OwnerID string  `json:"userId"`
}

// TimelineEntry 时间线里的一项
type TimelineEntry struct {
	PostID string `json:"postId"`
	Score  int64  `json:"score"`
}
