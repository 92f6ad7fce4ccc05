package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/realtime"
	"github.com/d60-Lab/feedline/internal/service"
)

// Services 处理器依赖的业务服务
type Services struct {
	Auth          service.AuthService
	Feeds         service.FeedService
	Relationships service.RelationshipService
	Groups        service.GroupService
	Posts         service.PostService
	Comments      service.CommentService
	Timelines     service.TimelineService
}

type Handler struct {
	authService     service.AuthService
	feedService     service.FeedService
	relService      service.RelationshipService
	groupService    service.GroupService
	postService     service.PostService
	commentService  service.CommentService
	timelineService service.TimelineService
	hub             *realtime.Hub
	keepAlive       time.Duration
}

func NewHandler(s Services, hub *realtime.Hub) *Handler {
	return &Handler{
		authService:     s.Auth,
		feedService:     s.Feeds,
		relService:      s.Relationships,
		groupService:    s.Groups,
		postService:     s.Posts,
		commentService:  s.Comments,
		timelineService: s.Timelines,
		hub:             hub,
		keepAlive:       25 * time.Second,
	}
}

// pageQuery 读取 offset / limit 查询参数
func pageQuery(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	return offset, limit
}
