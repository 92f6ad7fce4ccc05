package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/response"
)

type ownTimeline func(ctx context.Context, readerID string, offset, limit int) (*service.TimelinePage, error)

type namedTimeline func(ctx context.Context, username, readerID string, offset, limit int) (*service.TimelinePage, error)

func (h *Handler) renderOwn(c *gin.Context, read ownTimeline) {
	offset, limit := pageQuery(c)
	page, err := read(c.Request.Context(), middleware.CurrentFeedID(c), offset, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}

func (h *Handler) renderNamed(c *gin.Context, read namedTimeline) {
	offset, limit := pageQuery(c)
	page, err := read(c.Request.Context(), c.Param("username"), middleware.CurrentFeedID(c), offset, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}

// Home 首页（RiverOfNews）
// @Summary 首页时间线
// @Tags 时间线
// @Produce json
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "数量" default(25)
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Failure 401 {object} response.Response
// @Router /v1/timelines/home [get]
func (h *Handler) Home(c *gin.Context) { h.renderOwn(c, h.timelineService.Home) }

// MyDiscussions 我评论过或赞过的帖子
// @Summary 我的讨论
// @Tags 时间线
// @Produce json
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "数量" default(25)
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Router /v1/timelines/filter/discussions [get]
func (h *Handler) MyDiscussions(c *gin.Context) { h.renderOwn(c, h.timelineService.MyDiscussions) }

// Directs 私信
// @Summary 私信时间线
// @Tags 时间线
// @Produce json
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "数量" default(25)
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Router /v1/timelines/filter/directs [get]
func (h *Handler) Directs(c *gin.Context) { h.renderOwn(c, h.timelineService.Directs) }

// Everyone 全站公开帖子
// @Summary 全站时间线
// @Tags 时间线
// @Produce json
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "数量" default(25)
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Router /v1/timelines/everyone [get]
func (h *Handler) Everyone(c *gin.Context) { h.renderOwn(c, h.timelineService.Everyone) }

// UserPosts 某个 feed 的帖子
// @Summary 用户帖子
// @Tags 时间线
// @Produce json
// @Param username path string true "用户名"
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "数量" default(25)
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Failure 404 {object} response.Response
// @Router /v1/timelines/{username} [get]
func (h *Handler) UserPosts(c *gin.Context) { h.renderNamed(c, h.timelineService.Posts) }

// UserLikes 某个用户赞过的帖子
// @Summary 用户点赞
// @Tags 时间线
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Router /v1/timelines/{username}/likes [get]
func (h *Handler) UserLikes(c *gin.Context) { h.renderNamed(c, h.timelineService.Likes) }

// UserComments 某个用户评论过的帖子
// @Summary 用户评论
// @Tags 时间线
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response{data=service.TimelinePage}
// @Router /v1/timelines/{username}/comments [get]
func (h *Handler) UserComments(c *gin.Context) { h.renderNamed(c, h.timelineService.Comments) }
