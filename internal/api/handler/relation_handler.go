package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/pkg/response"
)

// Subscribe 订阅
// @Summary 订阅用户或群组
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /v1/users/{username}/subscribe [post]
func (h *Handler) Subscribe(c *gin.Context) {
	if err := h.relService.Subscribe(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Unsubscribe 取消订阅
// @Summary 取消订阅
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/users/{username}/unsubscribe [post]
func (h *Handler) Unsubscribe(c *gin.Context) {
	if err := h.relService.Unsubscribe(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Ban 屏蔽（同时取消对方对自己的订阅）
// @Summary 屏蔽用户
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Router /v1/users/{username}/ban [post]
func (h *Handler) Ban(c *gin.Context) {
	if err := h.relService.Ban(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Unban 取消屏蔽
// @Summary 取消屏蔽
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Router /v1/users/{username}/unban [post]
func (h *Handler) Unban(c *gin.Context) {
	if err := h.relService.Unban(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ListSubscriptions 查询某用户订阅的时间线
// @Summary 查询订阅列表
// @Tags 关系链
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /v1/users/{username}/subscriptions [get]
func (h *Handler) ListSubscriptions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	list, err := h.relService.ListSubscriptions(c.Request.Context(), c.Param("username"), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "subscriptions": list.Subscriptions, "subscribers": list.Feeds})
}

// ListSubscribers 查询某用户的订阅者
// @Summary 查询订阅者
// @Tags 关系链
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /v1/users/{username}/subscribers [get]
func (h *Handler) ListSubscribers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	list, err := h.relService.ListSubscribers(c.Request.Context(), c.Param("username"), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "subscribers": list})
}

// Stats 计数
// @Summary 用户计数
// @Tags 关系链
// @Param username path string true "用户名"
// @Success 200 {object} response.Response{data=model.Stats}
// @Router /v1/users/{username}/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.feedService.GetStats(c.Request.Context(), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stats)
}

// TopFeeds 排行榜
// @Summary 排行榜
// @Tags 关系链
// @Param category path string true "posts / likes / discussions / subscribers / subscriptions"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /v1/stats/{category} [get]
func (h *Handler) TopFeeds(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	top, err := h.feedService.TopFeeds(c.Request.Context(), model.StatsCategory(c.Param("category")), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": top})
}
