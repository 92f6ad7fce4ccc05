package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/response"
)

type bodyRequest struct {
	Body string `json:"body"`
}

// CreatePost 发帖；feeds 为目标用户名列表
// @Summary 发帖
// @Tags 帖子
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "帖子"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req service.CreatePostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.postService.Create(c.Request.Context(), middleware.CurrentFeedID(c), req)
	if err != nil && post == nil {
		fail(c, err)
		return
	}
	// 扇出部分失败时帖子已创建，照常返回
	if err != nil {
		_ = c.Error(err)
	}
	response.Success(c, gin.H{"post": post})
}

// GetPost 读取帖子（含点赞与评论）
// @Summary 读取帖子
// @Tags 帖子
// @Produce json
// @Param postId path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /v1/posts/{postId} [get]
func (h *Handler) GetPost(c *gin.Context) {
	view, err := h.postService.Get(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("postId"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"post": view})
}

// UpdatePost 修改正文
// @Summary 修改帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Param postId path string true "帖子ID"
// @Param request body bodyRequest true "正文"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/posts/{postId} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	var req bodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.postService.Update(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("postId"), req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"post": post})
}

// DestroyPost 删除帖子
// @Summary 删除帖子
// @Tags 帖子
// @Param postId path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/posts/{postId} [delete]
func (h *Handler) DestroyPost(c *gin.Context) {
	if err := h.postService.Destroy(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("postId")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// LikePost 点赞
// @Summary 点赞
// @Tags 帖子
// @Param postId path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /v1/posts/{postId}/like [post]
func (h *Handler) LikePost(c *gin.Context) { h.postAction(c, h.postService.Like) }

// UnlikePost 取消点赞
// @Summary 取消点赞
// @Tags 帖子
// @Param postId path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/posts/{postId}/unlike [post]
func (h *Handler) UnlikePost(c *gin.Context) { h.postAction(c, h.postService.Unlike) }

// HidePost 在自己的首页隐藏
// @Summary 隐藏帖子
// @Tags 帖子
// @Param postId path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /v1/posts/{postId}/hide [post]
func (h *Handler) HidePost(c *gin.Context) { h.postAction(c, h.postService.Hide) }

// UnhidePost 取消隐藏
// @Summary 取消隐藏
// @Tags 帖子
// @Param postId path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /v1/posts/{postId}/unhide [post]
func (h *Handler) UnhidePost(c *gin.Context) { h.postAction(c, h.postService.Unhide) }

func (h *Handler) postAction(c *gin.Context, act func(ctx context.Context, userID, postID string) error) {
	if err := act(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("postId")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
