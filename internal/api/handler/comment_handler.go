package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/pkg/response"
)

type createCommentRequest struct {
	PostID string `json:"postId" binding:"required"`
	Body   string `json:"body"`
}

// CreateComment 评论
// @Summary 发表评论
// @Tags 评论
// @Accept json
// @Produce json
// @Param request body createCommentRequest true "评论"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /v1/comments [post]
func (h *Handler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comment, err := h.commentService.Create(c.Request.Context(), middleware.CurrentFeedID(c), req.PostID, req.Body)
	if err != nil && comment == nil {
		fail(c, err)
		return
	}
	if err != nil {
		_ = c.Error(err)
	}
	response.Success(c, gin.H{"comment": comment})
}

// UpdateComment 修改评论
// @Summary 修改评论
// @Tags 评论
// @Accept json
// @Produce json
// @Param commentId path string true "评论ID"
// @Param request body bodyRequest true "正文"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/comments/{commentId} [put]
func (h *Handler) UpdateComment(c *gin.Context) {
	var req bodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comment, err := h.commentService.Update(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("commentId"), req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"comment": comment})
}

// DestroyComment 删除评论
// @Summary 删除评论
// @Tags 评论
// @Param commentId path string true "评论ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/comments/{commentId} [delete]
func (h *Handler) DestroyComment(c *gin.Context) {
	if err := h.commentService.Destroy(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("commentId")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
