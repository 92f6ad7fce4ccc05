package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/response"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 注册
// @Summary 注册用户
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "注册信息"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /v1/users [post]
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	feed, token, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": feed, "authToken": token})
}

// Login 登录，返回 token
// @Summary 登录
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body loginRequest true "用户名与密码"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /v1/session [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	feed, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": feed, "authToken": token})
}

// Me 当前用户
// @Summary 当前用户
// @Tags 用户
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /v1/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	feed, err := h.feedService.GetByID(c.Request.Context(), middleware.CurrentFeedID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": feed})
}

// UpdateMe 修改资料
// @Summary 修改资料
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "资料"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /v1/users/me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	var req service.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	feed, err := h.feedService.UpdateProfile(c.Request.Context(), middleware.CurrentFeedID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": feed})
}

// GetUser 按用户名查 feed
// @Summary 查询用户或群组
// @Tags 用户
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /v1/users/{username} [get]
func (h *Handler) GetUser(c *gin.Context) {
	feed, err := h.feedService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"user": feed})
}
