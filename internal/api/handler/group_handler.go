package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/response"
)

// CreateGroup 建群，创建者成为管理员
// @Summary 创建群组
// @Tags 群组
// @Accept json
// @Produce json
// @Param request body service.CreateFeedInput true "群组信息"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /v1/groups [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	var req service.CreateFeedInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	group, err := h.groupService.CreateGroup(c.Request.Context(), middleware.CurrentFeedID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"group": group})
}

// GroupAdmins 管理员列表
// @Summary 群组管理员
// @Tags 群组
// @Param groupName path string true "群组名"
// @Success 200 {object} response.Response
// @Router /v1/groups/{groupName}/admins [get]
func (h *Handler) GroupAdmins(c *gin.Context) {
	admins, err := h.groupService.Administrators(c.Request.Context(), c.Param("groupName"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"admins": admins})
}

// AddGroupAdmin 添加管理员
// @Summary 添加管理员
// @Tags 群组
// @Param groupName path string true "群组名"
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/groups/{groupName}/admins/{username} [post]
func (h *Handler) AddGroupAdmin(c *gin.Context) {
	err := h.groupService.AddAdministrator(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("groupName"), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveGroupAdmin 移除管理员；不能移除最后一个
// @Summary 移除管理员
// @Tags 群组
// @Param groupName path string true "群组名"
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /v1/groups/{groupName}/admins/{username} [delete]
func (h *Handler) RemoveGroupAdmin(c *gin.Context) {
	err := h.groupService.RemoveAdministrator(c.Request.Context(), middleware.CurrentFeedID(c), c.Param("groupName"), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
