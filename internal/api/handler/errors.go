package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/logger"
	"github.com/d60-Lab/feedline/pkg/response"
)

// fail 按错误分类写响应；基础设施错误只记日志，不向客户端暴露细节
func fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrInvalidToken) {
		response.Unauthorized(c, err.Error())
		return
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		response.NotFound(c, apperr.Message(err))
	case apperr.KindForbidden:
		response.Forbidden(c, apperr.Message(err))
	case apperr.KindValidation:
		response.Unprocessable(c, apperr.Message(err))
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.InternalError(c, err)
	}
}
