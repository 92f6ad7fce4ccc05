package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func write(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: msg, Data: data})
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, "success", data)
}

// BadRequest 400，请求体无法解析
func BadRequest(c *gin.Context, msg string) {
	write(c, http.StatusBadRequest, msg, nil)
}

// Unauthorized 401，匿名访问需要登录的接口
func Unauthorized(c *gin.Context, msg string) {
	write(c, http.StatusUnauthorized, msg, nil)
}

// Forbidden 403
func Forbidden(c *gin.Context, msg string) {
	write(c, http.StatusForbidden, msg, nil)
}

// NotFound 404
func NotFound(c *gin.Context, msg string) {
	write(c, http.StatusNotFound, msg, nil)
}

// Unprocessable 422，输入校验失败
func Unprocessable(c *gin.Context, msg string) {
	write(c, http.StatusUnprocessableEntity, msg, nil)
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context) {
	write(c, http.StatusTooManyRequests, "too many requests", nil)
}

// InternalError 500，不向客户端暴露内部错误细节
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	write(c, http.StatusInternalServerError, "internal server error", nil)
}
