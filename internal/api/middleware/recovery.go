package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/pkg/logger"
	"github.com/d60-Lab/feedline/pkg/response"
)

// Recovery 捕获 panic 返回 500，并把 panic 与 5xx 的错误上报 Sentry（未配置 DSN 时 Sentry 调用为空操作）
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		// feed id 在后续的 Auth 里才写入
		setUser := func() {
			if id := CurrentFeedID(c); id != "" {
				hub.Scope().SetUser(sentry.User{ID: id})
			}
		}

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				setUser()
				hub.RecoverWithContext(c.Request.Context(), rec)
				logger.Error("panic recovered", zap.Any("panic", rec), zap.Stack("stack"))
				response.InternalError(c, fmt.Errorf("panic: %v", rec))
				c.Abort()
			}
		}()

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			setUser()
			for _, e := range c.Errors {
				hub.CaptureException(e.Err)
			}
		}
	}
}
