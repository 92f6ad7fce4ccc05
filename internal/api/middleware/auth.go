package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/pkg/response"
)

const feedIDKey = "feedID"

// TokenParser 把 token 解析成 feed id
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// Auth 解析 Authorization: Bearer 或 X-Authentication-Token；没有 token 时按匿名继续，token 无效返回 401
func Auth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenOf(c)
		if token == "" {
			c.Next()
			return
		}
		feedID, err := p.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(feedIDKey, feedID)
		c.Next()
	}
}

// RequireAuth 匿名访问返回 401
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentFeedID(c) == "" {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentFeedID 当前请求的 feed id，匿名为空串
func CurrentFeedID(c *gin.Context) string {
	return c.GetString(feedIDKey)
}

func tokenOf(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := c.GetHeader("X-Authentication-Token"); token != "" {
		return token
	}
	// EventSource 不能带自定义头
	return c.Query("authToken")
}
