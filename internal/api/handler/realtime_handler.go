package handler

import (
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/pkg/response"
)

// Realtime SSE 推送；timelines / posts 为逗号分隔的 id，登录用户自动加入自己的房间
// @Summary 实时事件（SSE）
// @Tags 实时
// @Produce text/event-stream
// @Param timelines query string false "时间线ID，逗号分隔"
// @Param posts query string false "帖子ID，逗号分隔"
// @Success 200 {string} string "event stream"
// @Failure 403 {object} response.Response
// @Router /v1/realtime [get]
func (h *Handler) Realtime(c *gin.Context) {
	ctx := c.Request.Context()
	readerID := middleware.CurrentFeedID(c)

	var topics []string
	for _, id := range splitIDs(c.Query("timelines")) {
		if err := h.timelineService.Authorize(ctx, readerID, id); err != nil {
			fail(c, err)
			return
		}
		topics = append(topics, "timeline:"+id)
	}
	for _, id := range splitIDs(c.Query("posts")) {
		if _, err := h.postService.Get(ctx, readerID, id); err != nil {
			fail(c, err)
			return
		}
		topics = append(topics, "post:"+id)
	}
	if readerID != "" {
		topics = append(topics, "user:"+readerID)
	}
	if len(topics) == 0 {
		response.Unprocessable(c, "Nothing to subscribe to")
		return
	}

	client := h.hub.Join(topics)
	defer h.hub.Leave(client)

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("subscribed", gin.H{"topics": topics})
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-client.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
