package repository

import (
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// mkKey 用冒号拼接 key，如 mkKey("timeline", id, "posts") -> timeline:{id}:posts
func mkKey(parts ...string) string { return strings.Join(parts, ":") }

func feedKey(id string) string              { return mkKey("user", id) }
func feedTimelinesKey(id string) string     { return mkKey("user", id, "timelines") }
func feedSubscriptionsKey(id string) string { return mkKey("user", id, "subscriptions") }
func feedBansKey(id string) string          { return mkKey("user", id, "bans") }
func feedAdminsKey(id string) string        { return mkKey("user", id, "administrators") }
func usernameKey(handle string) string      { return mkKey("username", strings.ToLower(handle), "uid") }

func timelineKey(id string) string            { return mkKey("timeline", id) }
func timelinePostsKey(id string) string       { return mkKey("timeline", id, "posts") }
func timelineSubscribersKey(id string) string { return mkKey("timeline", id, "subscribers") }

func postKey(id string) string            { return mkKey("post", id) }
func postTimelinesKey(id string) string   { return mkKey("post", id, "timelines") }
func postLikesKey(id string) string       { return mkKey("post", id, "likes") }
func postCommentsKey(id string) string    { return mkKey("post", id, "comments") }
func postAttachmentsKey(id string) string { return mkKey("post", id, "attachments") }

func commentKey(id string) string { return mkKey("comment", id) }

func statsKey(id string) string            { return mkKey("stats", id) }
func statsBoardKey(category string) string { return mkKey("stats", category) }

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseFlag(s string, def bool) bool {
	switch s {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	return def
}

func toMembers(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func zMember(score int64, member string) redis.Z {
	return redis.Z{Score: float64(score), Member: member}
}

// DiscussionsScratchKey MyDiscussions 读时合并用的临时 key
func DiscussionsScratchKey(feedID, nonce string) string { return mkKey("tmp", "discussions", feedID, nonce) }
