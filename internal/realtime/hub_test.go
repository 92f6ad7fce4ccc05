package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/service"
)

func TestBroadcastRoutesByTopic(t *testing.T) {
	h := NewHub(nil, 4)
	tl := h.Join([]string{"timeline:a"})
	post := h.Join([]string{"post:p"})
	user := h.Join([]string{"user:u"})
	defer h.Leave(tl)
	defer h.Leave(post)
	defer h.Leave(user)

	assert.Equal(t, 1, h.Broadcast(model.Event{Kind: model.EventNewPost, TimelineID: "a", PostID: "p"}))
	assert.Equal(t, 1, h.Broadcast(model.Event{Kind: model.EventUpdatePost, PostID: "p"}))
	assert.Equal(t, 1, h.Broadcast(model.Event{Kind: model.EventHidePost, PostID: "p", UserID: "u"}))
	assert.Equal(t, 0, h.Broadcast(model.Event{Kind: model.EventNewPost, TimelineID: "b"}))

	assert.Equal(t, model.EventNewPost, (<-tl.Events()).Kind)
	assert.Equal(t, model.EventUpdatePost, (<-post.Events()).Kind)
	assert.Equal(t, model.EventHidePost, (<-user.Events()).Kind)
}

func TestLeaveClosesAndIsIdempotent(t *testing.T) {
	h := NewHub(nil, 1)
	c := h.Join([]string{"timeline:a"})
	h.Leave(c)
	h.Leave(c)

	_, open := <-c.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.Broadcast(model.Event{Kind: model.EventNewPost, TimelineID: "a"}))
	_, ok := h.rooms.Load("timeline:a")
	assert.False(t, ok)
}

func TestSlowClientDropsEvents(t *testing.T) {
	h := NewHub(nil, 1)
	c := h.Join([]string{"timeline:a"})
	defer h.Leave(c)

	ev := model.Event{Kind: model.EventNewLike, TimelineID: "a"}
	assert.Equal(t, 1, h.Broadcast(ev))
	assert.Equal(t, 0, h.Broadcast(ev))
}

func TestRunForwardsPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := NewHub(rdb, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	select {
	case <-h.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not subscribe")
	}

	c := h.Join([]string{"timeline:tl"})
	defer h.Leave(c)
	pub := service.NewRedisPublisher(rdb)
	require.NoError(t, pub.Notify(ctx, model.Event{Kind: model.EventNewComment, TimelineID: "tl", PostID: "p"}))

	select {
	case ev := <-c.Events():
		assert.Equal(t, model.EventNewComment, ev.Kind)
		assert.Equal(t, "p", ev.PostID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not forwarded")
	}

	// 其他事件类型的频道同样已订阅
	u := h.Join([]string{"user:u1"})
	defer h.Leave(u)
	require.NoError(t, pub.Notify(ctx, model.Event{Kind: model.EventHidePost, UserID: "u1", PostID: "p"}))
	select {
	case ev := <-u.Events():
		assert.Equal(t, model.EventHidePost, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("hidePost not forwarded")
	}

	cancel()
	require.NoError(t, <-done)
}
