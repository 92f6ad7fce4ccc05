package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

func TestMyDiscussions(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	first := f.post(luna, "first", "luna")
	second := f.post(luna, "second", "luna")
	f.post(luna, "third", "luna")

	_, err := f.comments.Create(f.ctx, mark.ID, second.ID, "hm")
	require.NoError(t, err)
	require.NoError(t, f.posts.Like(f.ctx, mark.ID, first.ID))

	page, err := f.timelines.MyDiscussions(f.ctx, mark.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, first.ID, page.Posts[0].ID)
	assert.Equal(t, second.ID, page.Posts[1].ID)

	// 临时合并 key 带过期时间
	for _, key := range f.mr.Keys() {
		if strings.HasPrefix(key, "tmp:") {
			assert.Positive(t, f.mr.TTL(key))
		}
	}
}

func TestTimelinePaging(t *testing.T) {
	f := newFixture(t)
	luna := f.user("luna")
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.post(luna, "post", "luna").ID)
	}

	page, err := f.timelines.Posts(f.ctx, "luna", "", 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, ids[3], page.Posts[0].ID)
	assert.Equal(t, ids[2], page.Posts[1].ID)

	page, err = f.timelines.Everyone(f.ctx, "", 0, 1000)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 5)
	assert.Equal(t, 100, page.Limit)
}

func TestPersonalTimelinesNeedReader(t *testing.T) {
	f := newFixture(t)
	_, err := f.timelines.Home(f.ctx, "", 0, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.timelines.Directs(f.ctx, "", 0, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.timelines.MyDiscussions(f.ctx, "", 0, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.timelines.Posts(f.ctx, "nobody", "", 0, 10)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLikesAndCommentsTimelines(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")
	require.NoError(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	_, err := f.comments.Create(f.ctx, mark.ID, p.ID, "hi")
	require.NoError(t, err)

	likes, err := f.timelines.Likes(f.ctx, "mark", luna.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, likes.Posts, 1)
	assert.Equal(t, []string{mark.ID}, likes.Posts[0].Likes)

	comments, err := f.timelines.Comments(f.ctx, "mark", "", 0, 10)
	require.NoError(t, err)
	require.Len(t, comments.Posts, 1)
	assert.Len(t, comments.Posts[0].Comments, 1)
}

func TestAuthorizeTimeline(t *testing.T) {
	f := newFixture(t)
	luna, mark, ann := f.user("luna", true), f.user("mark"), f.user("ann")
	f.subscribe(mark, "luna")

	posts := f.timelineID(luna.ID, model.PurposePosts)
	river := f.timelineID(luna.ID, model.PurposeRiverOfNews)

	assert.NoError(t, f.timelines.Authorize(f.ctx, "", model.EveryoneTimelineID))
	assert.NoError(t, f.timelines.Authorize(f.ctx, luna.ID, river))
	assert.NoError(t, f.timelines.Authorize(f.ctx, mark.ID, posts))
	assert.ErrorIs(t, f.timelines.Authorize(f.ctx, mark.ID, river), apperr.ErrForbidden)
	assert.ErrorIs(t, f.timelines.Authorize(f.ctx, ann.ID, posts), apperr.ErrForbidden)
	assert.ErrorIs(t, f.timelines.Authorize(f.ctx, "", posts), apperr.ErrForbidden)
	assert.ErrorIs(t, f.timelines.Authorize(f.ctx, ann.ID, "missing"), apperr.ErrNotFound)

	assert.NoError(t, f.timelines.Authorize(f.ctx, "", f.timelineID(ann.ID, model.PurposeLikes)))
	require.NoError(t, f.rel.Ban(f.ctx, ann.ID, "mark"))
	assert.ErrorIs(t, f.timelines.Authorize(f.ctx, mark.ID, f.timelineID(ann.ID, model.PurposeLikes)), apperr.ErrForbidden)
}
