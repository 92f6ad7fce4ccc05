package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

func TestPostToOwnFeed(t *testing.T) {
	f := newFixture(t)
	luna := f.user("luna")

	p := f.post(luna, "hello", "luna")
	assert.Equal(t, "hello", p.Body)
	assert.Equal(t, luna.ID, p.AuthorID)

	posts := f.timelineID(luna.ID, model.PurposePosts)
	river := f.timelineID(luna.ID, model.PurposeRiverOfNews)
	assert.Contains(t, f.members(posts), p.ID)
	assert.Contains(t, f.members(river), p.ID)
	assert.Contains(t, f.members(model.EveryoneTimelineID), p.ID)
	assert.Equal(t, p.Score(), f.score(posts, p.ID))

	events := f.rec.of(model.EventNewPost)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, p.ID, ev.PostID)
	}
	assert.EqualValues(t, 1, f.stats(luna.ID).Posts)
	f.requireConsistent()
}

func TestPostReachesSubscriberRiver(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")

	early := f.post(luna, "before", "luna")
	f.subscribe(mark, "luna")
	late := f.post(luna, "after", "luna")

	river := f.timelineID(mark.ID, model.PurposeRiverOfNews)
	assert.Equal(t, []string{late.ID, early.ID}, f.members(river))

	home, err := f.timelines.Home(f.ctx, mark.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, home.Posts, 2)
	assert.Equal(t, late.ID, home.Posts[0].ID)
	f.requireConsistent()
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t)
	luna := f.user("luna")

	_, err := f.posts.Create(f.ctx, luna.ID, CreatePostInput{Body: "   ", Feeds: []string{"luna"}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.posts.Create(f.ctx, luna.ID, CreatePostInput{Body: strings.Repeat("x", maxBodyLength+1), Feeds: []string{"luna"}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.posts.Create(f.ctx, luna.ID, CreatePostInput{Body: "hi"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.posts.Create(f.ctx, luna.ID, CreatePostInput{Body: "hi", Feeds: []string{"luna", "nobody"}})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Not found", apperr.Message(err))

	// 任一目标不合法时不写入任何东西
	for _, key := range f.mr.Keys() {
		assert.False(t, strings.HasPrefix(key, "post:"), key)
	}
	n, err := f.repos.Timelines.Count(f.ctx, f.timelineID(luna.ID, model.PurposePosts))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDirectPostGating(t *testing.T) {
	f := newFixture(t)
	luna, mark, ann := f.user("luna"), f.user("mark"), f.user("ann")

	_, err := f.posts.Create(f.ctx, luna.ID, CreatePostInput{Body: "psst", Feeds: []string{"mark"}})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	f.subscribe(luna, "mark")
	f.subscribe(mark, "luna")
	f.subscribe(ann, "luna")
	f.subscribe(ann, "mark")

	p := f.post(luna, "psst", "mark")
	tls, err := f.repos.Timelines.TimelineIDsOfPost(f.ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		f.timelineID(luna.ID, model.PurposeDirects),
		f.timelineID(mark.ID, model.PurposeDirects),
	}, tls)

	_, err = f.posts.Get(f.ctx, mark.ID, p.ID)
	assert.NoError(t, err)
	_, err = f.posts.Get(f.ctx, luna.ID, p.ID)
	assert.NoError(t, err)
	_, err = f.posts.Get(f.ctx, ann.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.posts.Get(f.ctx, "", p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// 私信上的评论不外泄到订阅者的 River
	_, err = f.comments.Create(f.ctx, mark.ID, p.ID, "got it")
	require.NoError(t, err)
	assert.NotContains(t, f.members(f.timelineID(ann.ID, model.PurposeRiverOfNews)), p.ID)
	assert.NotContains(t, f.members(model.EveryoneTimelineID), p.ID)

	directs, err := f.timelines.Directs(f.ctx, mark.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, directs.Posts, 1)
	assert.Len(t, directs.Posts[0].Comments, 1)
	f.requireConsistent()
}

func TestBanHidesPosts(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	f.subscribe(mark, "luna")
	p := f.post(luna, "hello", "luna")

	require.NoError(t, f.rel.Ban(f.ctx, luna.ID, "mark"))

	_, err := f.posts.Get(f.ctx, mark.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.posts.Get(f.ctx, "", p.ID)
	assert.NoError(t, err)

	// 屏蔽会取消对方的订阅
	assert.EqualValues(t, 0, f.stats(luna.ID).Subscribers)
	assert.EqualValues(t, 0, f.stats(mark.ID).Subscriptions)
	assert.NotContains(t, f.members(f.timelineID(mark.ID, model.PurposeRiverOfNews)), p.ID)

	page, err := f.timelines.Posts(f.ctx, "luna", mark.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)

	err = f.posts.Like(f.ctx, mark.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.rel.Unban(f.ctx, luna.ID, "mark"))
	_, err = f.posts.Get(f.ctx, mark.ID, p.ID)
	assert.NoError(t, err)
}

func TestReaderBanHidesAuthor(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")

	require.NoError(t, f.rel.Ban(f.ctx, mark.ID, "luna"))
	_, err := f.posts.Get(f.ctx, mark.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	page, err := f.timelines.Everyone(f.ctx, mark.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestPrivateFeedVisibility(t *testing.T) {
	f := newFixture(t)
	luna, mark, ann := f.user("luna", true), f.user("mark"), f.user("ann")
	f.subscribe(mark, "luna")

	p := f.post(luna, "friends only", "luna")
	assert.NotContains(t, f.members(model.EveryoneTimelineID), p.ID)

	_, err := f.posts.Get(f.ctx, mark.ID, p.ID)
	assert.NoError(t, err)
	_, err = f.posts.Get(f.ctx, ann.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.posts.Get(f.ctx, "", p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	page, err := f.timelines.Posts(f.ctx, "luna", ann.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestHideIsReaderOverlay(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	f.subscribe(mark, "luna")
	p := f.post(luna, "hello", "luna")
	river := f.timelineID(mark.ID, model.PurposeRiverOfNews)
	before := f.score(river, p.ID)

	f.rec.reset()
	require.NoError(t, f.posts.Hide(f.ctx, mark.ID, p.ID))

	home, err := f.timelines.Home(f.ctx, mark.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, home.Posts, 1)
	assert.True(t, home.Posts[0].IsHidden)
	assert.Equal(t, before, f.score(river, p.ID))

	theirs, err := f.timelines.Home(f.ctx, luna.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, theirs.Posts, 1)
	assert.False(t, theirs.Posts[0].IsHidden)

	events := f.rec.of(model.EventHidePost)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"user:" + mark.ID}, events[0].Topics())

	require.NoError(t, f.posts.Unhide(f.ctx, mark.ID, p.ID))
	home, err = f.timelines.Home(f.ctx, mark.ID, 0, 10)
	require.NoError(t, err)
	assert.False(t, home.Posts[0].IsHidden)
	assert.Len(t, f.rec.of(model.EventUnhidePost), 1)
	f.requireConsistent()
}

func TestDoubleLike(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")

	require.NoError(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	err := f.posts.Like(f.ctx, mark.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "already liked", apperr.Message(err))
	assert.EqualValues(t, 1, f.stats(luna.ID).Likes)
	assert.Contains(t, f.members(f.timelineID(mark.ID, model.PurposeLikes)), p.ID)

	require.NoError(t, f.posts.Unlike(f.ctx, mark.ID, p.ID))
	err = f.posts.Unlike(f.ctx, mark.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "not liked", apperr.Message(err))
	assert.EqualValues(t, 0, f.stats(luna.ID).Likes)
	assert.NotContains(t, f.members(f.timelineID(mark.ID, model.PurposeLikes)), p.ID)
	f.requireConsistent()
}

func TestLikeStatsSymmetry(t *testing.T) {
	f := newFixture(t)
	luna := f.user("luna")
	p := f.post(luna, "hello", "luna")

	fans := []*model.Feed{f.user("mark"), f.user("ann"), f.user("bob")}
	for _, u := range fans {
		require.NoError(t, f.posts.Like(f.ctx, u.ID, p.ID))
	}
	assert.EqualValues(t, 3, f.stats(luna.ID).Likes)

	view, err := f.posts.Get(f.ctx, "", p.ID)
	require.NoError(t, err)
	assert.Len(t, view.Likes, 3)

	for _, u := range fans {
		require.NoError(t, f.posts.Unlike(f.ctx, u.ID, p.ID))
	}
	assert.EqualValues(t, 0, f.stats(luna.ID).Likes)
}

func TestLikeStatsStayConsistentOnFailure(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")

	// 计算受影响时间线时失败：点赞未写入，可直接重试
	restore := f.breakKey("user:" + luna.ID + ":timelines")
	require.Error(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	restore()
	likes, err := f.repos.Posts.LikeIDs(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)
	assert.EqualValues(t, 0, f.stats(luna.ID).Likes)

	require.NoError(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	assert.EqualValues(t, 1, f.stats(luna.ID).Likes)
	require.NoError(t, f.posts.Unlike(f.ctx, mark.ID, p.ID))
	assert.EqualValues(t, 0, f.stats(luna.ID).Likes)

	// 点赞写入后扇出失败：计数已经跟上，撤销后回到 0
	restore = f.breakKey("timeline:" + f.timelineID(mark.ID, model.PurposeLikes) + ":posts")
	err = f.posts.Like(f.ctx, mark.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInfrastructure)
	restore()
	assert.EqualValues(t, 1, f.stats(luna.ID).Likes)
	assert.ErrorIs(t, f.posts.Like(f.ctx, mark.ID, p.ID), apperr.ErrForbidden)

	require.NoError(t, f.posts.Unlike(f.ctx, mark.ID, p.ID))
	assert.EqualValues(t, 0, f.stats(luna.ID).Likes)
	f.requireConsistent()
}

func TestLikeBumpsPost(t *testing.T) {
	f := newFixture(t)
	luna, mark, ann := f.user("luna"), f.user("mark"), f.user("ann")
	f.subscribe(ann, "mark")
	p := f.post(luna, "hello", "luna")
	river := f.timelineID(luna.ID, model.PurposeRiverOfNews)
	before := f.score(river, p.ID)

	require.NoError(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	assert.Greater(t, f.score(river, p.ID), before)
	// 点赞通过 mark 的 Likes 时间线传给订阅了 mark 的人
	assert.Contains(t, f.members(f.timelineID(ann.ID, model.PurposeRiverOfNews)), p.ID)
	f.requireConsistent()
}

func TestNonBumpablePostKeepsScore(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")
	f.mr.HSet("post:"+p.ID, "bumpable", "0")
	river := f.timelineID(luna.ID, model.PurposeRiverOfNews)
	before := f.score(river, p.ID)

	require.NoError(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	assert.Equal(t, before, f.score(river, p.ID))
	assert.Equal(t, p.Score(), f.score(f.timelineID(mark.ID, model.PurposeLikes), p.ID))

	stored, err := f.repos.Posts.FindByID(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.UpdatedAt.UnixMilli(), stored.UpdatedAt.UnixMilli())
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")

	_, err := f.posts.Update(f.ctx, mark.ID, p.ID, "hijack")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f.rec.reset()
	updated, err := f.posts.Update(f.ctx, luna.ID, p.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, "hello again", updated.Body)
	// 每个所在时间线一条，外加帖子本身一条
	assert.Len(t, f.rec.of(model.EventUpdatePost), 4)
}

func TestDestroyPost(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	f.subscribe(mark, "luna")
	p := f.post(luna, "hello", "luna")
	require.NoError(t, f.posts.Like(f.ctx, mark.ID, p.ID))
	_, err := f.comments.Create(f.ctx, mark.ID, p.ID, "nice")
	require.NoError(t, err)
	require.NoError(t, f.posts.Hide(f.ctx, mark.ID, p.ID))

	assert.ErrorIs(t, f.posts.Destroy(f.ctx, mark.ID, p.ID), apperr.ErrForbidden)

	f.rec.reset()
	require.NoError(t, f.posts.Destroy(f.ctx, luna.ID, p.ID))

	tls, err := f.repos.Timelines.TimelineIDsOfPost(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tls)
	for _, purpose := range []model.Purpose{model.PurposeRiverOfNews, model.PurposeLikes, model.PurposeComments, model.PurposeHides} {
		assert.NotContains(t, f.members(f.timelineID(mark.ID, purpose)), p.ID, purpose)
	}
	assert.NotContains(t, f.members(model.EveryoneTimelineID), p.ID)

	_, err = f.posts.Get(f.ctx, luna.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotEmpty(t, f.rec.of(model.EventDestroyPost))
	assert.NotEmpty(t, f.rec.of(model.EventDestroyComment))

	st := f.stats(luna.ID)
	assert.EqualValues(t, 0, st.Posts)
	assert.EqualValues(t, 0, st.Likes)
	assert.EqualValues(t, 0, f.stats(mark.ID).Discussions)
	f.requireConsistent()
}
