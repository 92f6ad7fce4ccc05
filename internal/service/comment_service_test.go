package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

func TestCommentReachesFriendOfFriend(t *testing.T) {
	f := newFixture(t)
	luna, mark, ann := f.user("luna"), f.user("mark"), f.user("ann")
	f.subscribe(mark, "luna")
	f.subscribe(ann, "mark")
	p := f.post(luna, "hello", "luna")

	annRiver := f.timelineID(ann.ID, model.PurposeRiverOfNews)
	assert.NotContains(t, f.members(annRiver), p.ID)

	c, err := f.comments.Create(f.ctx, mark.ID, p.ID, "nice")
	require.NoError(t, err)
	assert.Equal(t, p.ID, c.PostID)

	assert.Contains(t, f.members(annRiver), p.ID)
	assert.Contains(t, f.members(f.timelineID(mark.ID, model.PurposeComments)), p.ID)
	assert.NotEmpty(t, f.rec.of(model.EventNewComment))

	view, err := f.posts.Get(f.ctx, ann.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Comments, 1)
	assert.Equal(t, "nice", view.Comments[0].Body)
	f.requireConsistent()
}

func TestCommentValidation(t *testing.T) {
	f := newFixture(t)
	luna := f.user("luna")
	p := f.post(luna, "hello", "luna")

	_, err := f.comments.Create(f.ctx, luna.ID, p.ID, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.comments.Create(f.ctx, luna.ID, "missing", "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDiscussionsCounting(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")
	comments := f.timelineID(mark.ID, model.PurposeComments)

	first, err := f.comments.Create(f.ctx, mark.ID, p.ID, "one")
	require.NoError(t, err)
	second, err := f.comments.Create(f.ctx, mark.ID, p.ID, "two")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.stats(mark.ID).Discussions)

	assert.ErrorIs(t, f.comments.Destroy(f.ctx, luna.ID, first.ID), apperr.ErrForbidden)

	require.NoError(t, f.comments.Destroy(f.ctx, mark.ID, first.ID))
	assert.EqualValues(t, 1, f.stats(mark.ID).Discussions)
	assert.Contains(t, f.members(comments), p.ID)

	require.NoError(t, f.comments.Destroy(f.ctx, mark.ID, second.ID))
	assert.EqualValues(t, 0, f.stats(mark.ID).Discussions)
	assert.NotContains(t, f.members(comments), p.ID)
	f.requireConsistent()
}

func TestUpdateComment(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")
	c, err := f.comments.Create(f.ctx, mark.ID, p.ID, "typo")
	require.NoError(t, err)

	_, err = f.comments.Update(f.ctx, luna.ID, c.ID, "fixed")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := f.comments.Update(f.ctx, mark.ID, c.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Body)
	assert.NotEmpty(t, f.rec.of(model.EventUpdateComment))
}

func TestDiscussionsStayConsistentOnFailure(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	p := f.post(luna, "hello", "luna")

	restore := f.breakKey("user:" + luna.ID + ":timelines")
	_, err := f.comments.Create(f.ctx, mark.ID, p.ID, "hi")
	require.Error(t, err)
	restore()
	ids, err := f.repos.Posts.CommentIDs(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.EqualValues(t, 0, f.stats(mark.ID).Discussions)

	// 评论落地后扇出失败：计数保留，删除评论后回到 0
	restore = f.breakKey("timeline:" + f.timelineID(mark.ID, model.PurposeComments) + ":posts")
	c, err := f.comments.Create(f.ctx, mark.ID, p.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrInfrastructure)
	require.NotNil(t, c)
	restore()
	assert.EqualValues(t, 1, f.stats(mark.ID).Discussions)

	require.NoError(t, f.comments.Destroy(f.ctx, mark.ID, c.ID))
	assert.EqualValues(t, 0, f.stats(mark.ID).Discussions)
	f.requireConsistent()
}
