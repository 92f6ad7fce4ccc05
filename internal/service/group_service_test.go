package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

func TestGroupPosting(t *testing.T) {
	f := newFixture(t)
	luna, mark, ann := f.user("luna"), f.user("mark"), f.user("ann")

	cats, err := f.groups.CreateGroup(f.ctx, luna.ID, CreateFeedInput{Username: "cats"})
	require.NoError(t, err)
	assert.True(t, cats.IsGroup())
	f.subscribe(luna, "ann")

	_, err = f.posts.Create(f.ctx, mark.ID, CreatePostInput{Body: "meow", Feeds: []string{"cats"}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f.subscribe(mark, "cats")
	p := f.post(mark, "meow", "cats")

	catsPosts := f.timelineID(cats.ID, model.PurposePosts)
	assert.Contains(t, f.members(catsPosts), p.ID)
	assert.Contains(t, f.members(f.timelineID(luna.ID, model.PurposeRiverOfNews)), p.ID)
	assert.Contains(t, f.members(f.timelineID(mark.ID, model.PurposeRiverOfNews)), p.ID)
	assert.Contains(t, f.members(model.EveryoneTimelineID), p.ID)
	assert.NotContains(t, f.members(f.timelineID(ann.ID, model.PurposeRiverOfNews)), p.ID)

	// 群组有新帖后排到订阅列表最前
	subs, err := f.repos.Subscriptions.ListSubscriptions(f.ctx, luna.ID, 0, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, catsPosts, subs[0].TimelineID)

	// 非成员不能发帖
	_, err = f.posts.Create(f.ctx, ann.ID, CreatePostInput{Body: "hi", Feeds: []string{"cats"}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	f.requireConsistent()
}

func TestGroupAdministrators(t *testing.T) {
	f := newFixture(t)
	luna, mark := f.user("luna"), f.user("mark")
	_, err := f.groups.CreateGroup(f.ctx, luna.ID, CreateFeedInput{Username: "cats"})
	require.NoError(t, err)

	err = f.groups.RemoveAdministrator(f.ctx, luna.ID, "cats", "luna")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.ErrorIs(t, f.rel.Unsubscribe(f.ctx, luna.ID, "cats"), apperr.ErrForbidden)

	assert.ErrorIs(t, f.groups.AddAdministrator(f.ctx, mark.ID, "cats", "mark"), apperr.ErrForbidden)
	require.NoError(t, f.groups.AddAdministrator(f.ctx, luna.ID, "cats", "mark"))
	require.NoError(t, f.groups.AddAdministrator(f.ctx, luna.ID, "cats", "mark"))

	admins, err := f.groups.Administrators(f.ctx, "cats")
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	// 管理员不订阅也能发帖
	p := f.post(mark, "rules", "cats")
	assert.NotEmpty(t, p.ID)

	require.NoError(t, f.groups.RemoveAdministrator(f.ctx, mark.ID, "cats", "luna"))
	admins, err = f.groups.Administrators(f.ctx, "cats")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, mark.ID, admins[0].ID)

	assert.ErrorIs(t, f.groups.AddAdministrator(f.ctx, mark.ID, "luna", "mark"), apperr.ErrNotFound)
	_, err = f.groups.CreateGroup(f.ctx, luna.ID, CreateFeedInput{Username: "cats"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
