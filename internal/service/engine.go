package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
)

// maxBodyLength 帖子与评论正文的最大字符数
const maxBodyLength = 1500

// engine 帖子、评论、点赞共用的扇出依赖
type engine struct {
	repos   *repository.Repositories
	feeds   *feedService
	vis     *Visibility
	closure *closureResolver
	runner  *FanoutRunner
}

func newEngine(repos *repository.Repositories, runner *FanoutRunner) *engine {
	if runner == nil {
		runner = NewFanoutRunner(0, nil)
	}
	return &engine{
		repos:   repos,
		feeds:   &feedService{repos: repos},
		vis:     NewVisibility(repos),
		closure: &closureResolver{repos: repos},
		runner:  runner,
	}
}

// postTimelines 帖子当前所在的时间线
func (e *engine) postTimelines(ctx context.Context, postID string) ([]*model.Timeline, error) {
	ids, err := e.repos.Timelines.TimelineIDsOfPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return e.repos.Timelines.FindMany(ctx, ids)
}

func (e *engine) timelineOf(ctx context.Context, feedID string, purpose model.Purpose) (*model.Timeline, error) {
	id, err := e.repos.Feeds.TimelineID(ctx, feedID, purpose)
	if err != nil {
		return nil, err
	}
	return &model.Timeline{ID: id, Name: purpose, OwnerID: feedID}, nil
}

// bumpWrite 可冒泡的帖子刷新分值，否则只在缺席时按原分值插入
func (e *engine) bumpWrite(post *model.Post, at time.Time) func(context.Context, string) error {
	if post.Bumpable {
		return func(ctx context.Context, timelineID string) error {
			return e.repos.Timelines.InsertOrBump(ctx, timelineID, post.ID, at.UnixMilli())
		}
	}
	score := post.Score()
	return func(ctx context.Context, timelineID string) error {
		return e.repos.Timelines.InsertIfAbsent(ctx, timelineID, post.ID, score)
	}
}

// tasksFor 每个时间线一个任务；event 为 nil 时不通知
func tasksFor(timelineIDs []string, write func(context.Context, string) error, event func(timelineID string) *model.Event) []writeTask {
	tasks := make([]writeTask, 0, len(timelineIDs)+1)
	for _, id := range timelineIDs {
		t := writeTask{timelineID: id}
		if write != nil {
			t.write = func(ctx context.Context) error { return write(ctx, id) }
		}
		if event != nil {
			t.event = event(id)
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// postScoped 只针对帖子本身的通知（给在帖子详情页、不在任何共同时间线上的人）
func postScoped(ev model.Event) writeTask {
	ev.TimelineID = ""
	return writeTask{event: &ev}
}

func timelineIDs(timelines []*model.Timeline, skip ...model.Purpose) []string {
	ids := make([]string, 0, len(timelines))
outer:
	for _, tl := range timelines {
		for _, p := range skip {
			if tl.Name == p {
				continue outer
			}
		}
		ids = append(ids, tl.ID)
	}
	return ids
}

func normalizeBody(body, what string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperr.Validation(what + " text must not be empty")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return "", apperr.Validation("Maximum " + strings.ToLower(what) + " length is 1500 characters")
	}
	return body, nil
}
