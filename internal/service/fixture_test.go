package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
)

// recorder 收集发出的通知
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Notify(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) of(kind model.EventKind) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			res = append(res, ev)
		}
	}
	return res
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	mr        *miniredis.Miniredis
	repos     *repository.Repositories
	rec       *recorder
	feeds     FeedService
	rel       RelationshipService
	groups    GroupService
	posts     PostService
	comments  CommentService
	timelines TimelineService
	auth      AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Account{}))

	// 每次取时间前进 1ms，保证分值有序
	var (
		mu    sync.Mutex
		clock = time.UnixMilli(1_700_000_000_000)
	)
	prev := nowFunc
	nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}
	t.Cleanup(func() { nowFunc = prev })

	repos := repository.NewRepositories(rdb, db)
	rec := &recorder{}
	runner := NewFanoutRunner(8, rec)
	feeds := NewFeedService(repos)
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		mr:        mr,
		repos:     repos,
		rec:       rec,
		feeds:     feeds,
		rel:       NewRelationshipService(repos),
		groups:    NewGroupService(repos),
		posts:     NewPostService(repos, runner),
		comments:  NewCommentService(repos, runner),
		timelines: NewTimelineService(repos, config.TimelineConfig{DefaultLimit: 25, MaxLimit: 100, UnionTTL: time.Minute}),
		auth:      NewAuthService(repos, feeds, "test-secret", time.Hour),
	}
}

func (f *fixture) user(name string, private ...bool) *model.Feed {
	f.t.Helper()
	u, err := f.feeds.CreateUser(f.ctx, CreateFeedInput{Username: name, IsPrivate: len(private) > 0 && private[0]})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) subscribe(subscriber *model.Feed, target string) {
	f.t.Helper()
	require.NoError(f.t, f.rel.Subscribe(f.ctx, subscriber.ID, target))
}

func (f *fixture) post(author *model.Feed, body string, feeds ...string) *model.Post {
	f.t.Helper()
	p, err := f.posts.Create(f.ctx, author.ID, CreatePostInput{Body: body, Feeds: feeds})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) timelineID(feedID string, purpose model.Purpose) string {
	f.t.Helper()
	id, err := f.repos.Feeds.TimelineID(f.ctx, feedID, purpose)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) members(timelineID string) []string {
	f.t.Helper()
	ids, err := f.repos.Timelines.PostIDs(f.ctx, timelineID)
	require.NoError(f.t, err)
	return ids
}

func (f *fixture) score(timelineID, postID string) int64 {
	f.t.Helper()
	s, ok, err := f.repos.Timelines.Score(f.ctx, timelineID, postID)
	require.NoError(f.t, err)
	require.True(f.t, ok, "post %s not in %s", postID, timelineID)
	return s
}

func (f *fixture) stats(feedID string) *model.Stats {
	f.t.Helper()
	s, err := f.repos.Stats.Get(f.ctx, feedID)
	require.NoError(f.t, err)
	return s
}

// requireConsistent 所有时间线正向成员与帖子反向集合一致
func (f *fixture) requireConsistent() {
	f.t.Helper()
	forward := map[string]map[string]bool{}
	reverse := map[string]map[string]bool{}
	for _, key := range f.mr.Keys() {
		parts := strings.Split(key, ":")
		if len(parts) != 3 {
			continue
		}
		switch {
		case parts[0] == "timeline" && parts[2] == "posts":
			members, err := f.mr.ZMembers(key)
			require.NoError(f.t, err)
			for _, p := range members {
				if forward[p] == nil {
					forward[p] = map[string]bool{}
				}
				forward[p][parts[1]] = true
			}
		case parts[0] == "post" && parts[2] == "timelines":
			members, err := f.mr.Members(key)
			require.NoError(f.t, err)
			for _, tl := range members {
				if reverse[parts[1]] == nil {
					reverse[parts[1]] = map[string]bool{}
				}
				reverse[parts[1]][tl] = true
			}
		}
	}
	require.Equal(f.t, forward, reverse)
}

// breakKey 把 key 换成字符串，让后续对它的 hash / zset 操作返回 WRONGTYPE；返回的函数恢复原值
func (f *fixture) breakKey(key string) (restore func()) {
	f.t.Helper()
	var undo func()
	switch f.mr.Type(key) {
	case "hash":
		fields, err := f.mr.HKeys(key)
		require.NoError(f.t, err)
		pairs := make([]string, 0, 2*len(fields))
		for _, field := range fields {
			pairs = append(pairs, field, f.mr.HGet(key, field))
		}
		undo = func() { f.mr.HSet(key, pairs...) }
	case "zset":
		members, err := f.mr.ZMembers(key)
		require.NoError(f.t, err)
		scores := make(map[string]float64, len(members))
		for _, m := range members {
			scores[m], err = f.mr.ZScore(key, m)
			require.NoError(f.t, err)
		}
		undo = func() {
			for m, score := range scores {
				_, err := f.mr.ZAdd(key, score, m)
				require.NoError(f.t, err)
			}
		}
	case "":
		undo = func() {}
	default:
		f.t.Fatalf("breakKey: unsupported type %s for %s", f.mr.Type(key), key)
	}
	f.mr.Del(key)
	require.NoError(f.t, f.mr.Set(key, "broken"))
	return func() {
		f.mr.Del(key)
		undo()
	}
}
