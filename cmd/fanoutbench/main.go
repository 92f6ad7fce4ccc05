package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/cache"
)

// 读路径对比：写时扇出好的 RiverOfNews 单 key 分页 vs 读时 ZUNION 合并 K 个 Posts 时间线
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	rdb, err := cache.InitRedis(cfg)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	AUTHORS := 64
	if s := os.Getenv("AUTHORS"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			AUTHORS = v
		}
	}
	POSTS := 20
	if s := os.Getenv("POSTS"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			POSTS = v
		}
	}
	REPEAT := 50
	if s := os.Getenv("REPEAT"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			REPEAT = v
		}
	}

	_ = rdb.FlushDB(ctx).Err()
	repos := repository.NewRepositories(rdb, nil)
	if err := repos.Timelines.EnsureEveryone(ctx); err != nil {
		panic(err)
	}
	feeds := service.NewFeedService(repos)
	rel := service.NewRelationshipService(repos)
	posts := service.NewPostService(repos, service.NewFanoutRunner(8, service.NopNotifier{}))

	reader, err := feeds.CreateUser(ctx, service.CreateFeedInput{Username: "reader0"})
	if err != nil {
		panic(err)
	}
	sources := make([]string, 0, AUTHORS)
	for i := 0; i < AUTHORS; i++ {
		a, err := feeds.CreateUser(ctx, service.CreateFeedInput{Username: "a" + uuid.New().String()[:8]})
		if err != nil {
			panic(err)
		}
		if err := rel.Subscribe(ctx, reader.ID, a.Username); err != nil {
			panic(err)
		}
		for j := 0; j < POSTS; j++ {
			if _, err := posts.Create(ctx, a.ID, service.CreatePostInput{Body: fmt.Sprintf("post %d", j), Feeds: []string{a.Username}}); err != nil {
				panic(err)
			}
		}
		tid, err := repos.Feeds.TimelineID(ctx, a.ID, model.PurposePosts)
		if err != nil {
			panic(err)
		}
		sources = append(sources, tid)
	}
	river, err := repos.Feeds.TimelineID(ctx, reader.ID, model.PurposeRiverOfNews)
	if err != nil {
		panic(err)
	}

	single := func(ctx context.Context) time.Duration {
		st := time.Now()
		_, _ = repos.Timelines.Page(ctx, river, 0, 50)
		return time.Since(st)
	}
	union := func(ctx context.Context, n int) time.Duration {
		st := time.Now()
		key := repository.DiscussionsScratchKey(reader.ID, strconv.Itoa(n))
		_, _ = repos.Timelines.UnionMax(ctx, key, 10*time.Second, sources, 0, 50)
		return time.Since(st)
	}

	singles := make([]time.Duration, 0, REPEAT)
	unions := make([]time.Duration, 0, REPEAT)
	for i := 0; i < REPEAT; i++ {
		singles = append(singles, single(ctx))
	}
	for i := 0; i < REPEAT; i++ {
		unions = append(unions, union(ctx, i))
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(float64(len(xs)) * p)
		if k < 0 {
			k = 0
		}
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}

	var sum1, sum2 time.Duration
	for _, d := range singles {
		sum1 += d
	}
	for _, d := range unions {
		sum2 += d
	}
	fmt.Printf("AUTHORS=%d POSTS=%d REPEAT=%d\n", AUTHORS, POSTS, REPEAT)
	fmt.Printf("RiverOfNews page: avg=%v p95=%v p99=%v\n", sum1/time.Duration(len(singles)), pct(singles, 0.95), pct(singles, 0.99))
	fmt.Printf("Read-time union of %d timelines: avg=%v p95=%v p99=%v\n", AUTHORS, sum2/time.Duration(len(unions)), pct(unions, 0.95), pct(unions, 0.99))
}
