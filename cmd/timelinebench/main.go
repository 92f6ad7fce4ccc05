package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/internal/service"
	"github.com/d60-Lab/feedline/pkg/cache"
	"github.com/d60-Lab/feedline/pkg/logger"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	return sum / time.Duration(len(vs))
}

// 发帖扇出压测：一个作者 N 个订阅者，测同步扇出耗时与通知投递耗时
func main() {
	cfg := must(config.Load())
	_ = logger.Init("warn", "console")
	rdb := must(cache.InitRedis(cfg))
	ctx := context.Background()

	N := envInt("N", 2000)              // 订阅者数
	POSTS := envInt("POSTS", 100)       // 发帖数
	WORKERS := envInt("WORKERS", 8)     // 扇出并发
	NOTIFIERS := envInt("NOTIFIERS", 4) // 通知 worker
	QUEUE := envInt("QUEUE", 65536)     // 通知队列

	// 本地压测：清空当前库
	_ = rdb.FlushDB(ctx).Err()

	repos := repository.NewRepositories(rdb, nil)
	must(0, repos.Timelines.EnsureEveryone(ctx))
	dispatcher := service.NewDispatcher(service.NewRedisPublisher(rdb), QUEUE, 2*time.Second)
	stop := dispatcher.Start(NOTIFIERS)
	defer stop(context.Background())

	feeds := service.NewFeedService(repos)
	rel := service.NewRelationshipService(repos)
	posts := service.NewPostService(repos, service.NewFanoutRunner(WORKERS, dispatcher))
	timelines := service.NewTimelineService(repos, cfg.Timeline)

	author := must(feeds.CreateUser(ctx, service.CreateFeedInput{Username: "author0"}))
	subscribers := make([]string, N)
	for i := 0; i < N; i++ {
		id := uuid.New().String()
		f := must(feeds.CreateUser(ctx, service.CreateFeedInput{Username: "u" + id[:8]}))
		must(0, rel.Subscribe(ctx, f.ID, author.Username))
		subscribers[i] = f.ID
	}

	pubDurations := make([]time.Duration, 0, POSTS)
	for i := 0; i < POSTS; i++ {
		st := time.Now()
		_, err := posts.Create(ctx, author.ID, service.CreatePostInput{
			Body:  fmt.Sprintf("hello %d", i),
			Feeds: []string{author.Username},
		})
		if err != nil {
			panic(err)
		}
		pubDurations = append(pubDurations, time.Since(st))
	}

	// 通知条数不固定（每个时间线一条），收到 1 秒静默即认为排空
	delivered := make([]time.Duration, 0, POSTS*4)
	timeout := time.After(2 * time.Minute)
COLLECT:
	for {
		select {
		case d := <-dispatcher.Metrics():
			delivered = append(delivered, d)
		case <-time.After(time.Second):
			break COLLECT
		case <-timeout:
			fmt.Printf("timeout while waiting for notifications: got=%d queued=%d\n", len(delivered), dispatcher.QueueLen())
			break COLLECT
		}
	}

	fmt.Printf("N=%d POSTS=%d WORKERS=%d NOTIFIERS=%d QUEUE=%d\n", N, POSTS, WORKERS, NOTIFIERS, QUEUE)
	fmt.Printf("Publish fan-out latency: avg=%v p95=%v p99=%v\n", avg(pubDurations), pct(pubDurations, 0.95), pct(pubDurations, 0.99))
	fmt.Printf("Notify delivery (enqueue->published): samples=%d avg=%v p95=%v p99=%v\n",
		len(delivered), avg(delivered), pct(delivered, 0.95), pct(delivered, 0.99))

	if len(subscribers) > 0 {
		st := time.Now()
		page := must(timelines.Home(ctx, subscribers[0], 0, 50))
		fmt.Printf("Home read (subscriber0, limit=50): %v, posts=%d\n", time.Since(st), len(page.Posts))
	}
}
