package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func BenchmarkSubscriptionWrite(b *testing.B) {
	_, rdb := setupRedis(b)
	repo := NewSubscriptionRepository(rdb)
	ctx := context.Background()

	feeds := make([]string, 1000)
	for i := range feeds {
		feeds[i] = fmt.Sprintf("u%04d", i)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := feeds[rng.Intn(len(feeds))]
		to := feeds[rng.Intn(len(feeds))]
		if from == to {
			continue
		}
		_, _ = repo.Create(ctx, from, to+":posts", time.Now())
	}
}

func BenchmarkQuerySubscribersAndSubscriptions(b *testing.B) {
	_, rdb := setupRedis(b)
	repo := NewSubscriptionRepository(rdb)
	ctx := context.Background()

	// u0 有 N 个订阅者，同时订阅了 N 个 feed
	const N = 5000
	now := time.Now()
	for i := 1; i <= N; i++ {
		uid := fmt.Sprintf("u%d", i)
		_, _ = repo.Create(ctx, uid, "u0:posts", now)
		_, _ = repo.Create(ctx, "u0", uid+":posts", now)
	}

	b.ResetTimer()
	b.Run("SubscriberIDs", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.SubscriberIDs(ctx, "u0:posts")
		}
	})

	b.Run("ListSubscriptions", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.ListSubscriptions(ctx, "u0", 0, 50)
		}
	})
}
