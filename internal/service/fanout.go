package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/pkg/logger"
	"github.com/d60-Lab/feedline/pkg/metrics"
)

var tracer = otel.Tracer("github.com/d60-Lab/feedline/internal/service")

// writeTask 扇出里的一个独立写入；write 为 nil 时只发通知
type writeTask struct {
	timelineID string
	write      func(ctx context.Context) error
	event      *model.Event
}

// FanoutRunner 先收集任务，再用有界 goroutine 池全部执行并汇总错误；不回滚已成功的写入
type FanoutRunner struct {
	workers  int
	notifier Notifier
}

func NewFanoutRunner(workers int, notifier Notifier) *FanoutRunner {
	if workers <= 0 {
		workers = 16
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &FanoutRunner{workers: workers, notifier: notifier}
}

// Run 执行全部任务；每个任务的通知只在它自己的写入成功后发出
func (r *FanoutRunner) Run(ctx context.Context, op string, tasks []writeTask) error {
	if len(tasks) == 0 {
		return nil
	}
	// 请求取消不打断进行中的扇出
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "fanout."+op)
	defer span.End()
	span.SetAttributes(attribute.Int("fanout.tasks", len(tasks)))

	start := time.Now()
	p := pool.New().WithErrors().WithMaxGoroutines(r.workers)
	for _, t := range tasks {
		p.Go(func() error {
			if t.write != nil {
				if err := t.write(ctx); err != nil {
					return errors.Wrapf(err, "%s: timeline %s", op, t.timelineID)
				}
			}
			if t.event != nil {
				r.notify(ctx, *t.event)
			}
			return nil
		})
	}
	err := p.Wait()

	metrics.FanoutWidth(op, len(tasks))
	metrics.FanoutDuration(op, time.Since(start))
	if err != nil {
		failed := countErrors(err)
		metrics.FanoutTasks(op, "error", failed)
		metrics.FanoutTasks(op, "ok", len(tasks)-failed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial fan-out")
		logger.Error("fan-out partially failed",
			zap.String("op", op),
			zap.Int("tasks", len(tasks)),
			zap.Int("failed", failed),
			zap.Error(err))
		return err
	}
	metrics.FanoutTasks(op, "ok", len(tasks))
	return nil
}

// Notify 直接发一条不依赖写入的通知
func (r *FanoutRunner) Notify(ctx context.Context, ev model.Event) {
	r.notify(ctx, ev)
}

func (r *FanoutRunner) notify(ctx context.Context, ev model.Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		logger.Warn("notification dropped",
			zap.String("kind", string(ev.Kind)),
			zap.String("timeline", ev.TimelineID),
			zap.String("post", ev.PostID),
			zap.Error(err))
	}
}

func countErrors(err error) int {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return len(u.Unwrap())
	}
	return 1
}
