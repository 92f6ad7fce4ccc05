package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/pkg/logger"
	"github.com/d60-Lab/feedline/pkg/metrics"
)

type dispatchJob struct {
	ev    model.Event
	enqAt time.Time
}

// Dispatcher 本地异步投递器：请求路径只入队，worker 调用下游 sink；队列满直接丢弃
type Dispatcher struct {
	sink      Notifier
	ch        chan dispatchJob
	timeout   time.Duration
	metricsCh chan time.Duration
}

func NewDispatcher(sink Notifier, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 10000
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{
		sink:      sink,
		ch:        make(chan dispatchJob, queueSize),
		timeout:   timeout,
		metricsCh: make(chan time.Duration, 65536),
	}
}

// Start 启动 worker，返回停止函数；停止时会在 ctx 允许的时间内等待队列排空
func (d *Dispatcher) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		for {
			select {
			case job := <-d.ch:
				d.deliver(job)
			case <-ctx.Done():
				if n := len(d.ch); n > 0 {
					logger.Warn("dispatcher stopped with pending events", zap.Int("pending", n))
				}
				return ctx.Err()
			default:
				return nil
			}
		}
	}
}

func (d *Dispatcher) deliver(job dispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	err := d.sink.Notify(ctx, job.ev)
	cancel()
	if err != nil {
		metrics.Notifications("error")
		logger.Warn("notify failed",
			zap.String("kind", string(job.ev.Kind)),
			zap.Strings("topics", job.ev.Topics()),
			zap.Error(err))
		return
	}
	metrics.Notifications("sent")
	lat := time.Since(job.enqAt)
	metrics.NotifyLatency(lat)
	select {
	case d.metricsCh <- lat:
	default:
	}
}

// Notify 入队；从不返回错误，队列满时记录告警并丢弃
func (d *Dispatcher) Notify(_ context.Context, ev model.Event) error {
	select {
	case d.ch <- dispatchJob{ev: ev, enqAt: time.Now()}:
	default:
		metrics.Notifications("dropped")
		logger.Warn("dispatcher queue full, drop event",
			zap.String("kind", string(ev.Kind)),
			zap.String("timeline", ev.TimelineID),
			zap.String("post", ev.PostID))
	}
	return nil
}

// Metrics 返回投递耗时的只读通道（每投递成功一条发送一次 duration）。
func (d *Dispatcher) Metrics() <-chan time.Duration { return d.metricsCh }

// QueueLen 返回当前队列长度（采样值）。
func (d *Dispatcher) QueueLen() int { return len(d.ch) }
