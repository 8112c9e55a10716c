package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	asynqx "github.com/azhengyongqin/mail-taskhub/internal/queue"
)

// AsynqDispatcher 把事件写入 group 对应的 asynq 队列，入队成功即视为投递成功；
// 真正的处理由 EventHandler 在 asynq.Server 中完成。
type AsynqDispatcher struct {
	enqueuer asynqx.Enqueuer
	maxRetry int
	timeout  time.Duration
}

// AsynqOption 配置 AsynqDispatcher
type AsynqOption func(*AsynqDispatcher)

// WithMaxRetry 消费端失败后的最大重试次数
func WithMaxRetry(n int) AsynqOption {
	return func(d *AsynqDispatcher) { d.maxRetry = n }
}

// WithTimeout 单次处理超时
func WithTimeout(timeout time.Duration) AsynqOption {
	return func(d *AsynqDispatcher) { d.timeout = timeout }
}

func NewAsynqDispatcher(enqueuer asynqx.Enqueuer, opts ...AsynqOption) *AsynqDispatcher {
	d := &AsynqDispatcher{enqueuer: enqueuer, maxRetry: 3, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, group events.Group, event events.Event) error {
	_, err := asynqx.Enqueue(ctx, d.enqueuer, asynqx.EnqueueParams{
		TaskType: asynqx.TypeEvent,
		Queue:    asynqx.EventQueue(group.String()),
		MaxRetry: d.maxRetry,
		Timeout:  d.timeout,
		Payload:  event,
	})
	return err
}

// QueuesFor asynq.Config.Queues：每个 group 一个队列，权重相同
func QueuesFor(groups []events.Group) map[string]int {
	out := make(map[string]int, len(groups))
	for _, g := range groups {
		out[asynqx.EventQueue(g.String())] = 1
	}
	return out
}

// EventHandler 消费端：根据队列名还原 group 并交给 target 处理
func EventHandler(target events.Dispatcher) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		queue, ok := asynq.GetQueueName(ctx)
		if !ok {
			return fmt.Errorf("missing queue name: %w", asynq.SkipRetry)
		}
		group, ok := asynqx.GroupOfQueue(queue)
		if !ok {
			return fmt.Errorf("queue %q is not an event queue: %w", queue, asynq.SkipRetry)
		}
		return target.Dispatch(ctx, events.Group(group), events.Event(t.Payload()))
	})
}

// NewEventMux 注册 EventHandler 的 ServeMux
func NewEventMux(target events.Dispatcher) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(asynqx.TypeEvent, EventHandler(target))
	return mux
}

var _ events.Dispatcher = (*AsynqDispatcher)(nil)
