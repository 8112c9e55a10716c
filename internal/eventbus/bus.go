// Package eventbus 进程内事件总线，以及基于 asynq / RabbitMQ 的远程投递实现。
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
)

// ErrDuplicateListener 同一 group 重复注册
var ErrDuplicateListener = errors.New("listener already registered for group")

// Bus 进程内监听器注册表。Publish 把事件扇出到所有 group，
// 处理失败的事件写入死信存储。
type Bus struct {
	mu          sync.RWMutex
	listeners   map[events.Group]events.Listener
	deadLetters deadletter.Store
}

func NewBus(deadLetters deadletter.Store) *Bus {
	return &Bus{
		listeners:   map[events.Group]events.Listener{},
		deadLetters: deadLetters,
	}
}

// Register 为 group 注册监听器
func (b *Bus) Register(group events.Group, l events.Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.listeners[group]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateListener, group)
	}
	b.listeners[group] = l
	logger.Debug().Str("group", group.String()).Int("listener_count", len(b.listeners)).Msg("注册事件监听器")
	return nil
}

// Groups 已注册的 group（排序）
func (b *Bus) Groups() []events.Group {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]events.Group, 0, len(b.listeners))
	for g := range b.listeners {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch 把事件交给 group 的监听器处理；监听器 panic 视为投递失败
func (b *Bus) Dispatch(ctx context.Context, group events.Group, event events.Event) (err error) {
	b.mu.RLock()
	l, ok := b.listeners[group]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", events.ErrNoListener, group)
	}

	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Errorf("listener panic: %v", r)
		}
	}()
	return l.Handle(ctx, event)
}

// Publish 投递给所有已注册 group。单个 group 失败不影响其他 group，
// 失败事件存入死信；只有死信写入失败才会返回错误。
func (b *Bus) Publish(ctx context.Context, event events.Event) error {
	var errs []error
	for _, g := range b.Groups() {
		err := b.Dispatch(ctx, g, event)
		if err == nil {
			continue
		}

		log := logger.WithGroup(g.String())
		log.Warn().Err(err).Msg("事件处理失败，写入死信")
		metrics.RecordError("eventbus", "listener")

		if b.deadLetters == nil {
			errs = append(errs, fmt.Errorf("group %s: %w", g, err))
			continue
		}
		if _, storeErr := b.deadLetters.Store(ctx, g, event); storeErr != nil {
			log.Error().Err(storeErr).Msg("死信写入失败")
			errs = append(errs, fmt.Errorf("store dead letter for %s: %w", g, storeErr))
		}
	}
	return errors.Join(errs...)
}

var _ events.Dispatcher = (*Bus)(nil)
