// Package redeliver 把死信重新投递给原监听组。
package redeliver

import (
	"context"
	"errors"
	"fmt"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// TaskType 任务与快照共用的类型标识
const TaskType = "eventDeadLettersRedeliverTask"

// Scope 重投范围
type Scope int

const (
	ScopeAll Scope = iota
	ScopeGroup
	ScopeSingle
)

// Task 死信重投任务。开始时固定目标集合，之后写入的死信不在本次范围内。
type Task struct {
	store      deadletter.Store
	dispatcher events.Dispatcher

	scope       Scope
	group       events.Group
	insertionID deadletter.InsertionID
}

// NewAllTask 重投所有 group 的死信
func NewAllTask(store deadletter.Store, dispatcher events.Dispatcher) *Task {
	return &Task{store: store, dispatcher: dispatcher, scope: ScopeAll}
}

// NewGroupTask 重投一个 group 的死信
func NewGroupTask(store deadletter.Store, dispatcher events.Dispatcher, group events.Group) *Task {
	return &Task{store: store, dispatcher: dispatcher, scope: ScopeGroup, group: group}
}

// NewSingleTask 重投单条死信
func NewSingleTask(store deadletter.Store, dispatcher events.Dispatcher, group events.Group, id deadletter.InsertionID) *Task {
	return &Task{store: store, dispatcher: dispatcher, scope: ScopeSingle, group: group, insertionID: id}
}

func (t *Task) Type() string { return TaskType }

func (t *Task) Scope() Scope { return t.scope }

func (t *Task) Group() events.Group { return t.group }

func (t *Task) InsertionID() deadletter.InsertionID { return t.insertionID }

// targets 物化本次要处理的死信
func (t *Task) targets(ctx context.Context) ([]deadletter.Entry, error) {
	switch t.scope {
	case ScopeSingle:
		return []deadletter.Entry{{Group: t.group, InsertionID: t.insertionID}}, nil
	case ScopeGroup:
		ids, err := deadletter.CollectInsertionIDs(ctx, t.store, t.group)
		if err != nil {
			return nil, err
		}
		out := make([]deadletter.Entry, 0, len(ids))
		for _, id := range ids {
			out = append(out, deadletter.Entry{Group: t.group, InsertionID: id})
		}
		return out, nil
	default:
		return deadletter.CollectEntries(ctx, t.store)
	}
}

func (t *Task) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := &AdditionalInformation{Group: t.group, InsertionID: t.insertionID}
	progress.Publish(info.snapshot())

	targets, err := t.targets(ctx)
	if err != nil {
		return task.ResultPartial, fmt.Errorf("list dead letters: %w", err)
	}

	for _, entry := range targets {
		if err := ctx.Err(); err != nil {
			return task.ResultPartial, fmt.Errorf("redelivery interrupted: %w", err)
		}

		delivered, skipped := t.redeliver(ctx, entry)
		if skipped {
			continue
		}
		if delivered {
			info.SuccessfulRedeliveriesCount++
		} else {
			info.FailedRedeliveriesCount++
		}
		metrics.RecordRedelivery(entry.Group.String(), delivered)
		progress.Publish(info.snapshot())
	}

	return task.ResultOf(info.FailedRedeliveriesCount), nil
}

// redeliver 处理一条死信。已不存在的条目（被并发的重投或删除移走）直接跳过，不计数。
func (t *Task) redeliver(ctx context.Context, entry deadletter.Entry) (delivered, skipped bool) {
	log := logger.WithGroup(entry.Group.String()).With().Str("insertion_id", entry.InsertionID.String()).Logger()

	event, err := t.store.Load(ctx, entry.Group, entry.InsertionID)
	if errors.Is(err, deadletter.ErrNotFound) {
		log.Debug().Msg("死信已不存在，跳过")
		return false, true
	}
	if err != nil {
		log.Warn().Err(err).Msg("读取死信失败")
		return false, false
	}

	if err := t.dispatcher.Dispatch(ctx, entry.Group, event); err != nil {
		log.Warn().Err(err).Msg("死信重投失败，保留")
		return false, false
	}

	// 投递成功但删除失败：条目保留，下次会被重复投递
	if err := t.store.Remove(ctx, entry.Group, entry.InsertionID); err != nil {
		log.Error().Err(err).Msg("死信已重投但删除失败")
		return false, false
	}
	return true, false
}

// AdditionalInformation 重投进度快照
type AdditionalInformation struct {
	SuccessfulRedeliveriesCount int64
	FailedRedeliveriesCount     int64
	Group                       events.Group
	InsertionID                 deadletter.InsertionID
}

func (*AdditionalInformation) Type() string { return TaskType }

func (a *AdditionalInformation) snapshot() *AdditionalInformation {
	cp := *a
	return &cp
}

var (
	_ task.Task                  = (*Task)(nil)
	_ task.AdditionalInformation = (*AdditionalInformation)(nil)
)
