// Package deadletter 保存监听组处理失败的事件，供之后重投。
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
)

// ErrNotFound 死信不存在
var ErrNotFound = errors.New("dead letter not found")

// InsertionID 死信在 group 内的唯一标识
type InsertionID string

// NewInsertionID 生成新的 InsertionID
func NewInsertionID() InsertionID {
	return InsertionID(uuid.NewString())
}

// ParseInsertionID 校验外部传入的 InsertionID
func ParseInsertionID(s string) (InsertionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid insertion id %q: %w", s, err)
	}
	return InsertionID(u.String()), nil
}

func (id InsertionID) String() string { return string(id) }

// Store 死信存储，所有实现都必须支持并发读写。
type Store interface {
	// Store 保存事件并分配新的 InsertionID
	Store(ctx context.Context, group events.Group, event events.Event) (InsertionID, error)

	// StoreWithID 使用调用方提供的 InsertionID 保存（同 key 覆盖）
	StoreWithID(ctx context.Context, group events.Group, event events.Event, id InsertionID) error

	// ListGroups 返回至少持有一条死信的 group
	ListGroups(ctx context.Context) ([]events.Group, error)

	// ListInsertionIDs 返回 group 内死信 ID 的惰性游标；每次 range 都会重新读取存储
	ListInsertionIDs(ctx context.Context, group events.Group) iter.Seq2[InsertionID, error]

	// Load 读取事件，不存在时返回 ErrNotFound
	Load(ctx context.Context, group events.Group, id InsertionID) (events.Event, error)

	// Remove 删除死信，不存在时为 no-op
	Remove(ctx context.Context, group events.Group, id InsertionID) error

	// ContainEvents 是否存在任意死信
	ContainEvents(ctx context.Context) (bool, error)
}

// Entry 一条死信的定位信息
type Entry struct {
	Group       events.Group
	InsertionID InsertionID
}

// CollectInsertionIDs 把游标一次性物化，便于在某个时间点固定处理范围
func CollectInsertionIDs(ctx context.Context, s Store, group events.Group) ([]InsertionID, error) {
	var out []InsertionID
	for id, err := range s.ListInsertionIDs(ctx, group) {
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// CollectEntries 物化全部 group 的死信定位信息
func CollectEntries(ctx context.Context, s Store) ([]Entry, error) {
	groups, err := s.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, g := range groups {
		ids, err := CollectInsertionIDs(ctx, s, g)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			out = append(out, Entry{Group: g, InsertionID: id})
		}
	}
	return out, nil
}
