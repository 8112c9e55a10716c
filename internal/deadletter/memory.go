package deadletter

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
)

type memoryGroup struct {
	order  []InsertionID
	events map[InsertionID]events.Event
}

// MemoryStore 内存死信存储（单进程部署与测试）
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[events.Group]*memoryGroup
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: map[events.Group]*memoryGroup{},
	}
}

func (s *MemoryStore) Store(ctx context.Context, group events.Group, event events.Event) (InsertionID, error) {
	id := NewInsertionID()
	if err := s.StoreWithID(ctx, group, event, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) StoreWithID(_ context.Context, group events.Group, event events.Event, id InsertionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		g = &memoryGroup{events: map[InsertionID]events.Event{}}
		s.groups[group] = g
	}
	if _, exists := g.events[id]; !exists {
		g.order = append(g.order, id)
	}
	g.events[id] = append(events.Event(nil), event...)

	metrics.RecordDeadLetterStored(group.String())
	return nil
}

// ListGroups 按名称排序返回
func (s *MemoryStore) ListGroups(_ context.Context) ([]events.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]events.Group, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ListInsertionIDs 按写入顺序返回；每次迭代开始时复制当前 ID 列表
func (s *MemoryStore) ListInsertionIDs(_ context.Context, group events.Group) iter.Seq2[InsertionID, error] {
	return func(yield func(InsertionID, error) bool) {
		s.mu.RLock()
		var ids []InsertionID
		if g, ok := s.groups[group]; ok {
			ids = append(ids, g.order...)
		}
		s.mu.RUnlock()

		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) Load(_ context.Context, group events.Group, id InsertionID) (events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[group]
	if !ok {
		return nil, ErrNotFound
	}
	ev, ok := g.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(events.Event(nil), ev...), nil
}

func (s *MemoryStore) Remove(_ context.Context, group events.Group, id InsertionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return nil
	}
	if _, ok := g.events[id]; !ok {
		return nil
	}
	delete(g.events, id)
	for i, existing := range g.order {
		if existing == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	if len(g.events) == 0 {
		delete(s.groups, group)
	}
	return nil
}

func (s *MemoryStore) ContainEvents(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups) > 0, nil
}

var _ Store = (*MemoryStore)(nil)
