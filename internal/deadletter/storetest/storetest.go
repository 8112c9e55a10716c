// Package storetest 提供 deadletter.Store 的通用契约测试，各后端共用。
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
)

// Run 对 newStore 返回的空存储执行全部契约用例
func Run(t *testing.T, newStore func(t *testing.T) deadletter.Store) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s deadletter.Store)
	}{
		{"StoreThenLoad", testStoreThenLoad},
		{"StoreWithIDOverwrites", testStoreWithIDOverwrites},
		{"LoadMissing", testLoadMissing},
		{"RemoveMissingIsNoop", testRemoveMissingIsNoop},
		{"RemoveDropsEmptyGroup", testRemoveDropsEmptyGroup},
		{"ListGroups", testListGroups},
		{"CursorIsRestartable", testCursorIsRestartable},
		{"CursorEarlyStop", testCursorEarlyStop},
		{"GroupsAreIsolated", testGroupsAreIsolated},
		{"ContainEvents", testContainEvents},
		{"ConcurrentStore", testConcurrentStore},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, newStore(t))
		})
	}
}

func testStoreThenLoad(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	id, err := s.Store(ctx, "a", events.Event(`{"k":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ev, err := s.Load(ctx, "a", id)
	require.NoError(t, err)
	assert.Equal(t, events.Event(`{"k":1}`), ev)
}

func testStoreWithIDOverwrites(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	id := deadletter.NewInsertionID()
	require.NoError(t, s.StoreWithID(ctx, "a", events.Event("v1"), id))
	require.NoError(t, s.StoreWithID(ctx, "a", events.Event("v2"), id))

	ev, err := s.Load(ctx, "a", id)
	require.NoError(t, err)
	assert.Equal(t, events.Event("v2"), ev)

	ids, err := deadletter.CollectInsertionIDs(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, []deadletter.InsertionID{id}, ids)
}

func testLoadMissing(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	_, err := s.Load(ctx, "a", deadletter.NewInsertionID())
	assert.ErrorIs(t, err, deadletter.ErrNotFound)

	id, err := s.Store(ctx, "a", events.Event("x"))
	require.NoError(t, err)
	_, err = s.Load(ctx, "b", id)
	assert.ErrorIs(t, err, deadletter.ErrNotFound)
}

func testRemoveMissingIsNoop(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	assert.NoError(t, s.Remove(ctx, "nobody", deadletter.NewInsertionID()))

	id, err := s.Store(ctx, "a", events.Event("x"))
	require.NoError(t, err)
	assert.NoError(t, s.Remove(ctx, "a", deadletter.NewInsertionID()))

	_, err = s.Load(ctx, "a", id)
	assert.NoError(t, err)
}

func testRemoveDropsEmptyGroup(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	id, err := s.Store(ctx, "a", events.Event("x"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "a", id))

	_, err = s.Load(ctx, "a", id)
	assert.ErrorIs(t, err, deadletter.ErrNotFound)

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func testListGroups(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	for _, g := range []events.Group{"b", "a", "b"} {
		_, err := s.Store(ctx, g, events.Event("x"))
		require.NoError(t, err)
	}
	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []events.Group{"a", "b"}, groups)
}

func testCursorIsRestartable(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	var want []deadletter.InsertionID
	for range 3 {
		id, err := s.Store(ctx, "a", events.Event("x"))
		require.NoError(t, err)
		want = append(want, id)
	}

	cursor := s.ListInsertionIDs(ctx, "a")
	collect := func() []deadletter.InsertionID {
		var out []deadletter.InsertionID
		for id, err := range cursor {
			require.NoError(t, err)
			out = append(out, id)
		}
		return out
	}
	assert.ElementsMatch(t, want, collect())

	// 再次 range 会重新读取存储
	require.NoError(t, s.Remove(ctx, "a", want[0]))
	assert.ElementsMatch(t, want[1:], collect())
}

func testCursorEarlyStop(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	for range 5 {
		_, err := s.Store(ctx, "a", events.Event("x"))
		require.NoError(t, err)
	}
	n := 0
	for _, err := range s.ListInsertionIDs(ctx, "a") {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func testGroupsAreIsolated(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	idA, err := s.Store(ctx, "a", events.Event("x"))
	require.NoError(t, err)
	_, err = s.Store(ctx, "b", events.Event("y"))
	require.NoError(t, err)

	ids, err := deadletter.CollectInsertionIDs(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, []deadletter.InsertionID{idA}, ids)

	ids, err = deadletter.CollectInsertionIDs(ctx, s, "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)

	entries, err := deadletter.CollectEntries(ctx, s)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func testContainEvents(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	ok, err := s.ContainEvents(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := s.Store(ctx, "a", events.Event("x"))
	require.NoError(t, err)
	ok, err = s.ContainEvents(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, "a", id))
	ok, err = s.ContainEvents(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentStore(t *testing.T, s deadletter.Store) {
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Store(ctx, "a", events.Event("x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids, err := deadletter.CollectInsertionIDs(ctx, s, "a")
	require.NoError(t, err)
	assert.Len(t, ids, n)
}
