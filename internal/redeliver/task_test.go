package redeliver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/model"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

type recordingProgress struct {
	mu   sync.Mutex
	last task.AdditionalInformation
	n    int
}

func (p *recordingProgress) Publish(info task.AdditionalInformation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = info
	p.n++
}

func (p *recordingProgress) info(t *testing.T) *AdditionalInformation {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.last.(*AdditionalInformation)
	require.True(t, ok)
	return a
}

// collectingDispatcher 记录投递，fail 中的 group 返回错误
type collectingDispatcher struct {
	mu        sync.Mutex
	delivered map[events.Group][]events.Event
	fail      map[events.Group]bool
}

func newCollectingDispatcher(failing ...events.Group) *collectingDispatcher {
	d := &collectingDispatcher{delivered: map[events.Group][]events.Event{}, fail: map[events.Group]bool{}}
	for _, g := range failing {
		d.fail[g] = true
	}
	return d
}

func (d *collectingDispatcher) Dispatch(_ context.Context, g events.Group, ev events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[g] {
		return errors.New("listener unavailable")
	}
	d.delivered[g] = append(d.delivered[g], ev)
	return nil
}

func storeEvents(t *testing.T, s deadletter.Store, g events.Group, n int) []deadletter.InsertionID {
	t.Helper()
	var ids []deadletter.InsertionID
	for i := range n {
		id, err := s.Store(context.Background(), g, events.Event{byte('0' + i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestGroupRedelivery_AlwaysFailingDispatcher(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	ids := storeEvents(t, store, "a", 2)

	m := task.NewManager()
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	id, err := m.Submit(NewGroupTask(store, newCollectingDispatcher("a"), "a"))
	require.NoError(t, err)
	d, err := m.Await(ctx, id, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, model.TaskStatusFailed, d.Status)
	info := d.AdditionalInformation.(*AdditionalInformation)
	assert.EqualValues(t, 0, info.SuccessfulRedeliveriesCount)
	assert.EqualValues(t, 2, info.FailedRedeliveriesCount)
	assert.Equal(t, events.Group("a"), info.Group)

	remaining, err := deadletter.CollectInsertionIDs(ctx, store, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, remaining)
}

func TestAllRedelivery_PartialFailure(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	storeEvents(t, store, "ok", 3)
	storeEvents(t, store, "broken", 1)
	dispatcher := newCollectingDispatcher("broken")

	p := &recordingProgress{}
	res, err := NewAllTask(store, dispatcher).Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, task.ResultPartial, res)

	info := p.info(t)
	assert.EqualValues(t, 3, info.SuccessfulRedeliveriesCount)
	assert.EqualValues(t, 1, info.FailedRedeliveriesCount)
	assert.Empty(t, info.Group)
	assert.Len(t, dispatcher.delivered["ok"], 3)

	groups, err := store.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []events.Group{"broken"}, groups)
}

func TestSingleRedelivery(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	ids := storeEvents(t, store, "a", 2)

	p := &recordingProgress{}
	res, err := NewSingleTask(store, newCollectingDispatcher(), "a", ids[0]).Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, task.ResultCompleted, res)

	info := p.info(t)
	assert.EqualValues(t, 1, info.SuccessfulRedeliveriesCount)
	assert.Equal(t, ids[0], info.InsertionID)

	remaining, err := deadletter.CollectInsertionIDs(ctx, store, "a")
	require.NoError(t, err)
	assert.Equal(t, ids[1:], remaining)
}

func TestSingleRedelivery_MissingEntryIsNoop(t *testing.T) {
	p := &recordingProgress{}
	res, err := NewSingleTask(deadletter.NewMemoryStore(), newCollectingDispatcher(), "a", deadletter.NewInsertionID()).
		Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, task.ResultCompleted, res)

	info := p.info(t)
	assert.Zero(t, info.SuccessfulRedeliveriesCount)
	assert.Zero(t, info.FailedRedeliveriesCount)
}

func TestRedelivery_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	storeEvents(t, store, "a", 2)

	// 每次投递时再写入一条新死信，新条目不属于本次运行
	var late []deadletter.InsertionID
	dispatcher := events.DispatcherFunc(func(ctx context.Context, g events.Group, _ events.Event) error {
		id, err := store.Store(ctx, g, events.Event("late"))
		late = append(late, id)
		return err
	})

	p := &recordingProgress{}
	res, err := NewGroupTask(store, dispatcher, "a").Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, task.ResultCompleted, res)
	assert.EqualValues(t, 2, p.info(t).SuccessfulRedeliveriesCount)

	remaining, err := deadletter.CollectInsertionIDs(ctx, store, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, late, remaining)
}

func TestRedelivery_StopsWhenCancelled(t *testing.T) {
	store := deadletter.NewMemoryStore()
	storeEvents(t, store, "a", 3)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := events.DispatcherFunc(func(context.Context, events.Group, events.Event) error {
		cancel()
		return nil
	})

	p := &recordingProgress{}
	_, err := NewGroupTask(store, dispatcher, "a").Run(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, p.info(t).SuccessfulRedeliveriesCount)
}

type failingRemoveStore struct {
	*deadletter.MemoryStore
}

func (failingRemoveStore) Remove(context.Context, events.Group, deadletter.InsertionID) error {
	return errors.New("store read-only")
}

func TestRedelivery_RemoveFailureCountsAsFailure(t *testing.T) {
	store := failingRemoveStore{deadletter.NewMemoryStore()}
	storeEvents(t, store, "a", 1)

	p := &recordingProgress{}
	res, err := NewGroupTask(store, newCollectingDispatcher(), "a").Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, task.ResultPartial, res)
	assert.EqualValues(t, 1, p.info(t).FailedRedeliveriesCount)
}
