package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	asynqx "github.com/azhengyongqin/mail-taskhub/internal/queue"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

func TestAsynqDispatcher_Dispatch(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewAsynqDispatcher(enq, WithMaxRetry(1))

	require.NoError(t, d.Dispatch(context.Background(), "a", events.Event("payload")))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, asynqx.TypeEvent, enq.tasks[0].Type())
	assert.Equal(t, []byte("payload"), enq.tasks[0].Payload())
}

func TestAsynqDispatcher_EnqueueFailure(t *testing.T) {
	d := NewAsynqDispatcher(&fakeEnqueuer{err: errors.New("redis down")})
	err := d.Dispatch(context.Background(), "a", events.Event("payload"))
	assert.ErrorContains(t, err, "redis down")
}

func TestQueuesFor(t *testing.T) {
	assert.Equal(t, map[string]int{"events:a": 1, "events:b": 1}, QueuesFor([]events.Group{"a", "b"}))
}

func TestEventHandler_MissingQueue(t *testing.T) {
	bus := NewBus(nil)
	err := EventHandler(bus).ProcessTask(context.Background(), asynq.NewTask(asynqx.TypeEvent, []byte("x")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
