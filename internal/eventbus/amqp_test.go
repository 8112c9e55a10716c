package eventbus

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	declareErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if f.declareErr != nil {
		return amqp.Queue{}, f.declareErr
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithDeferredConfirmWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil, nil
}

func (f *fakeChannel) ConsumeWithContext(context.Context, string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	ch := make(chan amqp.Delivery)
	close(ch)
	return ch, nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPDispatcher_DeclaresOncePerGroup(t *testing.T) {
	ch := &fakeChannel{}
	d := newAMQPDispatcher(ch)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, "a", events.Event("1")))
	require.NoError(t, d.Dispatch(ctx, "a", events.Event("2")))
	require.NoError(t, d.Dispatch(ctx, "b", events.Event("3")))

	assert.Equal(t, []string{"mailtaskhub.events.a", "mailtaskhub.events.b"}, ch.declared)
	assert.Equal(t, []string{"mailtaskhub.events.a", "mailtaskhub.events.a", "mailtaskhub.events.b"}, ch.keys)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, []byte("1"), ch.published[0].Body)
}

func TestAMQPDispatcher_Failures(t *testing.T) {
	ctx := context.Background()

	d := newAMQPDispatcher(&fakeChannel{declareErr: errors.New("access refused")})
	assert.ErrorContains(t, d.Dispatch(ctx, "a", events.Event("1")), "access refused")

	d = newAMQPDispatcher(&fakeChannel{publishErr: errors.New("channel closed")})
	assert.ErrorContains(t, d.Dispatch(ctx, "a", events.Event("1")), "channel closed")
}

func TestAMQPDispatcher_ConsumeAndClose(t *testing.T) {
	ch := &fakeChannel{}
	d := newAMQPDispatcher(ch)
	require.NoError(t, d.Consume(context.Background(), "a", NewBus(nil)))
	assert.Equal(t, []string{"mailtaskhub.events.a"}, ch.declared)

	assert.False(t, d.Healthy())
	require.NoError(t, d.Close())
	assert.True(t, ch.closed)
}
