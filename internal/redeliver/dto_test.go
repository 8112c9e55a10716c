package redeliver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

func newRegistries(t *testing.T) (*task.TaskRegistry, *task.AdditionalInformationRegistry) {
	t.Helper()
	tasks := task.NewTaskRegistry()
	infos := task.NewAdditionalInformationRegistry()
	require.NoError(t, Register(tasks, infos, deadletter.NewMemoryStore(), newCollectingDispatcher()))
	return tasks, infos
}

func TestTaskDTO_RoundTrip(t *testing.T) {
	tasks, _ := newRegistries(t)

	payloads := []string{
		`{"type":"eventDeadLettersRedeliverTask"}`,
		`{"type":"eventDeadLettersRedeliverTask","group":"mailbox-listener"}`,
		`{"type":"eventDeadLettersRedeliverTask","group":"mailbox-listener","insertionId":"6e0dd59d-660e-4d9b-b22f-0354479f47b4"}`,
	}
	for _, p := range payloads {
		v, err := tasks.Deserialize([]byte(p))
		require.NoError(t, err, p)
		out, err := tasks.Serialize(v)
		require.NoError(t, err)
		assert.JSONEq(t, p, string(out))
	}
}

func TestTaskDTO_Scopes(t *testing.T) {
	tasks, _ := newRegistries(t)

	v, err := tasks.Deserialize([]byte(`{"type":"eventDeadLettersRedeliverTask","group":"g"}`))
	require.NoError(t, err)
	rt := v.(*Task)
	assert.Equal(t, ScopeGroup, rt.Scope())
	assert.Equal(t, events.Group("g"), rt.Group())
}

func TestTaskDTO_Invalid(t *testing.T) {
	tasks, _ := newRegistries(t)

	payloads := []string{
		`{"type":"eventDeadLettersRedeliverTask","insertionId":"6e0dd59d-660e-4d9b-b22f-0354479f47b4"}`,
		`{"type":"eventDeadLettersRedeliverTask","group":"a","insertionId":"nope"}`,
		`{"type":"eventDeadLettersRedeliverTask","group":"bad group"}`,
	}
	for _, p := range payloads {
		_, err := tasks.Deserialize([]byte(p))
		assert.True(t, serialization.IsDeserialization(err), p)
	}
}

func TestAdditionalInformationDTO_RoundTrip(t *testing.T) {
	_, infos := newRegistries(t)

	payloads := []string{
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":3,"failedRedeliveriesCount":1}`,
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":0,"failedRedeliveriesCount":2,"group":"a"}`,
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":1,"failedRedeliveriesCount":0,"group":"a","insertionId":"6e0dd59d-660e-4d9b-b22f-0354479f47b4"}`,
	}
	for _, p := range payloads {
		v, err := infos.Deserialize([]byte(p))
		require.NoError(t, err, p)
		out, err := infos.Serialize(v)
		require.NoError(t, err)
		assert.JSONEq(t, p, string(out))
	}
}

func TestAdditionalInformationDTO_Invalid(t *testing.T) {
	_, infos := newRegistries(t)

	payloads := []string{
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":0,"failedRedeliveriesCount":0,"insertionId":"6e0dd59d-660e-4d9b-b22f-0354479f47b4"}`,
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":0,"failedRedeliveriesCount":0,"group":"a","insertionId":"nope"}`,
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":0,"failedRedeliveriesCount":0,"group":"bad group"}`,
		`{"type":"eventDeadLettersRedeliverTask","successfulRedeliveriesCount":-1,"failedRedeliveriesCount":0}`,
	}
	for _, p := range payloads {
		_, err := infos.Deserialize([]byte(p))
		assert.True(t, serialization.IsDeserialization(err), p)
	}
}
