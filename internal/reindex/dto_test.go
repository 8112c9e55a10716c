package reindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

func newRegistries(t *testing.T) (*task.TaskRegistry, *task.AdditionalInformationRegistry, *Performer) {
	t.Helper()
	f := newFixture(t)
	tasks := task.NewTaskRegistry()
	infos := task.NewAdditionalInformationRegistry()
	require.NoError(t, Register(tasks, infos, f.perf, &mailbox.NumericIDFactory{}))
	return tasks, infos, f.perf
}

func TestTaskDTO_RoundTrip(t *testing.T) {
	tasks, _, _ := newRegistries(t)

	payloads := []string{
		`{"type":"messageReIndexing","mailboxId":"1","uid":10}`,
		`{"type":"mailboxReIndexing","mailboxId":"1"}`,
		`{"type":"userReIndexing","username":"bob@example.com"}`,
		`{"type":"FullReIndexing"}`,
		`{"type":"ErrorRecoveryIndexation","previousFailures":[{"mailboxId":"1","uids":[10,11]},{"mailboxId":"2","uids":[3]}]}`,
		`{"type":"MessageIdReIndexingTask","messageId":"6e0dd59d-660e-4d9b-b22f-0354479f47b4"}`,
	}
	for _, p := range payloads {
		v, err := tasks.Deserialize([]byte(p))
		require.NoError(t, err, p)
		out, err := tasks.Serialize(v)
		require.NoError(t, err)
		assert.JSONEq(t, p, string(out))
	}
}

func TestTaskDTO_InvalidIdentifiers(t *testing.T) {
	tasks, _, _ := newRegistries(t)

	payloads := []string{
		`{"type":"messageReIndexing","mailboxId":"abc","uid":10}`,
		`{"type":"messageReIndexing","mailboxId":"1","uid":0}`,
		`{"type":"mailboxReIndexing","mailboxId":"x"}`,
		`{"type":"userReIndexing","username":""}`,
		`{"type":"ErrorRecoveryIndexation","previousFailures":[{"mailboxId":"bad","uids":[1]}]}`,
		`{"type":"MessageIdReIndexingTask","messageId":"42"}`,
	}
	for _, p := range payloads {
		_, err := tasks.Deserialize([]byte(p))
		assert.True(t, serialization.IsDeserialization(err), p)
	}
}

func TestErrorRecoveryDTO_SingleFailure(t *testing.T) {
	tasks, _, _ := newRegistries(t)

	v, err := tasks.Deserialize([]byte(`{"type":"ErrorRecoveryIndexation","previousFailures":[{"mailboxId":"1","uids":[10]}]}`))
	require.NoError(t, err)
	assert.Equal(t, []Target{{MailboxID: "1", UID: 10}}, v.(*ErrorRecoveryTask).Targets())
}

func TestAdditionalInformationDTO_RoundTrip(t *testing.T) {
	_, infos, _ := newRegistries(t)

	payloads := []string{
		`{"type":"messageReIndexing","mailboxId":"1","uid":10,"successfullyReprocessedMailCount":1,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"mailboxReIndexing","mailboxId":"1","successfullyReprocessedMailCount":5,"failedReprocessedMailCount":1,"failures":[{"mailboxId":"1","uids":[10]}]}`,
		`{"type":"userReIndexing","user":"bob","successfullyReprocessedMailCount":0,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"FullReIndexing","successfullyReprocessedMailCount":3,"failedReprocessedMailCount":2,"failures":[{"mailboxId":"1","uids":[1,2]}]}`,
		`{"type":"ErrorRecoveryIndexation","successfullyReprocessedMailCount":0,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"MessageIdReIndexingTask","messageId":"6e0dd59d-660e-4d9b-b22f-0354479f47b4","successfullyReprocessedMailCount":2,"failedReprocessedMailCount":0,"failures":[]}`,
	}
	for _, p := range payloads {
		v, err := infos.Deserialize([]byte(p))
		require.NoError(t, err, p)
		out, err := infos.Serialize(v)
		require.NoError(t, err)
		assert.JSONEq(t, p, string(out))
	}
}

func TestAdditionalInformationDTO_EmptyFailuresSerializeAsList(t *testing.T) {
	_, infos, _ := newRegistries(t)

	out, err := infos.Serialize(&AdditionalInformation{typ: FullTaskType})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FullReIndexing","successfullyReprocessedMailCount":0,"failedReprocessedMailCount":0,"failures":[]}`, string(out))
}

func TestAdditionalInformationDTO_FeedsErrorRecovery(t *testing.T) {
	_, infos, perf := newRegistries(t)

	v, err := infos.Deserialize([]byte(`{"type":"userReIndexing","user":"bob","successfullyReprocessedMailCount":4,"failedReprocessedMailCount":1,"failures":[{"mailboxId":"1","uids":[10]}]}`))
	require.NoError(t, err)
	failures, ok := FailuresOf(v)
	require.True(t, ok)
	assert.Len(t, NewErrorRecoveryTask(perf, failures).Targets(), 1)
}

func TestAdditionalInformationDTO_InvalidIdentifiers(t *testing.T) {
	_, infos, _ := newRegistries(t)

	payloads := []string{
		`{"type":"messageReIndexing","mailboxId":"1","uid":0,"successfullyReprocessedMailCount":1,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"messageReIndexing","mailboxId":"1","uid":-3,"successfullyReprocessedMailCount":1,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"messageReIndexing","mailboxId":"abc","uid":10,"successfullyReprocessedMailCount":1,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"mailboxReIndexing","mailboxId":"1","successfullyReprocessedMailCount":0,"failedReprocessedMailCount":1,"failures":[{"mailboxId":"1","uids":[0]}]}`,
		`{"type":"userReIndexing","user":"","successfullyReprocessedMailCount":0,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"FullReIndexing","successfullyReprocessedMailCount":-1,"failedReprocessedMailCount":0,"failures":[]}`,
		`{"type":"MessageIdReIndexingTask","messageId":"42","successfullyReprocessedMailCount":0,"failedReprocessedMailCount":0,"failures":[]}`,
	}
	for _, p := range payloads {
		_, err := infos.Deserialize([]byte(p))
		assert.True(t, serialization.IsDeserialization(err), p)
	}
}
