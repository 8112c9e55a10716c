package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

func newRegistries(t *testing.T) (*task.TaskRegistry, *task.AdditionalInformationRegistry) {
	t.Helper()
	tasks := task.NewTaskRegistry()
	infos := task.NewAdditionalInformationRegistry()
	repo := mailbox.NewMemoryRepository(&mailbox.NumericIDFactory{})
	require.NoError(t, Register(tasks, infos, NewMemoryVault(), repo, NewZipExporter(t.TempDir())))
	return tasks, infos
}

const attachmentQuery = `{"combinator":"and","criteria":[{"fieldName":"hasAttachment","operator":"equals","value":"true"}]}`

func TestTaskDTO_RoundTrip(t *testing.T) {
	tasks, _ := newRegistries(t)

	payloads := []string{
		`{"type":"deletedMessages/restore","userToRestore":"james","query":` + attachmentQuery + `}`,
		`{"type":"deletedMessages/restore","userToRestore":"james","query":{"combinator":"and","criteria":[]}}`,
		`{"type":"deletedMessages/export","userExportFrom":"james","exportQuery":` + attachmentQuery + `,"exportTo":"james@apache.org"}`,
	}
	for _, p := range payloads {
		v, err := tasks.Deserialize([]byte(p))
		require.NoError(t, err, p)
		out, err := tasks.Serialize(v)
		require.NoError(t, err)
		assert.JSONEq(t, p, string(out))
	}
}

func TestInformationDTO_RoundTrip(t *testing.T) {
	_, infos := newRegistries(t)

	payloads := []string{
		`{"type":"deletedMessages/restore","user":"james","successfulRestoreCount":42,"errorRestoreCount":10}`,
		`{"type":"deletedMessages/export","exportTo":"james@apache.org","userExportFrom":"james","totalExportedMessages":42}`,
	}
	for _, p := range payloads {
		v, err := infos.Deserialize([]byte(p))
		require.NoError(t, err, p)
		out, err := infos.Serialize(v)
		require.NoError(t, err)
		assert.JSONEq(t, p, string(out))
	}
}

func TestDTO_Invalid(t *testing.T) {
	tasks, infos := newRegistries(t)

	badTasks := []string{
		`{"type":"deletedMessages/export","userExportFrom":"james","exportQuery":` + attachmentQuery + `,"exportTo":"invalid"}`,
		`{"type":"deletedMessages/restore","userToRestore":"","query":` + attachmentQuery + `}`,
		`{"type":"deletedMessages/restore","userToRestore":"james","query":{"combinator":"or","criteria":[]}}`,
		`{"type":"deletedMessages/restore","userToRestore":"james","query":{"criteria":[{"fieldName":"size","operator":"equals","value":"1"}]}}`,
	}
	for _, p := range badTasks {
		_, err := tasks.Deserialize([]byte(p))
		assert.True(t, serialization.IsDeserialization(err), p)
	}

	_, err := infos.Deserialize([]byte(`{"type":"deletedMessages/export","exportTo":"invalid","userExportFrom":"james","totalExportedMessages":1}`))
	assert.True(t, serialization.IsDeserialization(err))
}
