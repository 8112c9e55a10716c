package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/eventbus"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/mailrepo"
	"github.com/azhengyongqin/mail-taskhub/internal/reindex"
	"github.com/azhengyongqin/mail-taskhub/internal/search"
	"github.com/azhengyongqin/mail-taskhub/internal/vault"
)

func TestRegistries_AllFamilies(t *testing.T) {
	store := deadletter.NewMemoryStore()
	ids := &mailbox.NumericIDFactory{}
	repo := mailbox.NewMemoryRepository(ids)
	idx, err := search.NewMemIndexer()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	tasks, infos, err := Registries(Components{
		DeadLetters:      store,
		Dispatcher:       eventbus.NewBus(store),
		Mailboxes:        repo,
		MailboxIDs:       ids,
		Reindexer:        reindex.NewPerformer(repo, idx),
		Vault:            vault.NewMemoryVault(),
		Exporter:         vault.NewZipExporter(t.TempDir()),
		MailRepositories: mailrepo.NewMemoryRepository(),
		MailQueue:        mailrepo.NewAsynqMailQueue(nil),
	})
	require.NoError(t, err)

	want := []string{
		"ErrorRecoveryIndexation", "FullReIndexing", "MessageIdReIndexingTask",
		"clearMailRepository", "deletedMessages/export", "deletedMessages/restore",
		"eventDeadLettersRedeliverTask", "mailboxMerging", "mailboxReIndexing",
		"messageReIndexing", "reprocessingAllTask", "reprocessingOneTask", "userReIndexing",
	}
	assert.ElementsMatch(t, want, tasks.Types())
	assert.ElementsMatch(t, want, infos.Types())
	assert.NotContains(t, tasks.Types(), "schemaMigration")
}
