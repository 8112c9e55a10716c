// Package app 汇总各任务族，构造两个序列化注册表。
package app

import (
	"errors"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/mailrepo"
	"github.com/azhengyongqin/mail-taskhub/internal/merging"
	"github.com/azhengyongqin/mail-taskhub/internal/migration"
	"github.com/azhengyongqin/mail-taskhub/internal/redeliver"
	"github.com/azhengyongqin/mail-taskhub/internal/reindex"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
	"github.com/azhengyongqin/mail-taskhub/internal/vault"
)

// Components 任务反序列化时需要注入的协作者
type Components struct {
	DeadLetters deadletter.Store
	Dispatcher  events.Dispatcher

	Mailboxes  mailbox.Repository
	MailboxIDs mailbox.IDFactory
	Reindexer  *reindex.Performer

	Vault    vault.Vault
	Exporter vault.Exporter

	MailRepositories mailrepo.Repository
	MailQueue        mailrepo.MailQueue

	// 为空时不登记 schemaMigration
	Migrator migration.Migrator
}

// Registries 登记全部任务族；任何一个类型冲突都会返回错误
func Registries(c Components) (*task.TaskRegistry, *task.AdditionalInformationRegistry, error) {
	tasks := task.NewTaskRegistry()
	infos := task.NewAdditionalInformationRegistry()

	errs := []error{
		redeliver.Register(tasks, infos, c.DeadLetters, c.Dispatcher),
		reindex.Register(tasks, infos, c.Reindexer, c.MailboxIDs),
		merging.Register(tasks, infos, c.Mailboxes, c.MailboxIDs),
		vault.Register(tasks, infos, c.Vault, c.Mailboxes, c.Exporter),
		mailrepo.Register(tasks, infos, c.MailRepositories, c.MailQueue),
	}
	if c.Migrator != nil {
		errs = append(errs, migration.Register(tasks, infos, c.Migrator))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}
	return tasks, infos, nil
}
