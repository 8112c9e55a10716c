package vault

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const (
	RestoreTaskType = "deletedMessages/restore"
	ExportTaskType  = "deletedMessages/export"
)

// RestoreTask 把匹配 Query 的已删除邮件恢复到用户的 Restored-Messages 邮箱
type RestoreTask struct {
	vault Vault
	repo  mailbox.Repository
	User  mailbox.Username
	Query Query
}

func NewRestoreTask(v Vault, repo mailbox.Repository, user mailbox.Username, q Query) *RestoreTask {
	return &RestoreTask{vault: v, repo: repo, User: user, Query: q}
}

func (*RestoreTask) Type() string { return RestoreTaskType }

func (t *RestoreTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := RestoreInformation{User: t.User}
	publish := func() {
		snap := info
		progress.Publish(&snap)
	}
	publish()

	target, err := t.restoreMailbox(ctx)
	if err != nil {
		return task.ResultPartial, err
	}
	found, err := t.vault.Search(ctx, t.User, t.Query)
	if err != nil {
		return task.ResultPartial, err
	}

	for _, m := range found {
		if err := ctx.Err(); err != nil {
			return task.ResultPartial, fmt.Errorf("restore interrupted: %w", err)
		}
		msg := m.Message
		msg.DeletedAt = nil
		if _, err := t.repo.Append(ctx, target.ID, msg); err != nil {
			logger.Warn().Err(err).
				Str("user", t.User.String()).
				Str("message_id", m.MessageID.String()).
				Msg("恢复邮件失败")
			info.ErrorRestoreCount++
		} else {
			info.SuccessfulRestoreCount++
		}
		publish()
	}
	return task.ResultOf(info.ErrorRestoreCount), nil
}

func (t *RestoreTask) restoreMailbox(ctx context.Context) (mailbox.Mailbox, error) {
	mbx, err := t.repo.FindMailbox(ctx, t.User, RestoreMailboxName)
	if err == nil {
		return mbx, nil
	}
	if !errors.Is(err, mailbox.ErrMailboxNotFound) {
		return mailbox.Mailbox{}, err
	}
	mbx, err = t.repo.CreateMailbox(ctx, t.User, RestoreMailboxName)
	if errors.Is(err, mailbox.ErrMailboxExists) {
		return t.repo.FindMailbox(ctx, t.User, RestoreMailboxName)
	}
	return mbx, err
}

// RestoreInformation 恢复进度
type RestoreInformation struct {
	User                   mailbox.Username
	SuccessfulRestoreCount int64
	ErrorRestoreCount      int64
}

func (*RestoreInformation) Type() string { return RestoreTaskType }

// ExportTask 把匹配 Query 的已删除邮件导出给 ExportTo
type ExportTask struct {
	vault    Vault
	exporter Exporter
	User     mailbox.Username
	Query    Query
	ExportTo *mail.Address
}

func NewExportTask(v Vault, exporter Exporter, user mailbox.Username, q Query, exportTo *mail.Address) *ExportTask {
	return &ExportTask{vault: v, exporter: exporter, User: user, Query: q, ExportTo: exportTo}
}

func (*ExportTask) Type() string { return ExportTaskType }

func (t *ExportTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := ExportInformation{User: t.User, ExportTo: t.ExportTo}
	progress.Publish(&ExportInformation{User: t.User, ExportTo: t.ExportTo})

	found, err := t.vault.Search(ctx, t.User, t.Query)
	if err != nil {
		return task.ResultPartial, err
	}
	location, err := t.exporter.Export(ctx, t.User, t.ExportTo, found)
	if err != nil {
		return task.ResultPartial, err
	}
	info.TotalExportedMessages = int64(len(found))
	progress.Publish(&info)

	logger.Info().
		Str("user", t.User.String()).
		Str("export_to", t.ExportTo.Address).
		Str("location", location).
		Int("count", len(found)).
		Msg("已删除邮件导出完成")
	return task.ResultCompleted, nil
}

// ExportInformation 导出结果
type ExportInformation struct {
	User                  mailbox.Username
	ExportTo              *mail.Address
	TotalExportedMessages int64
}

func (*ExportInformation) Type() string { return ExportTaskType }
