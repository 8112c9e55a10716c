// Package reindex 重建邮件全文索引的任务族。
package reindex

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
	"github.com/azhengyongqin/mail-taskhub/internal/search"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// publishEvery 每处理多少封邮件发布一次快照
const publishEvery = 100

// Performer 执行重建索引：读取邮件并写入索引
type Performer struct {
	repo    mailbox.Repository
	indexer search.Indexer
}

func NewPerformer(repo mailbox.Repository, indexer search.Indexer) *Performer {
	return &Performer{repo: repo, indexer: indexer}
}

// reindexMessage 单封邮件的处理结果只有成功或失败
func (p *Performer) reindexMessage(ctx context.Context, t Target) error {
	msg, err := p.repo.GetMessage(ctx, t.MailboxID, t.UID)
	if err != nil {
		return err
	}
	return p.indexer.Index(ctx, msg)
}

// run 依次处理 targets，单封失败只记录不终止；在邮件之间检查取消
func (p *Performer) run(ctx context.Context, progress task.Progress, info AdditionalInformation, targets iter.Seq2[Target, error]) (task.Result, error) {
	failures := newFailureBuilder()
	publish := func() {
		snap := info
		snap.Failures = failures.build()
		progress.Publish(&snap)
	}
	publish()

	processed := 0
	for target, err := range targets {
		if err != nil {
			publish()
			return task.ResultPartial, err
		}
		if err := ctx.Err(); err != nil {
			publish()
			return task.ResultPartial, fmt.Errorf("reindexing interrupted: %w", err)
		}

		if err := p.reindexMessage(ctx, target); err != nil {
			logger.Warn().Err(err).
				Str("mailbox_id", target.MailboxID.String()).
				Int64("uid", int64(target.UID)).
				Msg("邮件重建索引失败")
			failures.add(target)
			info.FailedReprocessedMailCount++
			metrics.RecordReindexedMessage(false)
		} else {
			info.SuccessfullyReprocessedMailCount++
			metrics.RecordReindexedMessage(true)
		}

		processed++
		if processed%publishEvery == 0 {
			publish()
		}
	}
	publish()

	return task.ResultOf(info.FailedReprocessedMailCount), nil
}

// fixed 固定的目标列表
func fixed(targets []Target) iter.Seq2[Target, error] {
	return func(yield func(Target, error) bool) {
		for _, t := range targets {
			if !yield(t, nil) {
				return
			}
		}
	}
}

// mailboxTargets 依次展开邮箱内的邮件；skipMissing 为 true 时跳过处理期间被删除的邮箱
func (p *Performer) mailboxTargets(ctx context.Context, mailboxes func(context.Context) ([]mailbox.Mailbox, error), skipMissing bool) iter.Seq2[Target, error] {
	return func(yield func(Target, error) bool) {
		mbs, err := mailboxes(ctx)
		if err != nil {
			yield(Target{}, fmt.Errorf("list mailboxes: %w", err))
			return
		}
		for _, mb := range mbs {
			uids, err := p.repo.ListUIDs(ctx, mb.ID)
			if err != nil {
				if skipMissing && errors.Is(err, mailbox.ErrMailboxNotFound) {
					continue
				}
				yield(Target{}, fmt.Errorf("list messages of %s: %w", mb.ID, err))
				return
			}
			for _, uid := range uids {
				if !yield(Target{MailboxID: mb.ID, UID: uid}, nil) {
					return
				}
			}
		}
	}
}

func (p *Performer) reindexMailbox(ctx context.Context, progress task.Progress, info AdditionalInformation, id mailbox.ID) (task.Result, error) {
	one := func(ctx context.Context) ([]mailbox.Mailbox, error) {
		mb, err := p.repo.GetMailbox(ctx, id)
		if err != nil {
			return nil, err
		}
		return []mailbox.Mailbox{mb}, nil
	}
	return p.run(ctx, progress, info, p.mailboxTargets(ctx, one, false))
}

func (p *Performer) reindexUser(ctx context.Context, progress task.Progress, info AdditionalInformation, user mailbox.Username) (task.Result, error) {
	list := func(ctx context.Context) ([]mailbox.Mailbox, error) {
		return p.repo.ListUserMailboxes(ctx, user)
	}
	return p.run(ctx, progress, info, p.mailboxTargets(ctx, list, true))
}

func (p *Performer) reindexAll(ctx context.Context, progress task.Progress, info AdditionalInformation) (task.Result, error) {
	return p.run(ctx, progress, info, p.mailboxTargets(ctx, p.repo.ListMailboxes, true))
}

func (p *Performer) reindexMessageID(ctx context.Context, progress task.Progress, info AdditionalInformation, id mailbox.MessageID) (task.Result, error) {
	msgs, err := p.repo.FindByMessageID(ctx, id)
	if err != nil {
		return task.ResultPartial, fmt.Errorf("find message %s: %w", id, err)
	}
	targets := make([]Target, 0, len(msgs))
	for _, m := range msgs {
		targets = append(targets, Target{MailboxID: m.MailboxID, UID: m.UID})
	}
	return p.run(ctx, progress, info, fixed(targets))
}
