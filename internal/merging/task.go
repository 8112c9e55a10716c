// Package merging 把一个邮箱的全部邮件合并到另一个邮箱。
package merging

import (
	"context"
	"fmt"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const TaskType = "mailboxMerging"

// Task 移动 OldMailboxID 中的全部邮件到 NewMailboxID；全部成功后删除旧邮箱
type Task struct {
	repo         mailbox.Repository
	OldMailboxID mailbox.ID
	NewMailboxID mailbox.ID
}

func NewTask(repo mailbox.Repository, oldID, newID mailbox.ID) *Task {
	return &Task{repo: repo, OldMailboxID: oldID, NewMailboxID: newID}
}

func (*Task) Type() string { return TaskType }

func (t *Task) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := AdditionalInformation{OldMailboxID: t.OldMailboxID, NewMailboxID: t.NewMailboxID}
	publish := func() {
		snap := info
		progress.Publish(&snap)
	}
	publish()

	if t.OldMailboxID == t.NewMailboxID {
		return task.ResultPartial, fmt.Errorf("cannot merge mailbox %s into itself", t.OldMailboxID)
	}
	if _, err := t.repo.GetMailbox(ctx, t.NewMailboxID); err != nil {
		return task.ResultPartial, err
	}
	uids, err := t.repo.ListUIDs(ctx, t.OldMailboxID)
	if err != nil {
		return task.ResultPartial, err
	}
	info.TotalMessageCount = int64(len(uids))
	publish()

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return task.ResultPartial, fmt.Errorf("merge interrupted: %w", err)
		}
		if _, err := t.repo.Move(ctx, t.OldMailboxID, uid, t.NewMailboxID); err != nil {
			logger.Warn().Err(err).
				Str("mailbox_id", t.OldMailboxID.String()).
				Int64("uid", int64(uid)).
				Msg("移动邮件失败")
			info.MessageFailedCount++
		} else {
			info.MessageMovedCount++
		}
		publish()
	}

	if info.MessageFailedCount > 0 {
		return task.ResultPartial, nil
	}
	if err := t.repo.DeleteMailbox(ctx, t.OldMailboxID); err != nil {
		return task.ResultPartial, fmt.Errorf("delete merged mailbox: %w", err)
	}
	return task.ResultCompleted, nil
}

// AdditionalInformation 合并进度
type AdditionalInformation struct {
	OldMailboxID       mailbox.ID
	NewMailboxID       mailbox.ID
	TotalMessageCount  int64
	MessageMovedCount  int64
	MessageFailedCount int64
}

func (*AdditionalInformation) Type() string { return TaskType }

type taskDTO struct {
	OldMailboxID string `json:"oldMailboxId"`
	NewMailboxID string `json:"newMailboxId"`
}

type additionalInformationDTO struct {
	OldMailboxID       string `json:"oldMailboxId"`
	NewMailboxID       string `json:"newMailboxId"`
	TotalMessageCount  int64  `json:"totalMessageCount"`
	MessageMovedCount  int64  `json:"messageMovedCount"`
	MessageFailedCount int64  `json:"messageFailedCount"`
}

func parseIDs(ids mailbox.IDFactory, oldID, newID string) (mailbox.ID, mailbox.ID, error) {
	o, err := ids.FromString(oldID)
	if err != nil {
		return "", "", err
	}
	n, err := ids.FromString(newID)
	if err != nil {
		return "", "", err
	}
	return o, n, nil
}

// Register 向两个注册表登记合并任务及其快照
func Register(tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry, repo mailbox.Repository, ids mailbox.IDFactory) error {
	err := serialization.RegisterDTO(tasks, TaskType,
		func(v task.Task) (taskDTO, error) {
			t := v.(*Task)
			return taskDTO{OldMailboxID: t.OldMailboxID.String(), NewMailboxID: t.NewMailboxID.String()}, nil
		},
		func(d taskDTO) (task.Task, error) {
			o, n, err := parseIDs(ids, d.OldMailboxID, d.NewMailboxID)
			if err != nil {
				return nil, err
			}
			return NewTask(repo, o, n), nil
		},
	)
	if err != nil {
		return err
	}

	return serialization.RegisterDTO(infos, TaskType,
		func(v task.AdditionalInformation) (additionalInformationDTO, error) {
			a := v.(*AdditionalInformation)
			return additionalInformationDTO{
				OldMailboxID:       a.OldMailboxID.String(),
				NewMailboxID:       a.NewMailboxID.String(),
				TotalMessageCount:  a.TotalMessageCount,
				MessageMovedCount:  a.MessageMovedCount,
				MessageFailedCount: a.MessageFailedCount,
			}, nil
		},
		func(d additionalInformationDTO) (task.AdditionalInformation, error) {
			o, n, err := parseIDs(ids, d.OldMailboxID, d.NewMailboxID)
			if err != nil {
				return nil, err
			}
			return &AdditionalInformation{
				OldMailboxID:       o,
				NewMailboxID:       n,
				TotalMessageCount:  d.TotalMessageCount,
				MessageMovedCount:  d.MessageMovedCount,
				MessageFailedCount: d.MessageFailedCount,
			}, nil
		},
	)
}
