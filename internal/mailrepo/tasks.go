package mailrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const (
	ReprocessAllTaskType = "reprocessingAllTask"
	ReprocessOneTaskType = "reprocessingOneTask"
	ClearTaskType        = "clearMailRepository"
)

// Target 重新处理的投递目标；Processor 为空时保留邮件原有状态
type Target struct {
	Queue     string
	Processor string
}

func (t Target) apply(m Mail) Mail {
	if t.Processor != "" {
		m.State = t.Processor
	}
	return m
}

// reprocess 投递成功后才从仓库移除
func reprocess(ctx context.Context, repo Repository, queue MailQueue, path Path, key Key, target Target) error {
	m, err := repo.Retrieve(ctx, path, key)
	if err != nil {
		return err
	}
	if err := queue.Enqueue(ctx, target.Queue, target.apply(m)); err != nil {
		return err
	}
	return repo.Remove(ctx, path, key)
}

// ReprocessAllTask 把仓库里的全部邮件重新投递
type ReprocessAllTask struct {
	repo   Repository
	queue  MailQueue
	Path   Path
	Target Target
}

func NewReprocessAllTask(repo Repository, queue MailQueue, path Path, target Target) *ReprocessAllTask {
	return &ReprocessAllTask{repo: repo, queue: queue, Path: path, Target: target}
}

func (*ReprocessAllTask) Type() string { return ReprocessAllTaskType }

func (t *ReprocessAllTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	initial, err := t.repo.Size(ctx, t.Path)
	if err != nil {
		return task.ResultPartial, err
	}
	info := ReprocessAllInformation{Path: t.Path, Target: t.Target, InitialCount: initial, RemainingCount: initial}
	publish := func() {
		snap := info
		progress.Publish(&snap)
	}
	publish()

	keys, err := t.repo.List(ctx, t.Path)
	if err != nil {
		return task.ResultPartial, err
	}

	var failed int64
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return task.ResultPartial, fmt.Errorf("reprocessing interrupted: %w", err)
		}
		err := reprocess(ctx, t.repo, t.queue, t.Path, key, t.Target)
		switch {
		case errors.Is(err, ErrMailNotFound):
			// 遍历期间被其他操作移走
		case err != nil:
			logger.Warn().Err(err).
				Str("repository", t.Path.String()).
				Str("mail_key", key.String()).
				Msg("邮件重新处理失败")
			failed++
		}
		if info.RemainingCount, err = t.repo.Size(ctx, t.Path); err != nil {
			return task.ResultPartial, err
		}
		publish()
	}
	return task.ResultOf(failed), nil
}

// ReprocessAllInformation 重新处理全部邮件的进度
type ReprocessAllInformation struct {
	Path           Path
	Target         Target
	InitialCount   int64
	RemainingCount int64
}

func (*ReprocessAllInformation) Type() string { return ReprocessAllTaskType }

// ReprocessOneTask 重新投递单封邮件；邮件不存在时任务失败
type ReprocessOneTask struct {
	repo   Repository
	queue  MailQueue
	Path   Path
	Key    Key
	Target Target
}

func NewReprocessOneTask(repo Repository, queue MailQueue, path Path, key Key, target Target) *ReprocessOneTask {
	return &ReprocessOneTask{repo: repo, queue: queue, Path: path, Key: key, Target: target}
}

func (*ReprocessOneTask) Type() string { return ReprocessOneTaskType }

func (t *ReprocessOneTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	progress.Publish(&ReprocessOneInformation{Path: t.Path, Key: t.Key, Target: t.Target})
	if err := reprocess(ctx, t.repo, t.queue, t.Path, t.Key, t.Target); err != nil {
		return task.ResultPartial, err
	}
	return task.ResultCompleted, nil
}

type ReprocessOneInformation struct {
	Path   Path
	Key    Key
	Target Target
}

func (*ReprocessOneInformation) Type() string { return ReprocessOneTaskType }

// ClearTask 删除仓库中的全部邮件
type ClearTask struct {
	repo Repository
	Path Path
}

func NewClearTask(repo Repository, path Path) *ClearTask {
	return &ClearTask{repo: repo, Path: path}
}

func (*ClearTask) Type() string { return ClearTaskType }

func (t *ClearTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	initial, err := t.repo.Size(ctx, t.Path)
	if err != nil {
		return task.ResultPartial, err
	}
	info := ClearInformation{Path: t.Path, InitialCount: initial, RemainingCount: initial}
	progress.Publish(&ClearInformation{Path: t.Path, InitialCount: initial, RemainingCount: initial})

	keys, err := t.repo.List(ctx, t.Path)
	if err != nil {
		return task.ResultPartial, err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return task.ResultPartial, fmt.Errorf("clear interrupted: %w", err)
		}
		if err := t.repo.Remove(ctx, t.Path, key); err != nil {
			return task.ResultPartial, fmt.Errorf("remove %s: %w", key, err)
		}
		info.RemainingCount--
		snap := info
		progress.Publish(&snap)
	}
	return task.ResultCompleted, nil
}

type ClearInformation struct {
	Path           Path
	InitialCount   int64
	RemainingCount int64
}

func (*ClearInformation) Type() string { return ClearTaskType }
