// Package migration 把数据库结构升级到指定版本的任务。
package migration

import (
	"context"
	"fmt"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const TaskType = "schemaMigration"

// Migrator postgres.Migrator 的子集
type Migrator interface {
	UpTo(ctx context.Context, version int64) error
	Version(ctx context.Context) (int64, error)
	LatestVersion() int64
}

// Task 执行迁移直到 ToVersion（含）；当前版本已不低于目标时直接完成
type Task struct {
	migrator  Migrator
	ToVersion int64
}

func NewTask(m Migrator, toVersion int64) *Task {
	return &Task{migrator: m, ToVersion: toVersion}
}

// ValidateVersion 目标版本需在 1 与已知最高版本之间
func ValidateVersion(m Migrator, v int64) error {
	if v < 1 {
		return fmt.Errorf("invalid schema version %d", v)
	}
	if latest := m.LatestVersion(); v > latest {
		return fmt.Errorf("schema version %d is above the latest known version %d", v, latest)
	}
	return nil
}

func (*Task) Type() string { return TaskType }

func (t *Task) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	progress.Publish(&AdditionalInformation{ToVersion: t.ToVersion})

	current, err := t.migrator.Version(ctx)
	if err != nil {
		return task.ResultPartial, fmt.Errorf("read schema version: %w", err)
	}
	if current >= t.ToVersion {
		logger.Info().Int64("current", current).Int64("to", t.ToVersion).Msg("数据库已是目标版本")
		return task.ResultCompleted, nil
	}
	if err := t.migrator.UpTo(ctx, t.ToVersion); err != nil {
		return task.ResultPartial, err
	}
	return task.ResultCompleted, nil
}

// AdditionalInformation 目标版本
type AdditionalInformation struct {
	ToVersion int64
}

func (*AdditionalInformation) Type() string { return TaskType }

type versionDTO struct {
	ToVersion int64 `json:"toVersion"`
}

// Register 登记迁移任务；反序列化时校验目标版本
func Register(tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry, m Migrator) error {
	err := serialization.RegisterDTO(tasks, TaskType,
		func(x task.Task) (versionDTO, error) {
			return versionDTO{ToVersion: x.(*Task).ToVersion}, nil
		},
		func(d versionDTO) (task.Task, error) {
			if err := ValidateVersion(m, d.ToVersion); err != nil {
				return nil, err
			}
			return NewTask(m, d.ToVersion), nil
		},
	)
	if err != nil {
		return err
	}
	return serialization.RegisterDTO(infos, TaskType,
		func(x task.AdditionalInformation) (versionDTO, error) {
			return versionDTO{ToVersion: x.(*AdditionalInformation).ToVersion}, nil
		},
		func(d versionDTO) (task.AdditionalInformation, error) {
			return &AdditionalInformation{ToVersion: d.ToVersion}, nil
		},
	)
}
