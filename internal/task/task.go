package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/mail-taskhub/internal/model"
)

// ID 任务唯一标识（UUID 字符串）
type ID string

// NewID 生成新的任务 ID
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID 校验并规范化外部传入的任务 ID
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid task id %q: %w", s, err)
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }

// Result 任务自身上报的执行结果
type Result int

const (
	// ResultCompleted 全部成功
	ResultCompleted Result = iota
	// ResultPartial 部分条目失败，任务最终记为 failed
	ResultPartial
)

func (r Result) String() string {
	if r == ResultCompleted {
		return "completed"
	}
	return "partial"
}

// ResultOf 失败数为 0 时返回 ResultCompleted，否则 ResultPartial
func ResultOf(failures int64) Result {
	if failures == 0 {
		return ResultCompleted
	}
	return ResultPartial
}

// AdditionalInformation 任务进度快照，发布后不可变
type AdditionalInformation interface {
	Type() string
}

// Progress 任务发布进度快照的入口，只保留最近一次发布
type Progress interface {
	Publish(info AdditionalInformation)
}

// Task 由 Manager 调度执行的长任务。
//
// Run 需要在处理条目之间检查 ctx：Cancel 只会让 ctx 失效，不会强制中断；
// 返回包装了 context.Canceled 的错误表示任务已配合取消。
type Task interface {
	Type() string
	Run(ctx context.Context, progress Progress) (Result, error)
}

// Details 任务执行详情（TaskExecutionDetails）
type Details struct {
	ID                    ID
	Type                  string
	Status                model.TaskStatus
	SubmittedAt           time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
	FailedAt              *time.Time
	CancelledAt           *time.Time
	Error                 string
	AdditionalInformation AdditionalInformation
}

// Recorder 接收每一次成功的状态迁移（例如落库）
type Recorder interface {
	Record(ctx context.Context, t Task, d Details) error
}

// NopProgress 丢弃所有快照，便于在 Manager 之外直接运行任务
type NopProgress struct{}

func (NopProgress) Publish(AdditionalInformation) {}
