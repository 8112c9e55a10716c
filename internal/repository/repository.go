package repository

import (
	"context"

	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// TaskRepository 任务执行记录仓储
type TaskRepository interface {
	task.Recorder

	// Get 根据 task_id 获取记录，不存在时返回 ErrNotFound
	Get(ctx context.Context, taskID task.ID) (Record, error)

	// List 按提交时间倒序分页查询
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// Count 统计满足条件的记录数
	Count(ctx context.Context, filter ListFilter) (int, error)
}
