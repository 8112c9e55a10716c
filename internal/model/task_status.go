package model

// TaskStatus 任务生命周期状态（用于 API/PG/筛选）。
// 约定：
// - waiting: 已提交，等待空闲 worker
// - in-progress: worker 正在执行
// - completed: 全部成功
// - failed: 抛出错误、panic 或任务上报部分失败
// - cancelled: 请求取消且任务已配合退出
type TaskStatus string

const (
	TaskStatusWaiting    TaskStatus = "waiting"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusWaiting, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal 终态之后不允许任何状态迁移
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo 判断状态迁移是否合法（单调，不回退）
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusWaiting:
		return next == TaskStatusInProgress || next == TaskStatusCancelled
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusFailed || next == TaskStatusCancelled
	default:
		return false
	}
}

// ParseTaskStatus 解析外部输入的状态字符串
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(s)
	return st, st.Valid()
}
