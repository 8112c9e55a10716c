package dto

import (
	"encoding/json"
	"time"

	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// TaskDetailsResponse 任务执行详情
type TaskDetailsResponse struct {
	Status                string          `json:"status" example:"completed"`
	TaskID                string          `json:"taskId" example:"550e8400-e29b-41d4-a716-446655440000"`
	Type                  string          `json:"type" example:"FullReIndexing"`
	AdditionalInformation json.RawMessage `json:"additionalInformation,omitempty"`
	SubmitDate            time.Time       `json:"submitDate"`
	StartedDate           *time.Time      `json:"startedDate,omitempty"`
	CompletedDate         *time.Time      `json:"completedDate,omitempty"`
	FailedDate            *time.Time      `json:"failedDate,omitempty"`
	CancelledDate         *time.Time      `json:"cancelledDate,omitempty"`
	Error                 string          `json:"error,omitempty"`
}

// NewTaskDetailsResponse info 为快照序列化后的 JSON，可以为空
func NewTaskDetailsResponse(d task.Details, info json.RawMessage) TaskDetailsResponse {
	return TaskDetailsResponse{
		Status:                string(d.Status),
		TaskID:                d.ID.String(),
		Type:                  d.Type,
		AdditionalInformation: info,
		SubmitDate:            d.SubmittedAt,
		StartedDate:           d.StartedAt,
		CompletedDate:         d.CompletedAt,
		FailedDate:            d.FailedAt,
		CancelledDate:         d.CancelledAt,
		Error:                 d.Error,
	}
}

// TaskListRequest 任务列表查询请求
type TaskListRequest struct {
	Status string `form:"status" example:"failed"`
	Type   string `form:"type" example:"FullReIndexing"`
	Limit  int    `form:"limit" example:"20"`
	Offset int    `form:"offset" example:"0"`
}

// AwaitRequest 等待任务结束
type AwaitRequest struct {
	Timeout string `form:"timeout" example:"30s"`
}
