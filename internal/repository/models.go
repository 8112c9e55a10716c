package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/azhengyongqin/mail-taskhub/internal/model"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

var ErrNotFound = errors.New("task record not found")

// Record task_execution 表中的一行；Task 与 AdditionalInformation 为带 type 字段的 JSON
type Record struct {
	TaskID                string           `json:"task_id"`
	Type                  string           `json:"type"`
	Status                model.TaskStatus `json:"status"`
	Task                  json.RawMessage  `json:"task,omitempty"`
	AdditionalInformation json.RawMessage  `json:"additional_information,omitempty"`
	Error                 string           `json:"error,omitempty"`
	SubmittedAt           time.Time        `json:"submitted_at"`
	StartedAt             *time.Time       `json:"started_at,omitempty"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty"`
	FailedAt              *time.Time       `json:"failed_at,omitempty"`
	CancelledAt           *time.Time       `json:"cancelled_at,omitempty"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Decode 只依赖快照注册表重建执行详情，无需任务本身可被构造
func (r Record) Decode(infos *task.AdditionalInformationRegistry) (task.Details, error) {
	id, err := task.ParseID(r.TaskID)
	if err != nil {
		return task.Details{}, err
	}
	d := task.Details{
		ID:          id,
		Type:        r.Type,
		Status:      r.Status,
		SubmittedAt: r.SubmittedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		FailedAt:    r.FailedAt,
		CancelledAt: r.CancelledAt,
		Error:       r.Error,
	}
	if len(r.AdditionalInformation) > 0 && string(r.AdditionalInformation) != "null" {
		info, err := infos.Deserialize(r.AdditionalInformation)
		if err != nil {
			return d, fmt.Errorf("decode additional information of %s: %w", r.TaskID, err)
		}
		d.AdditionalInformation = info
	}
	return d, nil
}

// ListFilter 列表过滤条件
type ListFilter struct {
	Status model.TaskStatus
	Type   string
	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
