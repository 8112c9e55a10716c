package redeliver

import (
	"errors"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

type taskDTO struct {
	Group       string `json:"group,omitempty"`
	InsertionID string `json:"insertionId,omitempty"`
}

type additionalInformationDTO struct {
	SuccessfulRedeliveriesCount int64  `json:"successfulRedeliveriesCount"`
	FailedRedeliveriesCount     int64  `json:"failedRedeliveriesCount"`
	Group                       string `json:"group,omitempty"`
	InsertionID                 string `json:"insertionId,omitempty"`
}

// Register 向两个注册表登记重投任务及其快照
func Register(tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry, store deadletter.Store, dispatcher events.Dispatcher) error {
	err := serialization.RegisterDTO(tasks, TaskType,
		func(v task.Task) (taskDTO, error) {
			t := v.(*Task)
			return taskDTO{Group: t.group.String(), InsertionID: t.insertionID.String()}, nil
		},
		func(dto taskDTO) (task.Task, error) {
			return fromTaskDTO(dto, store, dispatcher)
		},
	)
	if err != nil {
		return err
	}

	return serialization.RegisterDTO(infos, TaskType,
		func(v task.AdditionalInformation) (additionalInformationDTO, error) {
			a := v.(*AdditionalInformation)
			return additionalInformationDTO{
				SuccessfulRedeliveriesCount: a.SuccessfulRedeliveriesCount,
				FailedRedeliveriesCount:     a.FailedRedeliveriesCount,
				Group:                       a.Group.String(),
				InsertionID:                 a.InsertionID.String(),
			}, nil
		},
		func(dto additionalInformationDTO) (task.AdditionalInformation, error) {
			group, id, err := parseTarget(dto.Group, dto.InsertionID)
			if err != nil {
				return nil, err
			}
			if dto.SuccessfulRedeliveriesCount < 0 || dto.FailedRedeliveriesCount < 0 {
				return nil, errors.New("redelivery counts must not be negative")
			}
			return &AdditionalInformation{
				SuccessfulRedeliveriesCount: dto.SuccessfulRedeliveriesCount,
				FailedRedeliveriesCount:     dto.FailedRedeliveriesCount,
				Group:                       group,
				InsertionID:                 id,
			}, nil
		},
	)
}

// parseTarget 校验 group 与 insertionId 的组合；insertionId 必须依附于 group
func parseTarget(rawGroup, rawID string) (events.Group, deadletter.InsertionID, error) {
	if rawGroup == "" {
		if rawID != "" {
			return "", "", errors.New("insertionId requires a group")
		}
		return "", "", nil
	}
	group, err := events.ParseGroup(rawGroup)
	if err != nil {
		return "", "", err
	}
	if rawID == "" {
		return group, "", nil
	}
	id, err := deadletter.ParseInsertionID(rawID)
	if err != nil {
		return "", "", err
	}
	return group, id, nil
}

func fromTaskDTO(dto taskDTO, store deadletter.Store, dispatcher events.Dispatcher) (task.Task, error) {
	group, id, err := parseTarget(dto.Group, dto.InsertionID)
	switch {
	case err != nil:
		return nil, err
	case group == "":
		return NewAllTask(store, dispatcher), nil
	case id == "":
		return NewGroupTask(store, dispatcher, group), nil
	default:
		return NewSingleTask(store, dispatcher, group, id), nil
	}
}
