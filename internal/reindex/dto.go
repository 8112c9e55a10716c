package reindex

import (
	"errors"
	"fmt"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

type failureDTO struct {
	MailboxID string  `json:"mailboxId"`
	UIDs      []int64 `json:"uids"`
}

func toFailureDTOs(f Failures) []failureDTO {
	out := make([]failureDTO, 0, len(f))
	for _, mf := range f {
		uids := make([]int64, 0, len(mf.UIDs))
		for _, uid := range mf.UIDs {
			uids = append(uids, int64(uid))
		}
		out = append(out, failureDTO{MailboxID: mf.MailboxID.String(), UIDs: uids})
	}
	return out
}

func fromFailureDTOs(dtos []failureDTO, ids mailbox.IDFactory) (Failures, error) {
	out := make(Failures, 0, len(dtos))
	for _, d := range dtos {
		id, err := ids.FromString(d.MailboxID)
		if err != nil {
			return nil, err
		}
		uids := make([]mailbox.MessageUID, 0, len(d.UIDs))
		for _, uid := range d.UIDs {
			u, err := parseUID(uid)
			if err != nil {
				return nil, err
			}
			uids = append(uids, u)
		}
		out = append(out, MailboxFailures{MailboxID: id, UIDs: uids})
	}
	return out, nil
}

// 以下 DTO 对应各任务的 JSON 形态

type messageTaskDTO struct {
	MailboxID string `json:"mailboxId"`
	UID       int64  `json:"uid"`
}

type mailboxTaskDTO struct {
	MailboxID string `json:"mailboxId"`
}

type userTaskDTO struct {
	Username string `json:"username"`
}

type fullTaskDTO struct{}

type errorRecoveryTaskDTO struct {
	PreviousFailures []failureDTO `json:"previousFailures"`
}

type messageIDTaskDTO struct {
	MessageID string `json:"messageId"`
}

type countsDTO struct {
	SuccessfullyReprocessedMailCount int64        `json:"successfullyReprocessedMailCount"`
	FailedReprocessedMailCount       int64        `json:"failedReprocessedMailCount"`
	Failures                         []failureDTO `json:"failures"`
}

type messageInfoDTO struct {
	MailboxID string `json:"mailboxId"`
	UID       int64  `json:"uid"`
	countsDTO
}

type mailboxInfoDTO struct {
	MailboxID string `json:"mailboxId"`
	countsDTO
}

type userInfoDTO struct {
	User string `json:"user"`
	countsDTO
}

type messageIDInfoDTO struct {
	MessageID string `json:"messageId"`
	countsDTO
}

func toCounts(a *AdditionalInformation) countsDTO {
	return countsDTO{
		SuccessfullyReprocessedMailCount: a.SuccessfullyReprocessedMailCount,
		FailedReprocessedMailCount:       a.FailedReprocessedMailCount,
		Failures:                         toFailureDTOs(a.Failures),
	}
}

// parseUID UID 从 1 开始
func parseUID(v int64) (mailbox.MessageUID, error) {
	if v <= 0 {
		return 0, fmt.Errorf("invalid uid %d", v)
	}
	return mailbox.MessageUID(v), nil
}

func fromCounts(typ string, c countsDTO, ids mailbox.IDFactory) (*AdditionalInformation, error) {
	if c.SuccessfullyReprocessedMailCount < 0 || c.FailedReprocessedMailCount < 0 {
		return nil, errors.New("reprocessed mail counts must not be negative")
	}
	failures, err := fromFailureDTOs(c.Failures, ids)
	if err != nil {
		return nil, err
	}
	return &AdditionalInformation{
		typ:                              typ,
		SuccessfullyReprocessedMailCount: c.SuccessfullyReprocessedMailCount,
		FailedReprocessedMailCount:       c.FailedReprocessedMailCount,
		Failures:                         failures,
	}, nil
}

// Register 向两个注册表登记六种重建索引任务及其快照
func Register(tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry, p *Performer, ids mailbox.IDFactory) error {
	return errors.Join(
		registerTasks(tasks, p, ids),
		registerInformation(infos, ids),
	)
}

func registerTasks(r *task.TaskRegistry, p *Performer, ids mailbox.IDFactory) error {
	return errors.Join(
		serialization.RegisterDTO(r, MessageTaskType,
			func(v task.Task) (messageTaskDTO, error) {
				t := v.(*MessageTask)
				return messageTaskDTO{MailboxID: t.MailboxID.String(), UID: int64(t.UID)}, nil
			},
			func(d messageTaskDTO) (task.Task, error) {
				id, err := ids.FromString(d.MailboxID)
				if err != nil {
					return nil, err
				}
				uid, err := parseUID(d.UID)
				if err != nil {
					return nil, err
				}
				return NewMessageTask(p, id, uid), nil
			}),
		serialization.RegisterDTO(r, MailboxTaskType,
			func(v task.Task) (mailboxTaskDTO, error) {
				return mailboxTaskDTO{MailboxID: v.(*MailboxTask).MailboxID.String()}, nil
			},
			func(d mailboxTaskDTO) (task.Task, error) {
				id, err := ids.FromString(d.MailboxID)
				if err != nil {
					return nil, err
				}
				return NewMailboxTask(p, id), nil
			}),
		serialization.RegisterDTO(r, UserTaskType,
			func(v task.Task) (userTaskDTO, error) {
				return userTaskDTO{Username: v.(*UserTask).User.String()}, nil
			},
			func(d userTaskDTO) (task.Task, error) {
				user, err := mailbox.ParseUsername(d.Username)
				if err != nil {
					return nil, err
				}
				return NewUserTask(p, user), nil
			}),
		serialization.RegisterDTO(r, FullTaskType,
			func(task.Task) (fullTaskDTO, error) { return fullTaskDTO{}, nil },
			func(fullTaskDTO) (task.Task, error) { return NewFullTask(p), nil }),
		serialization.RegisterDTO(r, ErrorRecoveryTaskType,
			func(v task.Task) (errorRecoveryTaskDTO, error) {
				return errorRecoveryTaskDTO{PreviousFailures: toFailureDTOs(v.(*ErrorRecoveryTask).PreviousFailures)}, nil
			},
			func(d errorRecoveryTaskDTO) (task.Task, error) {
				failures, err := fromFailureDTOs(d.PreviousFailures, ids)
				if err != nil {
					return nil, err
				}
				return NewErrorRecoveryTask(p, failures), nil
			}),
		serialization.RegisterDTO(r, MessageIDTaskType,
			func(v task.Task) (messageIDTaskDTO, error) {
				return messageIDTaskDTO{MessageID: v.(*MessageIDTask).MessageID.String()}, nil
			},
			func(d messageIDTaskDTO) (task.Task, error) {
				id, err := mailbox.ParseMessageID(d.MessageID)
				if err != nil {
					return nil, err
				}
				return NewMessageIDTask(p, id), nil
			}),
	)
}

func registerInformation(r *task.AdditionalInformationRegistry, ids mailbox.IDFactory) error {
	info := func(v task.AdditionalInformation) *AdditionalInformation { return v.(*AdditionalInformation) }

	return errors.Join(
		serialization.RegisterDTO(r, MessageTaskType,
			func(v task.AdditionalInformation) (messageInfoDTO, error) {
				a := info(v)
				return messageInfoDTO{MailboxID: a.MailboxID.String(), UID: int64(a.UID), countsDTO: toCounts(a)}, nil
			},
			func(d messageInfoDTO) (task.AdditionalInformation, error) {
				a, err := fromCounts(MessageTaskType, d.countsDTO, ids)
				if err != nil {
					return nil, err
				}
				if a.MailboxID, err = ids.FromString(d.MailboxID); err != nil {
					return nil, err
				}
				if a.UID, err = parseUID(d.UID); err != nil {
					return nil, err
				}
				return a, nil
			}),
		serialization.RegisterDTO(r, MailboxTaskType,
			func(v task.AdditionalInformation) (mailboxInfoDTO, error) {
				a := info(v)
				return mailboxInfoDTO{MailboxID: a.MailboxID.String(), countsDTO: toCounts(a)}, nil
			},
			func(d mailboxInfoDTO) (task.AdditionalInformation, error) {
				a, err := fromCounts(MailboxTaskType, d.countsDTO, ids)
				if err != nil {
					return nil, err
				}
				if a.MailboxID, err = ids.FromString(d.MailboxID); err != nil {
					return nil, err
				}
				return a, nil
			}),
		serialization.RegisterDTO(r, UserTaskType,
			func(v task.AdditionalInformation) (userInfoDTO, error) {
				a := info(v)
				return userInfoDTO{User: a.User.String(), countsDTO: toCounts(a)}, nil
			},
			func(d userInfoDTO) (task.AdditionalInformation, error) {
				a, err := fromCounts(UserTaskType, d.countsDTO, ids)
				if err != nil {
					return nil, err
				}
				if a.User, err = mailbox.ParseUsername(d.User); err != nil {
					return nil, err
				}
				return a, nil
			}),
		serialization.RegisterDTO(r, FullTaskType,
			func(v task.AdditionalInformation) (countsDTO, error) { return toCounts(info(v)), nil },
			func(d countsDTO) (task.AdditionalInformation, error) { return fromCounts(FullTaskType, d, ids) }),
		serialization.RegisterDTO(r, ErrorRecoveryTaskType,
			func(v task.AdditionalInformation) (countsDTO, error) { return toCounts(info(v)), nil },
			func(d countsDTO) (task.AdditionalInformation, error) { return fromCounts(ErrorRecoveryTaskType, d, ids) }),
		serialization.RegisterDTO(r, MessageIDTaskType,
			func(v task.AdditionalInformation) (messageIDInfoDTO, error) {
				a := info(v)
				return messageIDInfoDTO{MessageID: a.MessageID.String(), countsDTO: toCounts(a)}, nil
			},
			func(d messageIDInfoDTO) (task.AdditionalInformation, error) {
				a, err := fromCounts(MessageIDTaskType, d.countsDTO, ids)
				if err != nil {
					return nil, err
				}
				if a.MessageID, err = mailbox.ParseMessageID(d.MessageID); err != nil {
					return nil, err
				}
				return a, nil
			}),
	)
}
