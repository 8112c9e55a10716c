package vault

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

type restoreTaskDTO struct {
	UserToRestore string `json:"userToRestore"`
	Query         Query  `json:"query"`
}

type restoreInformationDTO struct {
	User                   string `json:"user"`
	SuccessfulRestoreCount int64  `json:"successfulRestoreCount"`
	ErrorRestoreCount      int64  `json:"errorRestoreCount"`
}

type exportTaskDTO struct {
	UserExportFrom string `json:"userExportFrom"`
	ExportQuery    Query  `json:"exportQuery"`
	ExportTo       string `json:"exportTo"`
}

type exportInformationDTO struct {
	ExportTo              string `json:"exportTo"`
	UserExportFrom        string `json:"userExportFrom"`
	TotalExportedMessages int64  `json:"totalExportedMessages"`
}

// ParseExportTo 只接受单个合法邮件地址
func ParseExportTo(s string) (*mail.Address, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid exportTo %q: %w", s, err)
	}
	return addr, nil
}

func queryToDTO(q Query) Query {
	out := Query{Combinator: q.Combinator, Criteria: slices.Clone(q.Criteria)}
	if out.Combinator == "" {
		out.Combinator = CombinatorAnd
	}
	if out.Criteria == nil {
		out.Criteria = []Criterion{}
	}
	return out
}

func queryFromDTO(q Query) (Query, error) {
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return queryToDTO(q), nil
}

// Register 登记恢复与导出任务及其快照
func Register(tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry, v Vault, repo mailbox.Repository, exporter Exporter) error {
	return errors.Join(
		serialization.RegisterDTO(tasks, RestoreTaskType,
			func(x task.Task) (restoreTaskDTO, error) {
				t := x.(*RestoreTask)
				return restoreTaskDTO{UserToRestore: t.User.String(), Query: queryToDTO(t.Query)}, nil
			},
			func(d restoreTaskDTO) (task.Task, error) {
				user, err := mailbox.ParseUsername(d.UserToRestore)
				if err != nil {
					return nil, err
				}
				q, err := queryFromDTO(d.Query)
				if err != nil {
					return nil, err
				}
				return NewRestoreTask(v, repo, user, q), nil
			},
		),
		serialization.RegisterDTO(tasks, ExportTaskType,
			func(x task.Task) (exportTaskDTO, error) {
				t := x.(*ExportTask)
				return exportTaskDTO{
					UserExportFrom: t.User.String(),
					ExportQuery:    queryToDTO(t.Query),
					ExportTo:       t.ExportTo.Address,
				}, nil
			},
			func(d exportTaskDTO) (task.Task, error) {
				user, err := mailbox.ParseUsername(d.UserExportFrom)
				if err != nil {
					return nil, err
				}
				q, err := queryFromDTO(d.ExportQuery)
				if err != nil {
					return nil, err
				}
				to, err := ParseExportTo(d.ExportTo)
				if err != nil {
					return nil, err
				}
				return NewExportTask(v, exporter, user, q, to), nil
			},
		),
		serialization.RegisterDTO(infos, RestoreTaskType,
			func(x task.AdditionalInformation) (restoreInformationDTO, error) {
				a := x.(*RestoreInformation)
				return restoreInformationDTO{
					User:                   a.User.String(),
					SuccessfulRestoreCount: a.SuccessfulRestoreCount,
					ErrorRestoreCount:      a.ErrorRestoreCount,
				}, nil
			},
			func(d restoreInformationDTO) (task.AdditionalInformation, error) {
				user, err := mailbox.ParseUsername(d.User)
				if err != nil {
					return nil, err
				}
				return &RestoreInformation{
					User:                   user,
					SuccessfulRestoreCount: d.SuccessfulRestoreCount,
					ErrorRestoreCount:      d.ErrorRestoreCount,
				}, nil
			},
		),
		serialization.RegisterDTO(infos, ExportTaskType,
			func(x task.AdditionalInformation) (exportInformationDTO, error) {
				a := x.(*ExportInformation)
				return exportInformationDTO{
					ExportTo:              a.ExportTo.Address,
					UserExportFrom:        a.User.String(),
					TotalExportedMessages: a.TotalExportedMessages,
				}, nil
			},
			func(d exportInformationDTO) (task.AdditionalInformation, error) {
				user, err := mailbox.ParseUsername(d.UserExportFrom)
				if err != nil {
					return nil, err
				}
				to, err := ParseExportTo(d.ExportTo)
				if err != nil {
					return nil, err
				}
				return &ExportInformation{User: user, ExportTo: to, TotalExportedMessages: d.TotalExportedMessages}, nil
			},
		),
	)
}
