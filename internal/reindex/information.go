package reindex

import (
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// AdditionalInformation 重建索引的进度快照，六种任务共用，按 Type 区分作用域字段
type AdditionalInformation struct {
	typ string

	MailboxID mailbox.ID
	UID       mailbox.MessageUID
	User      mailbox.Username
	MessageID mailbox.MessageID

	SuccessfullyReprocessedMailCount int64
	FailedReprocessedMailCount       int64
	Failures                         Failures
}

func (a *AdditionalInformation) Type() string { return a.typ }

// FailuresOf 从任意重建索引快照中取出失败集合，供错误恢复任务使用
func FailuresOf(info task.AdditionalInformation) (Failures, bool) {
	a, ok := info.(*AdditionalInformation)
	if !ok || a == nil {
		return nil, false
	}
	return a.Failures, true
}

var _ task.AdditionalInformation = (*AdditionalInformation)(nil)
