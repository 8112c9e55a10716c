package reindex

import (
	"context"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const (
	MessageTaskType       = "messageReIndexing"
	MailboxTaskType       = "mailboxReIndexing"
	UserTaskType          = "userReIndexing"
	FullTaskType          = "FullReIndexing"
	ErrorRecoveryTaskType = "ErrorRecoveryIndexation"
	MessageIDTaskType     = "MessageIdReIndexingTask"
)

// MessageTask 单封邮件
type MessageTask struct {
	performer *Performer
	MailboxID mailbox.ID
	UID       mailbox.MessageUID
}

func NewMessageTask(p *Performer, mailboxID mailbox.ID, uid mailbox.MessageUID) *MessageTask {
	return &MessageTask{performer: p, MailboxID: mailboxID, UID: uid}
}

func (*MessageTask) Type() string { return MessageTaskType }

func (t *MessageTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := AdditionalInformation{typ: MessageTaskType, MailboxID: t.MailboxID, UID: t.UID}
	return t.performer.run(ctx, progress, info, fixed([]Target{{MailboxID: t.MailboxID, UID: t.UID}}))
}

// MailboxTask 一个邮箱
type MailboxTask struct {
	performer *Performer
	MailboxID mailbox.ID
}

func NewMailboxTask(p *Performer, mailboxID mailbox.ID) *MailboxTask {
	return &MailboxTask{performer: p, MailboxID: mailboxID}
}

func (*MailboxTask) Type() string { return MailboxTaskType }

func (t *MailboxTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := AdditionalInformation{typ: MailboxTaskType, MailboxID: t.MailboxID}
	return t.performer.reindexMailbox(ctx, progress, info, t.MailboxID)
}

// UserTask 一个用户的所有邮箱
type UserTask struct {
	performer *Performer
	User      mailbox.Username
}

func NewUserTask(p *Performer, user mailbox.Username) *UserTask {
	return &UserTask{performer: p, User: user}
}

func (*UserTask) Type() string { return UserTaskType }

func (t *UserTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := AdditionalInformation{typ: UserTaskType, User: t.User}
	return t.performer.reindexUser(ctx, progress, info, t.User)
}

// FullTask 全部邮箱
type FullTask struct {
	performer *Performer
}

func NewFullTask(p *Performer) *FullTask {
	return &FullTask{performer: p}
}

func (*FullTask) Type() string { return FullTaskType }

func (t *FullTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	return t.performer.reindexAll(ctx, progress, AdditionalInformation{typ: FullTaskType})
}

// ErrorRecoveryTask 只重试先前运行记录下的失败邮件
type ErrorRecoveryTask struct {
	performer        *Performer
	PreviousFailures Failures
}

func NewErrorRecoveryTask(p *Performer, previous Failures) *ErrorRecoveryTask {
	return &ErrorRecoveryTask{performer: p, PreviousFailures: previous}
}

func (*ErrorRecoveryTask) Type() string { return ErrorRecoveryTaskType }

// Targets 本任务的输入集合
func (t *ErrorRecoveryTask) Targets() []Target { return t.PreviousFailures.Targets() }

func (t *ErrorRecoveryTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := AdditionalInformation{typ: ErrorRecoveryTaskType}
	return t.performer.run(ctx, progress, info, fixed(t.Targets()))
}

// MessageIDTask 同一 MessageID 在所有邮箱中的副本
type MessageIDTask struct {
	performer *Performer
	MessageID mailbox.MessageID
}

func NewMessageIDTask(p *Performer, id mailbox.MessageID) *MessageIDTask {
	return &MessageIDTask{performer: p, MessageID: id}
}

func (*MessageIDTask) Type() string { return MessageIDTaskType }

func (t *MessageIDTask) Run(ctx context.Context, progress task.Progress) (task.Result, error) {
	info := AdditionalInformation{typ: MessageIDTaskType, MessageID: t.MessageID}
	return t.performer.reindexMessageID(ctx, progress, info, t.MessageID)
}

var (
	_ task.Task = (*MessageTask)(nil)
	_ task.Task = (*MailboxTask)(nil)
	_ task.Task = (*UserTask)(nil)
	_ task.Task = (*FullTask)(nil)
	_ task.Task = (*ErrorRecoveryTask)(nil)
	_ task.Task = (*MessageIDTask)(nil)
)
