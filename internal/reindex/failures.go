package reindex

import (
	"slices"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
)

// MailboxFailures 一个邮箱内重建索引失败的邮件
type MailboxFailures struct {
	MailboxID mailbox.ID
	UIDs      []mailbox.MessageUID
}

// Failures 按邮箱分组的失败集合，邮箱按首次失败的顺序排列。发布后不可变。
type Failures []MailboxFailures

// Count 失败邮件总数
func (f Failures) Count() int {
	n := 0
	for _, mf := range f {
		n += len(mf.UIDs)
	}
	return n
}

// Targets 展开为 (邮箱, UID) 列表
func (f Failures) Targets() []Target {
	out := make([]Target, 0, f.Count())
	for _, mf := range f {
		for _, uid := range mf.UIDs {
			out = append(out, Target{MailboxID: mf.MailboxID, UID: uid})
		}
	}
	return out
}

// Target 一封待重建索引的邮件
type Target struct {
	MailboxID mailbox.ID
	UID       mailbox.MessageUID
}

// failureBuilder 运行期间累积失败；同一封邮件只记录一次
type failureBuilder struct {
	order []mailbox.ID
	uids  map[mailbox.ID][]mailbox.MessageUID
}

func newFailureBuilder() *failureBuilder {
	return &failureBuilder{uids: map[mailbox.ID][]mailbox.MessageUID{}}
}

func (b *failureBuilder) add(t Target) {
	existing, ok := b.uids[t.MailboxID]
	if !ok {
		b.order = append(b.order, t.MailboxID)
	}
	if slices.Contains(existing, t.UID) {
		return
	}
	b.uids[t.MailboxID] = append(existing, t.UID)
}

// build 返回独立副本，之后的 add 不影响已发布的结果
func (b *failureBuilder) build() Failures {
	out := make(Failures, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, MailboxFailures{MailboxID: id, UIDs: slices.Clone(b.uids[id])})
	}
	return out
}
