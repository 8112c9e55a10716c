// Package vault 已删除邮件的保险库，以及恢复与导出任务。
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
)

// RestoreMailboxName 恢复的邮件放入该邮箱
const RestoreMailboxName = "Restored-Messages"

// ListenerGroup 把删除事件写入保险库的监听组
const ListenerGroup events.Group = "deleted-messages-vault"

// DeletedMessage 保险库中的邮件
type DeletedMessage struct {
	mailbox.Message
	Owner           mailbox.Username
	OriginMailboxes []mailbox.ID
	DeletionDate    time.Time
	HasAttachment   bool
}

// Vault 保险库存储
type Vault interface {
	Append(ctx context.Context, msg DeletedMessage) error
	Search(ctx context.Context, user mailbox.Username, q Query) ([]DeletedMessage, error)
}

// MemoryVault 内存保险库，按用户分区
type MemoryVault struct {
	mu       sync.RWMutex
	messages map[mailbox.Username][]DeletedMessage
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{messages: map[mailbox.Username][]DeletedMessage{}}
}

func (v *MemoryVault) Append(_ context.Context, msg DeletedMessage) error {
	if msg.Owner == "" {
		return fmt.Errorf("deleted message without owner")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	msg.OriginMailboxes = slices.Clone(msg.OriginMailboxes)
	msg.To = slices.Clone(msg.To)
	v.messages[msg.Owner] = append(v.messages[msg.Owner], msg)
	return nil
}

func (v *MemoryVault) Search(_ context.Context, user mailbox.Username, q Query) ([]DeletedMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []DeletedMessage
	for _, m := range v.messages[user] {
		if q.Matches(m) {
			m.To = slices.Clone(m.To)
			m.OriginMailboxes = slices.Clone(m.OriginMailboxes)
			out = append(out, m)
		}
	}
	return out, nil
}

var _ Vault = (*MemoryVault)(nil)

// deletedEvent 邮件删除事件的 JSON 形态
type deletedEvent struct {
	Owner           string    `json:"owner"`
	MessageID       string    `json:"messageId"`
	OriginMailboxes []string  `json:"originMailboxes"`
	From            string    `json:"from"`
	To              []string  `json:"to"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	HasAttachment   bool      `json:"hasAttachment"`
	DeliveryDate    time.Time `json:"deliveryDate"`
	DeletionDate    time.Time `json:"deletionDate"`
}

// Listener 把删除事件写入保险库；载荷不合法时返回错误，事件进入死信
func Listener(v Vault) events.Listener {
	return events.ListenerFunc(func(ctx context.Context, ev events.Event) error {
		var e deletedEvent
		if err := json.Unmarshal(ev, &e); err != nil {
			return fmt.Errorf("decode deleted message event: %w", err)
		}
		owner, err := mailbox.ParseUsername(e.Owner)
		if err != nil {
			return err
		}
		origins := make([]mailbox.ID, 0, len(e.OriginMailboxes))
		for _, o := range e.OriginMailboxes {
			origins = append(origins, mailbox.ID(o))
		}
		return v.Append(ctx, DeletedMessage{
			Message: mailbox.Message{
				MessageID:    mailbox.MessageID(e.MessageID),
				From:         e.From,
				To:           e.To,
				Subject:      e.Subject,
				Body:         e.Body,
				InternalDate: e.DeliveryDate,
			},
			Owner:           owner,
			OriginMailboxes: origins,
			DeletionDate:    e.DeletionDate,
			HasAttachment:   e.HasAttachment,
		})
	})
}
