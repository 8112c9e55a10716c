package mailbox

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryMailbox struct {
	Mailbox
	nextUID  MessageUID
	messages map[MessageUID]Message
}

// MemoryRepository 内存邮箱仓储
type MemoryRepository struct {
	mu        sync.RWMutex
	ids       IDFactory
	mailboxes map[ID]*memoryMailbox
	order     []ID
}

func NewMemoryRepository(ids IDFactory) *MemoryRepository {
	return &MemoryRepository{
		ids:       ids,
		mailboxes: map[ID]*memoryMailbox{},
	}
}

func (r *MemoryRepository) CreateMailbox(_ context.Context, user Username, name string) (Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mb := range r.mailboxes {
		if mb.User == user && mb.Name == name {
			return Mailbox{}, fmt.Errorf("%w: %s/%s", ErrMailboxExists, user, name)
		}
	}
	mb := &memoryMailbox{
		Mailbox:  Mailbox{ID: r.ids.Generate(), User: user, Name: name},
		messages: map[MessageUID]Message{},
	}
	r.mailboxes[mb.ID] = mb
	r.order = append(r.order, mb.ID)
	return mb.Mailbox, nil
}

func (r *MemoryRepository) GetMailbox(_ context.Context, id ID) (Mailbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mb, ok := r.mailboxes[id]
	if !ok {
		return Mailbox{}, fmt.Errorf("%w: %s", ErrMailboxNotFound, id)
	}
	return mb.Mailbox, nil
}

func (r *MemoryRepository) FindMailbox(_ context.Context, user Username, name string) (Mailbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		mb := r.mailboxes[id]
		if mb.User == user && mb.Name == name {
			return mb.Mailbox, nil
		}
	}
	return Mailbox{}, fmt.Errorf("%w: %s/%s", ErrMailboxNotFound, user, name)
}

func (r *MemoryRepository) DeleteMailbox(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mailboxes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrMailboxNotFound, id)
	}
	delete(r.mailboxes, id)
	r.order = slices.DeleteFunc(r.order, func(existing ID) bool { return existing == id })
	return nil
}

func (r *MemoryRepository) ListMailboxes(_ context.Context) ([]Mailbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Mailbox, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.mailboxes[id].Mailbox)
	}
	return out, nil
}

func (r *MemoryRepository) ListUserMailboxes(_ context.Context, user Username) ([]Mailbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Mailbox
	for _, id := range r.order {
		if mb := r.mailboxes[id]; mb.User == user {
			out = append(out, mb.Mailbox)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListUIDs(_ context.Context, mailboxID ID) ([]MessageUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mb, ok := r.mailboxes[mailboxID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMailboxNotFound, mailboxID)
	}
	out := make([]MessageUID, 0, len(mb.messages))
	for uid := range mb.messages {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *MemoryRepository) GetMessage(_ context.Context, mailboxID ID, uid MessageUID) (Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mb, ok := r.mailboxes[mailboxID]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrMailboxNotFound, mailboxID)
	}
	msg, ok := mb.messages[uid]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s/%d", ErrMessageNotFound, mailboxID, uid)
	}
	return cloneMessage(msg), nil
}

func (r *MemoryRepository) FindByMessageID(_ context.Context, id MessageID) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Message
	for _, mbID := range r.order {
		var found []Message
		for _, msg := range r.mailboxes[mbID].messages {
			if msg.MessageID == id {
				found = append(found, cloneMessage(msg))
			}
		}
		sort.Slice(found, func(i, j int) bool { return found[i].UID < found[j].UID })
		out = append(out, found...)
	}
	return out, nil
}

func (r *MemoryRepository) Append(_ context.Context, mailboxID ID, msg Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mb, ok := r.mailboxes[mailboxID]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrMailboxNotFound, mailboxID)
	}
	return mb.append(msg), nil
}

func (r *MemoryRepository) Move(_ context.Context, from ID, uid MessageUID, to ID) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.mailboxes[from]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrMailboxNotFound, from)
	}
	dst, ok := r.mailboxes[to]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrMailboxNotFound, to)
	}
	msg, ok := src.messages[uid]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s/%d", ErrMessageNotFound, from, uid)
	}
	delete(src.messages, uid)
	return dst.append(msg), nil
}

func (mb *memoryMailbox) append(msg Message) Message {
	mb.nextUID++
	msg = cloneMessage(msg)
	msg.MailboxID = mb.ID
	msg.UID = mb.nextUID
	if msg.MessageID == "" {
		msg.MessageID = MessageID(uuid.NewString())
	}
	mb.messages[msg.UID] = msg
	return cloneMessage(msg)
}

func cloneMessage(m Message) Message {
	m.To = slices.Clone(m.To)
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		m.DeletedAt = &t
	}
	return m
}

var _ Repository = (*MemoryRepository)(nil)
