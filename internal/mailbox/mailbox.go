// Package mailbox 邮箱与邮件的领域模型，以及任务使用的仓储接口。
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrMailboxExists   = errors.New("mailbox already exists")
	ErrMessageNotFound = errors.New("message not found")
)

// ID 邮箱标识，具体格式由 IDFactory 决定
type ID string

func (id ID) String() string { return string(id) }

// IDFactory 把外部字符串解析为邮箱 ID，并生成新的 ID
type IDFactory interface {
	FromString(s string) (ID, error)
	Generate() ID
}

// NumericIDFactory 自增整数 ID（内存部署）
type NumericIDFactory struct {
	mu   sync.Mutex
	next int64
}

func (f *NumericIDFactory) FromString(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid mailbox id %q", s)
	}
	return ID(strconv.FormatInt(n, 10)), nil
}

func (f *NumericIDFactory) Generate() ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return ID(strconv.FormatInt(f.next, 10))
}

// UUIDFactory UUID 格式的 ID
type UUIDFactory struct{}

func (UUIDFactory) FromString(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid mailbox id %q: %w", s, err)
	}
	return ID(u.String()), nil
}

func (UUIDFactory) Generate() ID { return ID(uuid.NewString()) }

// MessageUID 邮件在邮箱内的 UID
type MessageUID int64

// ParseMessageUID 解析 UID，必须为正数
func ParseMessageUID(s string) (MessageUID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid uid %q", s)
	}
	return MessageUID(n), nil
}

// Username 用户名
type Username string

func (u Username) String() string { return string(u) }

// ParseUsername 用户名不能为空且不含空白
func ParseUsername(s string) (Username, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("invalid username %q", s)
	}
	return Username(s), nil
}

// MessageID 跨邮箱的邮件标识，同一封邮件在多个邮箱中共享
type MessageID string

func (id MessageID) String() string { return string(id) }

// ParseMessageID 只接受 UUID 格式
func ParseMessageID(s string) (MessageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return MessageID(u.String()), nil
}

// Mailbox 邮箱
type Mailbox struct {
	ID   ID
	User Username
	Name string
}

// Message 邮件
type Message struct {
	MessageID    MessageID
	MailboxID    ID
	UID          MessageUID
	From         string
	To           []string
	Subject      string
	Body         string
	InternalDate time.Time
	DeletedAt    *time.Time
}

// Size 正文字节数
func (m Message) Size() int { return len(m.Body) }

// Repository 任务需要的邮箱存储能力
type Repository interface {
	CreateMailbox(ctx context.Context, user Username, name string) (Mailbox, error)
	GetMailbox(ctx context.Context, id ID) (Mailbox, error)
	FindMailbox(ctx context.Context, user Username, name string) (Mailbox, error)
	DeleteMailbox(ctx context.Context, id ID) error

	// ListMailboxes 所有邮箱，按 ID 顺序
	ListMailboxes(ctx context.Context) ([]Mailbox, error)
	ListUserMailboxes(ctx context.Context, user Username) ([]Mailbox, error)

	// ListUIDs 邮箱内邮件 UID，升序
	ListUIDs(ctx context.Context, mailboxID ID) ([]MessageUID, error)
	GetMessage(ctx context.Context, mailboxID ID, uid MessageUID) (Message, error)
	FindByMessageID(ctx context.Context, id MessageID) ([]Message, error)

	// Append 追加邮件并分配 UID；MessageID 为空时生成新的
	Append(ctx context.Context, mailboxID ID, msg Message) (Message, error)
	// Move 把邮件移动到另一个邮箱，目标邮箱中分配新 UID
	Move(ctx context.Context, from ID, uid MessageUID, to ID) (Message, error)
}
