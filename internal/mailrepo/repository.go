// Package mailrepo 邮件仓库（处理失败的邮件暂存处）以及重新处理、清空任务。
package mailrepo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var ErrMailNotFound = errors.New("mail not found")

// Path 仓库路径，例如 var/mail/error
type Path string

func (p Path) String() string { return string(p) }

// ParsePath 路径不能为空且不能包含空白字符
func ParsePath(s string) (Path, error) {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("invalid mail repository path %q", s)
	}
	return Path(s), nil
}

// Key 仓库内邮件的键
type Key string

func (k Key) String() string { return string(k) }

func ParseKey(s string) (Key, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("invalid mail key %q", s)
	}
	return Key(s), nil
}

// Mail 仓库中的一封邮件；State 为下一步进入的处理器
type Mail struct {
	Key        Key      `json:"key"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	State      string   `json:"state"`
	Error      string   `json:"error,omitempty"`
	Body       []byte   `json:"body"`
}

// Repository 邮件仓库存储
type Repository interface {
	Store(ctx context.Context, path Path, mail Mail) error
	List(ctx context.Context, path Path) ([]Key, error)
	Size(ctx context.Context, path Path) (int64, error)
	Retrieve(ctx context.Context, path Path, key Key) (Mail, error)
	Remove(ctx context.Context, path Path, key Key) error
}

// MemoryRepository 内存实现，键按写入顺序列出
type MemoryRepository struct {
	mu    sync.RWMutex
	repos map[Path]*memoryRepo
}

type memoryRepo struct {
	order []Key
	mails map[Key]Mail
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{repos: map[Path]*memoryRepo{}}
}

func (r *MemoryRepository) Store(_ context.Context, path Path, mail Mail) error {
	if mail.Key == "" {
		return fmt.Errorf("mail without key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, ok := r.repos[path]
	if !ok {
		repo = &memoryRepo{mails: map[Key]Mail{}}
		r.repos[path] = repo
	}
	if _, exists := repo.mails[mail.Key]; !exists {
		repo.order = append(repo.order, mail.Key)
	}
	repo.mails[mail.Key] = cloneMail(mail)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, path Path) ([]Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if repo, ok := r.repos[path]; ok {
		return slices.Clone(repo.order), nil
	}
	return nil, nil
}

func (r *MemoryRepository) Size(_ context.Context, path Path) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if repo, ok := r.repos[path]; ok {
		return int64(len(repo.mails)), nil
	}
	return 0, nil
}

func (r *MemoryRepository) Retrieve(_ context.Context, path Path, key Key) (Mail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if repo, ok := r.repos[path]; ok {
		if m, ok := repo.mails[key]; ok {
			return cloneMail(m), nil
		}
	}
	return Mail{}, fmt.Errorf("%w: %s/%s", ErrMailNotFound, path, key)
}

// Remove 删除不存在的邮件不报错
func (r *MemoryRepository) Remove(_ context.Context, path Path, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.repos[path]
	if !ok {
		return nil
	}
	if _, ok := repo.mails[key]; !ok {
		return nil
	}
	delete(repo.mails, key)
	repo.order = slices.DeleteFunc(repo.order, func(k Key) bool { return k == key })
	return nil
}

func cloneMail(m Mail) Mail {
	m.Recipients = slices.Clone(m.Recipients)
	m.Body = slices.Clone(m.Body)
	return m
}

var _ Repository = (*MemoryRepository)(nil)
