package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// CachedTaskRepo 缓存终态记录；终态不会再变化，非终态始终回源
type CachedTaskRepo struct {
	backend TaskRepository
	cache   *expirable.LRU[task.ID, Record]
}

func NewCachedTaskRepo(backend TaskRepository, size int, ttl time.Duration) *CachedTaskRepo {
	if size <= 0 {
		size = 1024
	}
	return &CachedTaskRepo{
		backend: backend,
		cache:   expirable.NewLRU[task.ID, Record](size, nil, ttl),
	}
}

func (c *CachedTaskRepo) Record(ctx context.Context, t task.Task, d task.Details) error {
	// 写入后下次读取回源，拿到数据库里的最终版本
	c.cache.Remove(d.ID)
	return c.backend.Record(ctx, t, d)
}

func (c *CachedTaskRepo) Get(ctx context.Context, taskID task.ID) (Record, error) {
	if rec, ok := c.cache.Get(taskID); ok {
		return rec, nil
	}
	rec, err := c.backend.Get(ctx, taskID)
	if err != nil {
		return Record{}, err
	}
	if rec.Status.IsTerminal() {
		c.cache.Add(taskID, rec)
	}
	return rec, nil
}

func (c *CachedTaskRepo) List(ctx context.Context, f ListFilter) ([]Record, error) {
	return c.backend.List(ctx, f)
}

func (c *CachedTaskRepo) Count(ctx context.Context, f ListFilter) (int, error) {
	return c.backend.Count(ctx, f)
}

var _ TaskRepository = (*CachedTaskRepo)(nil)
