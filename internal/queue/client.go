package asynqx

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer asynq.Client 的入队能力，便于测试替换
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Client struct {
	*asynq.Client
}

func NewClient(redisURI string) (*Client, error) {
	opt, err := NewRedisConnOpt(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return &Client{Client: asynq.NewClient(opt)}, nil
}

// Enqueue 按参数构造任务并入队
func Enqueue(ctx context.Context, e Enqueuer, p EnqueueParams) (*asynq.TaskInfo, error) {
	t := asynq.NewTask(p.TaskType, p.Payload)
	info, err := e.EnqueueContext(ctx, t, EnqueueOptions(p)...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s to %s: %w", p.TaskType, p.Queue, err)
	}
	return info, nil
}

var _ Enqueuer = (*asynq.Client)(nil)
