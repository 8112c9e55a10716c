package mailrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	asynqx "github.com/azhengyongqin/mail-taskhub/internal/queue"
)

// DefaultQueue 默认投递队列
const DefaultQueue = "spool"

// MailQueue 邮件重新进入处理流程的入口
type MailQueue interface {
	Enqueue(ctx context.Context, queue string, mail Mail) error
}

// AsynqMailQueue 每个逻辑队列对应一个 asynq 队列
type AsynqMailQueue struct {
	enqueuer asynqx.Enqueuer
	maxRetry int
}

func NewAsynqMailQueue(enqueuer asynqx.Enqueuer) *AsynqMailQueue {
	return &AsynqMailQueue{enqueuer: enqueuer, maxRetry: 5}
}

func (q *AsynqMailQueue) Enqueue(ctx context.Context, queue string, mail Mail) error {
	payload, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("encode mail %s: %w", mail.Key, err)
	}
	_, err = asynqx.Enqueue(ctx, q.enqueuer, asynqx.EnqueueParams{
		TaskType: asynqx.TypeMail,
		Queue:    asynqx.MailQueue(queue),
		MaxRetry: q.maxRetry,
		Payload:  payload,
	})
	return err
}

// DecodeMail 解析 TypeMail 任务的载荷
func DecodeMail(t *asynq.Task) (Mail, error) {
	var m Mail
	if err := json.Unmarshal(t.Payload(), &m); err != nil {
		return Mail{}, fmt.Errorf("decode mail payload: %w: %w", err, asynq.SkipRetry)
	}
	return m, nil
}

// MailHandler 消费 TypeMail 任务并交给 process；载荷损坏时不重试
func MailHandler(process func(ctx context.Context, mail Mail) error) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		m, err := DecodeMail(t)
		if err != nil {
			return err
		}
		queue, _ := asynq.GetQueueName(ctx)
		logger.Debug().Str("queue", queue).Str("mail_key", m.Key.String()).Str("state", m.State).Msg("邮件重新进入处理")
		return process(ctx, m)
	})
}

// SpoolPath 本地 spool 中队列对应的仓库路径
func SpoolPath(queue string) Path {
	return Path("spool/" + queue)
}

// SpoolQueue 未配置 Redis 时使用：邮件直接写入本地仓库的 spool/<queue> 路径
type SpoolQueue struct {
	repo Repository
}

func NewSpoolQueue(repo Repository) *SpoolQueue {
	return &SpoolQueue{repo: repo}
}

func (q *SpoolQueue) Enqueue(ctx context.Context, queue string, mail Mail) error {
	if err := q.repo.Store(ctx, SpoolPath(queue), mail); err != nil {
		return fmt.Errorf("spool mail %s to %s: %w", mail.Key, queue, err)
	}
	return nil
}

var (
	_ MailQueue = (*AsynqMailQueue)(nil)
	_ MailQueue = (*SpoolQueue)(nil)
)
