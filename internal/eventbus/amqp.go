package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/logger"
)

const amqpQueuePrefix = "mailtaskhub.events."

// AMQPQueue group 对应的 RabbitMQ 队列名
func AMQPQueue(group events.Group) string {
	return amqpQueuePrefix + group.String()
}

// amqpChannel *amqp.Channel 中用到的部分
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPDispatcher 发布到每个 group 的持久化队列；broker 确认后才算投递成功
type AMQPDispatcher struct {
	conn *amqp.Connection

	mu       sync.Mutex // amqp.Channel 不支持并发发布
	channel  amqpChannel
	declared map[string]bool
}

// DialAMQP 连接 RabbitMQ 并开启 publisher confirm，启动阶段带退避重试
func DialAMQP(ctx context.Context, amqpURL string) (*AMQPDispatcher, error) {
	var conn *amqp.Connection
	dial := func() error {
		c, err := amqp.Dial(amqpURL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("RabbitMQ 暂不可用，稍后重试")
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.RetryNotify(dial, policy, notify); err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	d := newAMQPDispatcher(ch)
	d.conn = conn
	return d, nil
}

func newAMQPDispatcher(ch amqpChannel) *AMQPDispatcher {
	return &AMQPDispatcher{channel: ch, declared: map[string]bool{}}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, group events.Group, event events.Event) error {
	queue := AMQPQueue(group)

	d.mu.Lock()
	if err := d.declareLocked(queue); err != nil {
		d.mu.Unlock()
		return err
	}
	confirm, err := d.channel.PublishWithDeferredConfirmWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/octet-stream",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         event,
		})
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	// 未开启 confirm 模式时 confirm 为 nil
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked event for %s", queue)
	}
	return nil
}

func (d *AMQPDispatcher) declareLocked(queue string) error {
	if d.declared[queue] {
		return nil
	}
	_, err := d.channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	d.declared[queue] = true
	return nil
}

// Consume 消费 group 队列并交给 target 处理；处理失败的消息 nack 后重新入队。
// ctx 结束时停止消费。
func (d *AMQPDispatcher) Consume(ctx context.Context, group events.Group, target events.Dispatcher) error {
	queue := AMQPQueue(group)

	d.mu.Lock()
	if err := d.declareLocked(queue); err != nil {
		d.mu.Unlock()
		return err
	}
	msgs, err := d.channel.ConsumeWithContext(ctx,
		queue,                         // queue
		"mailtaskhub-"+group.String(), // consumer
		false,                         // auto-ack
		false,                         // exclusive
		false,                         // no-local
		false,                         // no-wait
		nil,                           // args
	)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		log := logger.WithGroup(group.String())
		for m := range msgs {
			if err := target.Dispatch(ctx, group, events.Event(m.Body)); err != nil {
				log.Warn().Err(err).Msg("AMQP 事件处理失败，重新入队")
				_ = m.Nack(false, true)
				continue
			}
			_ = m.Ack(false)
		}
	}()
	return nil
}

// Healthy 连接与通道是否可用
func (d *AMQPDispatcher) Healthy() bool {
	return d.conn != nil && !d.conn.IsClosed()
}

func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.channel.Close()
	if d.conn != nil {
		if cerr := d.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ events.Dispatcher = (*AMQPDispatcher)(nil)
