package asynqx

import (
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeEvent 死信重投或事件分发的任务类型，payload 为事件原文
	TypeEvent = "mailtaskhub:event"
	// TypeMail 邮件重新进入处理队列，payload 为邮件 JSON
	TypeMail = "mailtaskhub:mail"

	eventQueuePrefix = "events:"
	mailQueuePrefix  = "mail:"
)

// EventQueue group 对应的 asynq 队列名
func EventQueue(group string) string {
	return eventQueuePrefix + group
}

// GroupOfQueue EventQueue 的反向解析
func GroupOfQueue(queue string) (string, bool) {
	return strings.CutPrefix(queue, eventQueuePrefix)
}

// MailQueue 邮件队列名
func MailQueue(name string) string {
	return mailQueuePrefix + name
}

// QueueOfMail MailQueue 的反向解析
func QueueOfMail(queue string) (string, bool) {
	return strings.CutPrefix(queue, mailQueuePrefix)
}

type EnqueueParams struct {
	TaskType string
	TaskID   string
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	Delay    time.Duration
	Payload  []byte
}

func EnqueueOptions(p EnqueueParams) []asynq.Option {
	var opts []asynq.Option

	if p.Queue != "" {
		opts = append(opts, asynq.Queue(p.Queue))
	}
	if p.TaskID != "" {
		// 同一 ID 重复入队会返回 asynq.ErrTaskIDConflict
		opts = append(opts, asynq.TaskID(p.TaskID))
	}
	if p.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(p.MaxRetry))
	}
	if p.Timeout > 0 {
		opts = append(opts, asynq.Timeout(p.Timeout))
	}
	if p.Delay > 0 {
		opts = append(opts, asynq.ProcessIn(p.Delay))
	}

	return opts
}
