package redisx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
)

// KeyPrefix 本服务写入 Redis 的 key 前缀
const KeyPrefix = "mailtaskhub"

// NormalizeURL 兼容只写 host:port 的配置
func NormalizeURL(addr string) string {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return addr
	}
	return "redis://" + addr + "/0"
}

// Open 创建 Redis 客户端并确认可连接（启动阶段带指数退避重试）
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(NormalizeURL(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("Redis 暂不可用，稍后重试")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Key 生成带前缀的 key
func Key(prefix string, parts ...string) string {
	key := KeyPrefix + ":" + prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}
