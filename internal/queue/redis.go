package asynqx

import (
	"github.com/hibiken/asynq"

	"github.com/azhengyongqin/mail-taskhub/internal/storage/redisx"
)

// NewRedisConnOpt 接受 URI（例如 redis://localhost:6379/6）或 host:port。
// 统一用 asynq.ParseRedisURI，避免手工拆分 addr/db。
func NewRedisConnOpt(redisURI string) (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(redisx.NormalizeURL(redisURI))
}
