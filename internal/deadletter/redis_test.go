package deadletter_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/deadletter/storetest"
	"github.com/azhengyongqin/mail-taskhub/internal/storage/redisx"
)

func TestRedisStore_Contract(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL 未设置，跳过 Redis 集成测试")
	}

	client, err := redisx.Open(context.Background(), redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	storetest.Run(t, func(t *testing.T) deadletter.Store {
		// 每个用例使用独立前缀，互不干扰
		prefix := "test-deadletter-" + uuid.NewString()
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := client.Keys(ctx, redisx.Key(prefix, "*")).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		})
		return deadletter.NewRedisStore(client, prefix)
	})
}
