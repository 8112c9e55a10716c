package deadletter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
	"github.com/azhengyongqin/mail-taskhub/internal/storage/redisx"
)

const redisScanCount = 100

// 删除字段后若 hash 为空则从 group 集合中移除，保证两步操作原子
var removeScript = redis.NewScript(`
redis.call('HDEL', KEYS[1], ARGV[1])
if redis.call('HLEN', KEYS[1]) == 0 then
  redis.call('SREM', KEYS[2], ARGV[2])
end
return 1
`)

// RedisStore 基于 Redis 的死信存储：
// - <prefix>:groups            SET，持有死信的 group
// - <prefix>:group:<group>     HASH，insertion_id -> 事件
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore prefix 为空时使用 "deadletter"
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "deadletter"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) groupsKey() string {
	return redisx.Key(s.prefix, "groups")
}

func (s *RedisStore) groupKey(group events.Group) string {
	return redisx.Key(s.prefix, "group", group.String())
}

func (s *RedisStore) Store(ctx context.Context, group events.Group, event events.Event) (InsertionID, error) {
	id := NewInsertionID()
	if err := s.StoreWithID(ctx, group, event, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) StoreWithID(ctx context.Context, group events.Group, event events.Event, id InsertionID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.groupKey(group), id.String(), []byte(event))
		pipe.SAdd(ctx, s.groupsKey(), group.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("store dead letter: %w", err)
	}
	metrics.RecordDeadLetterStored(group.String())
	return nil
}

func (s *RedisStore) ListGroups(ctx context.Context) ([]events.Group, error) {
	members, err := s.client.SMembers(ctx, s.groupsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letter groups: %w", err)
	}
	sort.Strings(members)

	out := make([]events.Group, 0, len(members))
	for _, m := range members {
		out = append(out, events.Group(m))
	}
	return out, nil
}

// ListInsertionIDs 使用 HSCAN 分批读取；HSCAN 可能重复返回同一字段，迭代内去重
func (s *RedisStore) ListInsertionIDs(ctx context.Context, group events.Group) iter.Seq2[InsertionID, error] {
	return func(yield func(InsertionID, error) bool) {
		key := s.groupKey(group)
		seen := map[string]struct{}{}
		var cursor uint64
		for {
			kv, next, err := s.client.HScan(ctx, key, cursor, "", redisScanCount).Result()
			if err != nil {
				yield("", fmt.Errorf("scan dead letters: %w", err))
				return
			}
			// HSCAN 返回 field, value 交替排列
			for i := 0; i+1 < len(kv); i += 2 {
				field := kv[i]
				if _, dup := seen[field]; dup {
					continue
				}
				seen[field] = struct{}{}
				if !yield(InsertionID(field), nil) {
					return
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}

func (s *RedisStore) Load(ctx context.Context, group events.Group, id InsertionID) (events.Event, error) {
	data, err := s.client.HGet(ctx, s.groupKey(group), id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load dead letter: %w", err)
	}
	return events.Event(data), nil
}

func (s *RedisStore) Remove(ctx context.Context, group events.Group, id InsertionID) error {
	keys := []string{s.groupKey(group), s.groupsKey()}
	if err := removeScript.Run(ctx, s.client, keys, id.String(), group.String()).Err(); err != nil {
		return fmt.Errorf("remove dead letter: %w", err)
	}
	return nil
}

func (s *RedisStore) ContainEvents(ctx context.Context) (bool, error) {
	n, err := s.client.SCard(ctx, s.groupsKey()).Result()
	if err != nil {
		return false, fmt.Errorf("count dead letter groups: %w", err)
	}
	return n > 0, nil
}

var _ Store = (*RedisStore)(nil)
