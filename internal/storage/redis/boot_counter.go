package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// BootCounter 跨进程持久的启动计数
type BootCounter struct {
	client redis.Cmdable
	key    string
}

// NewBootCounter 创建启动计数器
func NewBootCounter(client redis.Cmdable, key string) *BootCounter {
	return &BootCounter{client: client, key: key}
}

// Next 记录一次启动并返回新的计数
func (b *BootCounter) Next(ctx context.Context) (uint32, error) {
	n, err := b.client.Incr(ctx, b.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr boot count: %w", err)
	}
	return uint32(n), nil
}
