package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UplinkMessage 写入网络服务器入口队列的上行消息
type UplinkMessage struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	FCnt      uint32    `json:"fcnt"`
	Port      uint8     `json:"port"`
	Confirmed bool      `json:"confirmed"`
	Payload   []byte    `json:"payload"` // base64
	CreatedAt time.Time `json:"created_at"`
}

// UplinkQueue Redis List 上行队列（RPUSH 入队，LPOP 出队）
type UplinkQueue struct {
	client redis.Cmdable
	key    string
}

// NewUplinkQueue 创建上行队列
func NewUplinkQueue(client redis.Cmdable, key string) *UplinkQueue {
	return &UplinkQueue{client: client, key: key}
}

// Key 队列键名
func (q *UplinkQueue) Key() string { return q.key }

// NextFCnt 递增并返回帧计数
func (q *UplinkQueue) NextFCnt(ctx context.Context) (uint32, error) {
	n, err := q.client.Incr(ctx, q.key+":fcnt").Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr fcnt: %w", err)
	}
	return uint32(n), nil
}

// Enqueue 入队
func (q *UplinkQueue) Enqueue(ctx context.Context, msg *UplinkMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal uplink: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

// Dequeue 出队；队列为空返回 nil, nil
func (q *UplinkQueue) Dequeue(ctx context.Context) (*UplinkMessage, error) {
	data, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lpop: %w", err)
	}
	var msg UplinkMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal uplink: %w", err)
	}
	return &msg, nil
}

// Len 待消费消息数
func (q *UplinkQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
