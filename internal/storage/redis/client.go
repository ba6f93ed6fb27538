package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
)

// DevicePlaceholder 键模板中的设备号占位符
const DevicePlaceholder = "{device}"

// ErrDisabled 配置未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

// Client 节点的 Redis 连接：启动计数与上行队列共用，键按设备号展开
type Client struct {
	*redis.Client
	deviceID string
}

// NewClient 连接 Redis 并探活；探活超时取 DialTimeout，未配置时 5s
func NewClient(cfg cfgpkg.RedisConfig, deviceID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &Client{Client: rdb, deviceID: deviceID}, nil
}

// Key 展开键模板中的设备号，使多个节点可共用一个 Redis
func (c *Client) Key(tmpl string) string {
	return DeviceKey(tmpl, c.deviceID)
}

// DeviceKey 用设备号替换模板占位符；没有占位符时原样返回
func DeviceKey(tmpl, deviceID string) string {
	return strings.ReplaceAll(tmpl, DevicePlaceholder, deviceID)
}

// Close 关闭连接
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// HealthCheck 探活
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
