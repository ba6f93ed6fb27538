package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	redisstorage "github.com/taoyao-code/fed3-node/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, deviceID string, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg, deviceID)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NextBootCount 递增本设备的持久化启动计数；无 Redis 或失败时按首次启动处理
func NextBootCount(ctx context.Context, client *redisstorage.Client, key string, logger *zap.Logger) uint32 {
	if client == nil {
		return 1
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	key = client.Key(key)
	n, err := redisstorage.NewBootCounter(client, key).Next(ctx)
	if err != nil {
		logger.Warn("boot counter unavailable", zap.Error(err))
		return 1
	}
	logger.Info("boot counted", zap.String("key", key), zap.Uint32("boot_count", n))
	return n
}
