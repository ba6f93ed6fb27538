package radio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisstore "github.com/taoyao-code/fed3-node/internal/storage/redis"
)

// Redis 将上行写入网络服务器的 Redis 入口队列
type Redis struct {
	queue       *redisstore.UplinkQueue
	deviceID    string
	provisioned bool
	timeout     time.Duration
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedis 创建 Redis 上行
func NewRedis(queue *redisstore.UplinkQueue, deviceID string, provisioned bool, timeout time.Duration, logger *zap.Logger) *Redis {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Redis{
		queue:       queue,
		deviceID:    deviceID,
		provisioned: provisioned,
		timeout:     timeout,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (r *Redis) IsProvisioned() bool { return r.provisioned }

func (r *Redis) SendFrame(frame []byte, onDone func(bool), confirmed bool, port uint8) bool {
	if r.ctx.Err() != nil {
		return false
	}
	payload := append([]byte(nil), frame...)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		onDone(r.push(payload, confirmed, port))
	}()
	return true
}

func (r *Redis) push(payload []byte, confirmed bool, port uint8) bool {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	fcnt, err := r.queue.NextFCnt(ctx)
	if err != nil {
		r.logger.Error("uplink fcnt failed", zap.Error(err))
		return false
	}
	msg := &redisstore.UplinkMessage{
		ID:        uuid.NewString(),
		DeviceID:  r.deviceID,
		FCnt:      fcnt,
		Port:      port,
		Confirmed: confirmed,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.queue.Enqueue(ctx, msg); err != nil {
		r.logger.Error("uplink enqueue failed", zap.String("id", msg.ID), zap.Error(err))
		return false
	}
	r.logger.Debug("uplink enqueued",
		zap.String("id", msg.ID),
		zap.Uint32("fcnt", fcnt),
		zap.String("queue", r.queue.Key()))
	return true
}

// Close 取消在途写入并等待回调完成
func (r *Redis) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
