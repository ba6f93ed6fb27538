// Package radio 提供上行传输实现：日志、Redis 网络服务器队列、签名 Webhook，以及占空比限制
//
// 所有实现的 SendFrame 均立即返回，传输在后台 goroutine 完成后回调 onDone。
package radio

import (
	"encoding/hex"
	"sync"

	"go.uber.org/zap"
)

// Log 仅记录日志的上行，用于无网络环境
type Log struct {
	provisioned bool
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewLog 创建日志上行
func NewLog(provisioned bool, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{provisioned: provisioned, logger: logger}
}

func (r *Log) IsProvisioned() bool { return r.provisioned }

func (r *Log) SendFrame(frame []byte, onDone func(bool), confirmed bool, port uint8) bool {
	r.logger.Info("uplink",
		zap.String("frame", hex.EncodeToString(frame)),
		zap.Uint8("port", port),
		zap.Bool("confirmed", confirmed))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		onDone(true)
	}()
	return true
}

// Close 等待在途回调
func (r *Log) Close() error {
	r.wg.Wait()
	return nil
}
