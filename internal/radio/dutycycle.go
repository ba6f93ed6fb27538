package radio

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/metrics"
)

// DutyCycle 基于令牌桶的占空比限制；被拒绝的发送视为无法启动
type DutyCycle struct {
	inner   hal.Radio
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.NodeMetrics
}

// NewDutyCycle 每 every 补充一个令牌，最多积累 burst 个
func NewDutyCycle(inner hal.Radio, every time.Duration, burst int, logger *zap.Logger, m *metrics.NodeMetrics) *DutyCycle {
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DutyCycle{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(every), burst),
		logger:  logger,
		metrics: m,
	}
}

func (d *DutyCycle) IsProvisioned() bool { return d.inner.IsProvisioned() }

func (d *DutyCycle) SendFrame(frame []byte, onDone func(bool), confirmed bool, port uint8) bool {
	if !d.limiter.Allow() {
		d.logger.Warn("uplink denied by duty cycle", zap.Int("size", len(frame)))
		if d.metrics != nil {
			d.metrics.DutyCycleDenied.Inc()
		}
		return false
	}
	return d.inner.SendFrame(frame, onDone, confirmed, port)
}
