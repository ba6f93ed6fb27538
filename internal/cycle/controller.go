package cycle

import (
	"time"

	"go.uber.org/zap"
)

// 默认上行周期：激活后 30s 快速上报 10 次，之后回到 180s
const (
	DefaultInitialSeconds   = 30
	DefaultBurstCount       = 10
	DefaultPermanentSeconds = 3 * 60
)

// Controller 上行周期控制：快速周期计数递减到 1 后回退为常驻周期
type Controller struct {
	timer     *Timer
	seconds   uint32
	count     uint32
	permanent uint32
	log       *zap.Logger
}

// NewController 创建控制器并设置初始周期
func NewController(timer *Timer, initialSeconds, burstCount, permanentSeconds uint32, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{timer: timer, permanent: permanentSeconds, log: log}
	c.SetInterval(initialSeconds, burstCount)
	return c
}

// SetInterval 设置周期与快速周期计数；返回计时器是否已有到期 tick
func (c *Controller) SetInterval(seconds, burstCount uint32) bool {
	c.seconds = seconds
	c.count = burstCount
	c.timer.SetInterval(time.Duration(seconds) * time.Second)
	return c.timer.PeekTicks() != 0
}

// Update 每完成一个上行周期调用一次
func (c *Controller) Update() bool {
	switch {
	case c.count > 1:
		c.count--
	case c.count == 1:
		c.log.Info("resetting tx cycle to default", zap.Uint32("seconds", c.permanent))
		return c.SetInterval(c.permanent, 0)
	}
	return false
}

// Seconds 当前周期（秒）
func (c *Controller) Seconds() uint32 { return c.seconds }

// Count 剩余快速周期数
func (c *Controller) Count() uint32 { return c.count }

// Permanent 常驻周期（秒）
func (c *Controller) Permanent() uint32 { return c.permanent }

// Timer 底层计时器
func (c *Controller) Timer() *Timer { return c.timer }
