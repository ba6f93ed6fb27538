package cycle

import (
	"time"

	"github.com/taoyao-code/fed3-node/internal/hal"
)

// Timer 周期计时器：每经过一个 interval 产生一个 tick
type Timer struct {
	clock    hal.Clock
	interval time.Duration
	last     time.Time
}

// NewTimer 以当前时间为起点
func NewTimer(clock hal.Clock, interval time.Duration) *Timer {
	return &Timer{clock: clock, interval: interval, last: clock.Now()}
}

// SetInterval 修改周期，不重置起点
func (t *Timer) SetInterval(d time.Duration) {
	t.interval = d
}

// Interval 当前周期
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Retrigger 以当前时间重新起算
func (t *Timer) Retrigger() {
	t.last = t.clock.Now()
}

// PeekTicks 已到期但未消费的 tick 数
func (t *Timer) PeekTicks() uint32 {
	if t.interval <= 0 {
		return 0
	}
	elapsed := t.clock.Now().Sub(t.last)
	if elapsed < 0 {
		return 0
	}
	return uint32(elapsed / t.interval)
}

// IsReady 消费全部到期 tick；至少一个 tick 到期时返回 true
func (t *Timer) IsReady() bool {
	n := t.PeekTicks()
	if n == 0 {
		return false
	}
	t.last = t.last.Add(time.Duration(n) * t.interval)
	return true
}

// Remaining 距下一个 tick 的时间，已到期为 0
func (t *Timer) Remaining() time.Duration {
	if t.interval <= 0 {
		return 0
	}
	r := t.interval - t.clock.Now().Sub(t.last)
	if r < 0 {
		return 0
	}
	return r
}
