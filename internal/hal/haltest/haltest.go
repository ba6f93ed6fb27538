// Package haltest 提供 hal 接口的测试替身
package haltest

import (
	"sync"
	"time"

	"github.com/taoyao-code/fed3-node/internal/hal"
)

// Clock 虚拟时钟，Sleep 只推进时间
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(d time.Duration) { c.Advance(d) }

// Advance 推进虚拟时间
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Link 内存串口链路
type Link struct {
	buf []byte
}

// Write 模拟设备发送字节
func (l *Link) Write(p []byte) { l.buf = append(l.buf, p...) }

func (l *Link) Available() int { return len(l.buf) }

func (l *Link) ReadByte() (byte, error) {
	b := l.buf[0]
	l.buf = l.buf[1:]
	return b, nil
}

// Sent 一次发送记录
type Sent struct {
	Frame     []byte
	Confirmed bool
	Port      uint8
}

// Radio 可编排结果的无线替身
type Radio struct {
	Provisioned bool
	// RefuseStart 为 true 时 SendFrame 返回 false
	RefuseStart bool
	// Fail 完成回调的结果取反
	Fail bool
	// Deferred 为 true 时不立即回调，需调用 Complete
	Deferred bool

	Sent    []Sent
	pending func(bool)
}

func (r *Radio) IsProvisioned() bool { return r.Provisioned }

func (r *Radio) SendFrame(frame []byte, onDone func(bool), confirmed bool, port uint8) bool {
	if r.RefuseStart {
		return false
	}
	r.Sent = append(r.Sent, Sent{Frame: append([]byte(nil), frame...), Confirmed: confirmed, Port: port})
	if r.Deferred {
		r.pending = onDone
		return true
	}
	onDone(!r.Fail)
	return true
}

// Complete 触发挂起的完成回调
func (r *Radio) Complete(ok bool) {
	if r.pending != nil {
		cb := r.pending
		r.pending = nil
		cb(ok)
	}
}

// Env 环境传感器替身
type Env struct {
	Absent  bool
	Reading hal.EnvReading
}

func (e *Env) Read() (hal.EnvReading, bool) {
	if e.Absent {
		return hal.EnvReading{}, false
	}
	return e.Reading, true
}

// Light 光照传感器替身；ReadyAfter 次 IsReady 调用后就绪，<0 永不就绪
type Light struct {
	Absent     bool
	ReadyAfter int
	Value      uint32

	Starts  int
	Stops   int
	checks  int
	running bool
}

func (l *Light) Present() bool { return !l.Absent }

func (l *Light) StartOneShot() bool {
	if l.Absent {
		return false
	}
	l.Starts++
	l.checks = 0
	l.running = true
	return true
}

func (l *Light) IsReady() bool {
	if !l.running || l.ReadyAfter < 0 {
		return false
	}
	l.checks++
	return l.checks > l.ReadyAfter
}

func (l *Light) Stop() {
	l.Stops++
	l.running = false
}

func (l *Light) Read() uint32 { return l.Value }

// Power 电源替身
type Power struct {
	VbatV    float32
	VbusV    float32
	Boot     uint32
	BootSeen bool
}

func (p *Power) Vbat() float32 { return p.VbatV }
func (p *Power) Vbus() float32 { return p.VbusV }

func (p *Power) BootCount() (uint32, bool) {
	if p.BootSeen {
		return 0, false
	}
	p.BootSeen = true
	return p.Boot, true
}

// Indicator 记录所有图案切换
type Indicator struct {
	Patterns []hal.LedPattern
}

func (i *Indicator) SetPattern(p hal.LedPattern) { i.Patterns = append(i.Patterns, p) }

// Last 最近一次图案
func (i *Indicator) Last() hal.LedPattern {
	if len(i.Patterns) == 0 {
		return hal.LedOff
	}
	return i.Patterns[len(i.Patterns)-1]
}

// Sleeper 记录休眠并推进虚拟时钟
type Sleeper struct {
	Clock    *Clock
	Prepares int
	Recovers int
	Slept    []uint32
	// Cut>0 模拟提前唤醒：只推进 Cut
	Cut time.Duration
}

func (s *Sleeper) Prepare() { s.Prepares++ }
func (s *Sleeper) Recover() { s.Recovers++ }

func (s *Sleeper) Sleep(seconds uint32) {
	s.Slept = append(s.Slept, seconds)
	if s.Clock == nil {
		return
	}
	if s.Cut > 0 {
		s.Clock.Advance(s.Cut)
		return
	}
	s.Clock.Advance(time.Duration(seconds) * time.Second)
}

// Console 调试连接替身
type Console struct {
	IsAttached bool
}

func (c *Console) Attached() bool { return c.IsAttached }
