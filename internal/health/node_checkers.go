package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/fed3-node/internal/tcpserver"
)

// StepReporter 运行循环最近一次轮询时间
type StepReporter interface {
	LastStep() time.Time
}

// LoopChecker 运行循环存活检查：超过 stall 未轮询视为卡死
type LoopChecker struct {
	loop  StepReporter
	stall time.Duration
	now   func() time.Time
}

// NewLoopChecker 创建运行循环检查器
func NewLoopChecker(loop StepReporter, stall time.Duration) *LoopChecker {
	return &LoopChecker{loop: loop, stall: stall, now: time.Now}
}

func (c *LoopChecker) Name() string { return "loop" }

func (c *LoopChecker) Check(ctx context.Context) CheckResult {
	last := c.loop.LastStep()
	if last.IsZero() {
		return CheckResult{Status: StatusUnhealthy, Message: "loop not started"}
	}
	age := c.now().Sub(last)
	details := map[string]any{"last_step_age": age.String()}
	if age > c.stall {
		// 深度睡眠期间循环阻塞属于正常
		return CheckResult{Status: StatusDegraded, Message: "loop idle", Details: details}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
}

// LinkReporter 串口链路状态
type LinkReporter interface {
	Err() error
	Dropped() uint64
	LastRead() time.Time
}

// SessionReporter 串口转网络桥的会话状态
type SessionReporter interface {
	Connected() bool
	Sessions() tcpserver.SessionStats
}

// SerialChecker 饲喂器串口检查；桥接模式下无设备会话视为降级
type SerialChecker struct {
	link LinkReporter
}

// NewSerialChecker 创建串口检查器
func NewSerialChecker(link LinkReporter) *SerialChecker {
	return &SerialChecker{link: link}
}

func (c *SerialChecker) Name() string { return "serial" }

func (c *SerialChecker) Check(ctx context.Context) CheckResult {
	details := map[string]any{"dropped_bytes": c.link.Dropped()}
	if last := c.link.LastRead(); !last.IsZero() {
		details["last_read"] = last
	}
	if err := c.link.Err(); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("read failed: %v", err), Details: details}
	}
	if sr, ok := c.link.(SessionReporter); ok {
		details["bridge"] = sr.Sessions()
		if !sr.Connected() {
			return CheckResult{Status: StatusDegraded, Message: "no device connected to bridge", Details: details}
		}
	}
	if c.link.Dropped() > 0 {
		return CheckResult{Status: StatusDegraded, Message: "receive buffer overflowed", Details: details}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
}

// Pinger 可探活的外部服务
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker 通用探活检查；镜像目标需用 Optional 包装
type PingChecker struct {
	name string
	p    Pinger
}

// NewPingChecker 创建探活检查器
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, p: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.p.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Latency: time.Since(start)}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Latency: time.Since(start)}
}
