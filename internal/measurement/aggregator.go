package measurement

import (
	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
	"go.uber.org/zap"
)

// Aggregator 持有当前周期的快照，并从各传感器填充
// 传感器缺失或超时只降级负载，不阻塞流程
type Aggregator struct {
	power hal.PowerMonitor
	env   hal.EnvSensor
	light hal.LightSensor
	log   *zap.Logger

	data         Snapshot
	lightRunning bool
}

// NewAggregator env/light 为 nil 视为传感器不存在
func NewAggregator(power hal.PowerMonitor, env hal.EnvSensor, light hal.LightSensor, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{power: power, env: env, light: light, log: log}
}

// Reset 清空当前周期
func (a *Aggregator) Reset() {
	a.data.Reset()
}

// SampleSynchronous 读取电压、启动计数与环境三元组
func (a *Aggregator) SampleSynchronous() {
	if a.power != nil {
		a.data.Vbat = a.power.Vbat()
		a.data.Flags |= FlagVbat

		a.data.Vbus = a.power.Vbus()
		a.data.Flags |= FlagVbus

		if n, ok := a.power.BootCount(); ok {
			a.data.BootCount = n
			a.data.Flags |= FlagBoot
		}
	}

	if a.env != nil {
		if m, ok := a.env.Read(); ok {
			a.data.Env = m
			a.data.Flags |= FlagTPH
		}
	}
}

// StartLight 启动一次性光照采样；传感器不存在或启动失败返回 false
func (a *Aggregator) StartLight() bool {
	if a.light == nil || !a.light.Present() {
		return false
	}
	a.lightRunning = a.light.StartOneShot()
	return a.lightRunning
}

// PollLight 采样完成时读取数值并返回 true
func (a *Aggregator) PollLight() bool {
	if !a.lightRunning || !a.light.IsReady() {
		return false
	}
	raw := a.light.Read()
	a.light.Stop()
	a.lightRunning = false
	a.data.Light = float32(raw)
	a.data.Flags |= FlagLight
	return true
}

// AbandonLight 超时放弃本次采样，仍置位光照标志（数值为 0）
func (a *Aggregator) AbandonLight() {
	if a.light != nil && a.lightRunning {
		a.light.Stop()
	}
	a.lightRunning = false
	a.data.Flags |= FlagLight
}

// AppendEvent 追加一条成功解码的事件记录，返回是否淘汰了最旧记录
func (a *Aggregator) AppendEvent(rec fed3.EventRecord) bool {
	evicted := a.data.Events.Push(rec)
	a.data.Flags |= FlagFED3
	return evicted
}

// EventCount 已缓存事件数
func (a *Aggregator) EventCount() int {
	return a.data.Events.Len()
}

// Current 当前快照（只读借用）
func (a *Aggregator) Current() *Snapshot {
	return &a.data
}

// Copy 当前快照的独立副本
func (a *Aggregator) Copy() Snapshot {
	return a.data
}
