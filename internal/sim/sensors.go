// Package sim 提供主机侧模拟外设，使节点可以在工作站上运行
package sim

import (
	"math/rand/v2"
	"sync"
	"time"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/hal"
)

// Env 模拟温湿压传感器，读数围绕基准值抖动
type Env struct {
	cfg cfgpkg.EnvSensorConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEnv 创建环境传感器；seed 固定时读数序列可复现
func NewEnv(cfg cfgpkg.EnvSensorConfig, seed uint64) *Env {
	return &Env{cfg: cfg, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (e *Env) Read() (hal.EnvReading, bool) {
	if !e.cfg.Present {
		return hal.EnvReading{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	j := func(scale float32) float32 {
		return (e.rnd.Float32()*2 - 1) * e.cfg.Jitter * scale
	}
	rh := e.cfg.Humidity + j(5)
	if rh < 0 {
		rh = 0
	}
	if rh > 100 {
		rh = 100
	}
	return hal.EnvReading{
		Temperature: e.cfg.Temperature + j(1),
		Pressure:    e.cfg.Pressure + j(2),
		Humidity:    rh,
	}, true
}

// Light 模拟一次性光照采样：启动 latency 后就绪；latency<0 永不就绪
type Light struct {
	cfg   cfgpkg.LightSensorConfig
	clock hal.Clock

	started time.Time
	running bool
}

// NewLight 创建光照传感器
func NewLight(cfg cfgpkg.LightSensorConfig, clock hal.Clock) *Light {
	return &Light{cfg: cfg, clock: clock}
}

func (l *Light) Present() bool { return l.cfg.Present }

func (l *Light) StartOneShot() bool {
	if !l.cfg.Present {
		return false
	}
	l.started = l.clock.Now()
	l.running = true
	return true
}

func (l *Light) IsReady() bool {
	if !l.running || l.cfg.Latency < 0 {
		return false
	}
	return !l.clock.Now().Before(l.started.Add(l.cfg.Latency))
}

func (l *Light) Stop() { l.running = false }

func (l *Light) Read() uint32 { return l.cfg.Raw & 0xFFFFFF }

// Power 模拟电源；启动计数只报告一次
type Power struct {
	cfg cfgpkg.PowerConfig

	mu       sync.Mutex
	boot     uint32
	reported bool
}

// NewPower bootCount 为本次启动的计数
func NewPower(cfg cfgpkg.PowerConfig, bootCount uint32) *Power {
	return &Power{cfg: cfg, boot: bootCount}
}

func (p *Power) Vbat() float32 { return p.cfg.Vbat }
func (p *Power) Vbus() float32 { return p.cfg.Vbus }

func (p *Power) BootCount() (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reported {
		return 0, false
	}
	p.reported = true
	return p.boot, true
}
