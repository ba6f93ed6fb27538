package hal

import "time"

// Radio 远距离无线上行链路（LoRaWAN 一类）
// SendFrame 返回 false 表示发送未能启动；启动后 onDone 只会被调用一次，
// 且可能在其他 goroutine 中回调。
type Radio interface {
	SendFrame(frame []byte, onDone func(success bool), confirmed bool, port uint8) bool
	IsProvisioned() bool
}

// EnvReading 温度/气压/湿度三元组
type EnvReading struct {
	Temperature float32 // °C
	Pressure    float32 // hPa
	Humidity    float32 // %RH
}

// EnvSensor 环境传感器；ok=false 表示传感器不存在或读取失败
type EnvSensor interface {
	Read() (EnvReading, bool)
}

// LightSensor 一次性光照采样
type LightSensor interface {
	Present() bool
	StartOneShot() bool
	IsReady() bool
	Stop()
	Read() uint32
}

// PowerMonitor 电池/总线电压与启动计数
type PowerMonitor interface {
	Vbat() float32
	Vbus() float32
	// BootCount 仅当自上次读取后发生过启动时返回 ok=true
	BootCount() (count uint32, ok bool)
}

// LedPattern 状态指示灯图案
type LedPattern uint8

const (
	LedOff LedPattern = iota
	LedMeasuring
	LedSending
	LedSleeping
	LedTwoShort
)

func (p LedPattern) String() string {
	switch p {
	case LedOff:
		return "off"
	case LedMeasuring:
		return "measuring"
	case LedSending:
		return "sending"
	case LedSleeping:
		return "sleeping"
	case LedTwoShort:
		return "two-short"
	default:
		return "unknown"
	}
}

// Indicator 状态指示灯
type Indicator interface {
	SetPattern(p LedPattern)
}

// Sleeper 低功耗休眠原语
// Prepare/Recover 在深度休眠前后关闭/恢复外设
type Sleeper interface {
	Prepare()
	Sleep(seconds uint32)
	Recover()
}

// Console 交互式调试连接探测
type Console interface {
	Attached() bool
}

// Clock 单调时钟；Sleep 在测试中可替换为推进虚拟时间
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock 基于 time 包的真实时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
