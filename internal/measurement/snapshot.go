package measurement

import "github.com/taoyao-code/fed3-node/internal/hal"

// Snapshot 一个采集周期的全部测量值
// 值类型：赋值即深拷贝（事件缓冲为定长数组）
type Snapshot struct {
	Flags     Flags
	Vbat      float32 // V
	Vbus      float32 // V
	BootCount uint32
	Env       hal.EnvReading
	Light     float32 // 原始线性值
	Events    EventRing
}

// Reset 清空全部字段与位图
func (s *Snapshot) Reset() {
	*s = Snapshot{}
}

// EventCount 已缓存事件数
func (s *Snapshot) EventCount() int {
	return s.Events.Len()
}
