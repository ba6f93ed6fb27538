package measurement

import "strings"

// Flags 已采集字段的位图，数值即空口 mask 字节
type Flags uint8

const (
	FlagVbat  Flags = 1 << 0 // 电池电压
	FlagVcc   Flags = 1 << 1 // 系统电压（保留，不采集）
	FlagVbus  Flags = 1 << 2 // USB 总线电压
	FlagBoot  Flags = 1 << 3 // 启动计数
	FlagTPH   Flags = 1 << 4 // 温度/气压/湿度
	FlagLight Flags = 1 << 5 // 光照
	FlagFED3  Flags = 1 << 6 // 喂食器事件
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagVbat, "Vbat"},
	{FlagVcc, "Vcc"},
	{FlagVbus, "Vbus"},
	{FlagBoot, "Boot"},
	{FlagTPH, "TPH"},
	{FlagLight, "Light"},
	{FlagFED3, "FED3"},
}

// Has 是否包含 mask 中的全部位
func (f Flags) Has(mask Flags) bool {
	return mask != 0 && f&mask == mask
}

// Union 并集
func (f Flags) Union(o Flags) Flags { return f | o }

// Intersect 交集
func (f Flags) Intersect(o Flags) Flags { return f & o }

// Without 去除 mask 中的位
func (f Flags) Without(mask Flags) Flags { return f &^ mask }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}
