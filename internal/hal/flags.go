package hal

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// OperatingFlags 运行标志位
type OperatingFlags uint32

const (
	FlagUnattended        OperatingFlags = 1 << 0
	FlagManufacturingTest OperatingFlags = 1 << 1
	FlagConfirmedUplink   OperatingFlags = 1 << 16
	FlagDisableDeepSleep  OperatingFlags = 1 << 17
	FlagQuickLightSleep   OperatingFlags = 1 << 18
	FlagDeepSleepTest     OperatingFlags = 1 << 19
)

// Has 判断是否包含全部给定标志
func (f OperatingFlags) Has(mask OperatingFlags) bool {
	return f&mask == mask
}

// FlagsProvider 运行标志提供者
type FlagsProvider interface {
	OperatingFlags() OperatingFlags
}

// FlagStore 可并发更新的运行标志（HTTP 控制面写，主循环读）
type FlagStore struct {
	v atomic.Uint32
}

// NewFlagStore 以初始值创建
func NewFlagStore(initial OperatingFlags) *FlagStore {
	s := &FlagStore{}
	s.v.Store(uint32(initial))
	return s
}

func (s *FlagStore) OperatingFlags() OperatingFlags {
	return OperatingFlags(s.v.Load())
}

// Set 覆盖全部标志
func (s *FlagStore) Set(f OperatingFlags) {
	s.v.Store(uint32(f))
}

var flagNames = map[string]OperatingFlags{
	"unattended":         FlagUnattended,
	"manufacturing-test": FlagManufacturingTest,
	"confirmed-uplink":   FlagConfirmedUplink,
	"disable-deep-sleep": FlagDisableDeepSleep,
	"quick-light-sleep":  FlagQuickLightSleep,
	"deep-sleep-test":    FlagDeepSleepTest,
}

// ParseOperatingFlags 按名称列表组合运行标志
func ParseOperatingFlags(names []string) (OperatingFlags, error) {
	var f OperatingFlags
	for _, n := range names {
		bit, ok := flagNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown operating flag %q", n)
		}
		f |= bit
	}
	return f, nil
}
