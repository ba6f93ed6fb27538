package fed3

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RetrievalEvent 表示取粒事件的 EventActive 取值；此时时间字段为取粒耗时
const RetrievalEvent = 11

var defaultSessions = []string{
	"ClassicFED3",
	"ClosedEconomy_PR1",
	"Dispenser",
	"Extinction",
	"FixedRatio1",
	"FR_Customizable",
	"FreeFeeding",
	"MenuExample",
	"Optogenetic_Self_Stim",
	"Pavlovian",
	"ProbReversalTask",
	"ProgressiveRatio",
	"RandomRatio",
}

var defaultEvents = []string{
	"Left",
	"LeftShort",
	"LeftWithPellet",
	"LeftinTimeout",
	"LeftDuringDispense",
	"Right",
	"RightShort",
	"RightWithPellet",
	"RightinTimeout",
	"RightDuringDispense",
	"Dispense",
	"Pellet",
}

// Names 会话类型与事件名称表（下标来自设备上报字节）
type Names struct {
	Sessions []string `yaml:"sessions"`
	Events   []string `yaml:"events"`
}

// DefaultNames 内置名称表
func DefaultNames() *Names {
	return &Names{
		Sessions: append([]string(nil), defaultSessions...),
		Events:   append([]string(nil), defaultEvents...),
	}
}

// LoadNames 从 YAML 文件加载名称表，缺失的表回退为内置表
func LoadNames(path string) (*Names, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var n Names
	if err := yaml.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("parse names %s: %w", path, err)
	}
	if len(n.Sessions) == 0 {
		n.Sessions = append([]string(nil), defaultSessions...)
	}
	if len(n.Events) == 0 {
		n.Events = append([]string(nil), defaultEvents...)
	}
	return &n, nil
}

// Session 下标越界时返回 unknown(N)，不拒绝整帧
func (n *Names) Session(i uint8) string {
	return lookup(n.Sessions, i)
}

// Event 同 Session
func (n *Names) Event(i uint8) string {
	return lookup(n.Events, i)
}

func lookup(table []string, i uint8) string {
	if int(i) < len(table) {
		return table[i]
	}
	return fmt.Sprintf("unknown(%d)", i)
}
