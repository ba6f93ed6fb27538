package loop

import (
	"fmt"
	"strings"
)

// State 测量循环状态
type State uint8

const (
	StateNoChange State = iota
	StateInitial
	StateInactive
	StateSleeping
	StateWarmup
	StateMeasure
	StateTransmit
	StateFinal
)

var stateNames = [...]string{
	StateNoChange: "stNoChange",
	StateInitial:  "stInitial",
	StateInactive: "stInactive",
	StateSleeping: "stSleeping",
	StateWarmup:   "stWarmup",
	StateMeasure:  "stMeasure",
	StateTransmit: "stTransmit",
	StateFinal:    "stFinal",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("st%d", uint8(s))
}

// DebugFlags 日志类别开关
type DebugFlags uint32

const (
	DebugError DebugFlags = 1 << iota
	DebugWarning
	DebugTrace
	DebugInfo
)

// DefaultDebugFlags 默认开启错误与告警
const DefaultDebugFlags = DebugError | DebugWarning

// Has 是否开启
func (f DebugFlags) Has(mask DebugFlags) bool { return f&mask != 0 }

// ParseDebugFlags 解析 "error,warning,trace,info"
func ParseDebugFlags(names []string) (DebugFlags, error) {
	var f DebugFlags
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "":
		case "error":
			f |= DebugError
		case "warning", "warn":
			f |= DebugWarning
		case "trace":
			f |= DebugTrace
		case "info":
			f |= DebugInfo
		default:
			return 0, fmt.Errorf("unknown debug flag %q", n)
		}
	}
	return f, nil
}
