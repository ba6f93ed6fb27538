package uplink

import (
	"math"

	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
	"go.uber.org/zap"
)

// FormatID 上行帧格式字节
const FormatID = 0x24

// lightScale 光照原始值为 24 位
var lightScale = math.Ldexp(1, 24)

// Frame 一次编码结果；Bytes 为独立副本，不随快照变化
type Frame struct {
	Bytes      []byte
	Flags      measurement.Flags // 实际写入的 mask
	EventIndex int               // 未携带事件时为 -1
	Event      *fed3.EventInfo   // 事件诊断解读，可能为 nil
	Truncated  bool
}

// Encoder 将快照与一条缓存事件序列化为 0x24 格式上行帧
//
// 字段顺序（各字段仅在 mask 对应位置位时出现）：
//
//	format | mask | Vbat(2) | Vbus(2) | Boot(1) | T(2) P(2) RH(2) | Light(2) | event(n)
type Encoder struct {
	indicator hal.Indicator
	names     *fed3.Names
	log       *zap.Logger
}

// NewEncoder indicator/names/log 均可为 nil
func NewEncoder(indicator hal.Indicator, names *fed3.Names, log *zap.Logger) *Encoder {
	if names == nil {
		names = fed3.DefaultNames()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Encoder{indicator: indicator, names: names, log: log}
}

// Encode 编码快照；index 指定携带的缓存事件
func (e *Encoder) Encode(s *measurement.Snapshot, index int) *Frame {
	e.setPattern(hal.LedOff)
	e.setPattern(hal.LedMeasuring)
	defer e.setPattern(hal.LedOff)

	flags := s.Flags.Without(measurement.FlagVcc)
	var event *fed3.EventRecord
	if flags.Has(measurement.FlagFED3) {
		if rec, ok := s.Events.At(index); ok {
			event = rec
		} else {
			flags = flags.Without(measurement.FlagFED3)
		}
	}

	var b TxBuffer
	b.Begin()
	b.Put(FormatID)
	b.Put(byte(flags))

	if flags.Has(measurement.FlagVbat) {
		e.log.Debug("vbat", zap.Int("mV", int(s.Vbat*1000)))
		b.PutV(s.Vbat)
	}
	if flags.Has(measurement.FlagVbus) {
		e.log.Debug("vbus", zap.Int("mV", int(s.Vbus*1000)))
		b.PutV(s.Vbus)
	}
	if flags.Has(measurement.FlagBoot) {
		b.PutBootCountLsb(s.BootCount)
	}
	if flags.Has(measurement.FlagTPH) {
		e.log.Debug("tph",
			zap.Float32("t", s.Env.Temperature),
			zap.Float32("p", s.Env.Pressure),
			zap.Float32("rh", s.Env.Humidity))
		b.PutT(s.Env.Temperature)
		b.PutP(s.Env.Pressure)
		b.PutRH(s.Env.Humidity)
	}
	if flags.Has(measurement.FlagLight) {
		e.log.Debug("light", zap.Float32("white", s.Light))
		b.PutLux(F2Uflt16(float64(s.Light) / lightScale))
	}

	f := &Frame{Flags: flags, EventIndex: -1}
	if event != nil {
		b.PutBytes(event.Bytes())
		f.EventIndex = index
		info, err := fed3.Describe(event, e.names)
		if err != nil {
			e.log.Debug("fed3 event not decodable", zap.Int("index", index), zap.Int("len", event.Len()), zap.Error(err))
		} else {
			f.Event = info
			e.log.Debug("fed3 event", zap.Int("index", index), zap.Binary("raw", event.Bytes()), zap.Stringer("info", info))
		}
	}

	f.Bytes = append([]byte(nil), b.Bytes()...)
	f.Truncated = b.Truncated()
	if f.Truncated {
		e.log.Error("uplink frame exceeds budget, truncated", zap.Int("max", MaxFrameSize))
	}
	return f
}

func (e *Encoder) setPattern(p hal.LedPattern) {
	if e.indicator != nil {
		e.indicator.SetPattern(p)
	}
}
