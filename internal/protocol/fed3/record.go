package fed3

import (
	"encoding/binary"
	"fmt"
)

// RecordSize 单条事件记录的固定容量
const RecordSize = 42

// EventPayloadSize 喂食器事件负载的实际字段长度
const EventPayloadSize = 35

// EventRecord 一帧解码后的负载字节（对解码器与缓冲区不透明）
type EventRecord struct {
	data [RecordSize]byte
	n    uint8
}

// NewEventRecord 复制负载；超过 RecordSize 的部分截断
func NewEventRecord(payload []byte) EventRecord {
	var r EventRecord
	r.n = uint8(copy(r.data[:], payload))
	return r
}

// Bytes 返回有效负载
func (r *EventRecord) Bytes() []byte {
	return r.data[:r.n]
}

// Len 有效负载长度
func (r *EventRecord) Len() int {
	return int(r.n)
}

// EventInfo 事件记录的诊断解读
// 多字节字段按大端解释，事件类型按名称表下标解释
type EventInfo struct {
	Timestamp        uint32
	Version          [3]uint8 // major.minor.local
	DeviceNumber     uint16
	SessionType      uint8
	SessionName      string
	BatteryRaw       int16 // /4096 V
	MotorTurns       uint32
	FixedRatio       int16
	EventActive      uint8
	EventName        string
	EventTimeRaw     uint16 // 单位 4ms
	LeftCount        uint32
	RightCount       uint32
	PelletCount      uint32
	BlockPelletCount int16
}

// BatteryVolts 喂食器电池电压
func (e *EventInfo) BatteryVolts() float64 {
	return float64(e.BatteryRaw) / 4096.0
}

// IsRetrieval 时间字段是否为取粒耗时（否则为触碰时长）
func (e *EventInfo) IsRetrieval() bool {
	return e.EventActive == RetrievalEvent
}

// EventTimeMs 时间字段换算为毫秒
func (e *EventInfo) EventTimeMs() uint32 {
	return uint32(e.EventTimeRaw) * 4
}

// VersionString 固件版本 major.minor.local
func (e *EventInfo) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", e.Version[0], e.Version[1], e.Version[2])
}

func (e *EventInfo) String() string {
	timeKind := "pokeTime"
	if e.IsRetrieval() {
		timeKind = "retrievalTime"
	}
	return fmt.Sprintf(
		"ts=%d ver=%s dev=%d session=[%d]%s vbat=%dmV motorTurns=%d fr=%d event=[%d]%s %s=%dms left=%d right=%d pellets=%d blockPellets=%d",
		e.Timestamp, e.VersionString(), e.DeviceNumber, e.SessionType, e.SessionName,
		int(e.BatteryVolts()*1000), e.MotorTurns, e.FixedRatio, e.EventActive, e.EventName,
		timeKind, e.EventTimeMs(), e.LeftCount, e.RightCount, e.PelletCount, e.BlockPelletCount,
	)
}

// Describe 解读事件记录；names 为 nil 时使用内置名称表
func Describe(r *EventRecord, names *Names) (*EventInfo, error) {
	b := r.Bytes()
	if len(b) < EventPayloadSize {
		return nil, ErrShortRecord
	}
	if names == nil {
		names = DefaultNames()
	}
	be := binary.BigEndian
	e := &EventInfo{
		Timestamp:        be.Uint32(b[0:4]),
		Version:          [3]uint8{b[4], b[5], b[6]},
		DeviceNumber:     be.Uint16(b[7:9]),
		SessionType:      b[9],
		BatteryRaw:       int16(be.Uint16(b[10:12])),
		MotorTurns:       be.Uint32(b[12:16]),
		FixedRatio:       int16(be.Uint16(b[16:18])),
		EventActive:      b[18],
		EventTimeRaw:     be.Uint16(b[19:21]),
		LeftCount:        be.Uint32(b[21:25]),
		RightCount:       be.Uint32(b[25:29]),
		PelletCount:      be.Uint32(b[29:33]),
		BlockPelletCount: int16(be.Uint16(b[33:35])),
	}
	e.SessionName = names.Session(e.SessionType)
	e.EventName = names.Event(e.EventActive)
	return e, nil
}

// EncodePayload 按设备布局序列化事件字段（Describe 的逆过程，供模拟与测试使用）
func EncodePayload(e *EventInfo) []byte {
	b := make([]byte, EventPayloadSize)
	be := binary.BigEndian
	be.PutUint32(b[0:4], e.Timestamp)
	copy(b[4:7], e.Version[:])
	be.PutUint16(b[7:9], e.DeviceNumber)
	b[9] = e.SessionType
	be.PutUint16(b[10:12], uint16(e.BatteryRaw))
	be.PutUint32(b[12:16], e.MotorTurns)
	be.PutUint16(b[16:18], uint16(e.FixedRatio))
	b[18] = e.EventActive
	be.PutUint16(b[19:21], e.EventTimeRaw)
	be.PutUint32(b[21:25], e.LeftCount)
	be.PutUint32(b[25:29], e.RightCount)
	be.PutUint32(b[29:33], e.PelletCount)
	be.PutUint16(b[33:35], uint16(e.BlockPelletCount))
	return b
}
