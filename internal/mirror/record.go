// Package mirror 将每个上行帧及其来源快照镜像到本地存储
package mirror

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
	"github.com/taoyao-code/fed3-node/internal/uplink"
)

// Record 一次上行的镜像记录
type Record struct {
	ID         string
	At         time.Time
	Port       uint8
	Confirmed  bool
	Frame      []byte
	Flags      measurement.Flags
	Truncated  bool
	Snapshot   measurement.Snapshot
	EventIndex int
	Event      *fed3.EventInfo
}

// NewRecord 由编码结果与快照副本构造镜像记录
func NewRecord(at time.Time, f *uplink.Frame, snap measurement.Snapshot, port uint8, confirmed bool) *Record {
	return &Record{
		ID:         uuid.NewString(),
		At:         at,
		Port:       port,
		Confirmed:  confirmed,
		Frame:      append([]byte(nil), f.Bytes...),
		Flags:      f.Flags,
		Truncated:  f.Truncated,
		Snapshot:   snap,
		EventIndex: f.EventIndex,
		Event:      f.Event,
	}
}

// FrameHex 帧的十六进制表示
func (r *Record) FrameHex() string {
	return hex.EncodeToString(r.Frame)
}
