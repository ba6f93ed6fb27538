package loop

import "time"

// UplinkInfo 最近一次上行
type UplinkInfo struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Frame      string    `json:"frame"`
	Size       int       `json:"size"`
	Flags      string    `json:"flags"`
	EventIndex int       `json:"event_index"`
	Truncated  bool      `json:"truncated"`
}

// Status 循环状态快照
type Status struct {
	State        string      `json:"state"`
	Running      bool        `json:"running"`
	Active       bool        `json:"active"`
	EventCount   int         `json:"event_count"`
	BufferIndex  int         `json:"buffer_index"`
	TxPending    bool        `json:"tx_pending"`
	CycleSeconds uint32      `json:"cycle_seconds"`
	CycleCount   uint32      `json:"cycle_count"`
	NextUplinkIn float64     `json:"next_uplink_in_seconds"`
	SerialRx     uint32      `json:"serial_rx"`
	SerialErrors uint32      `json:"serial_errors"`
	LastUplink   *UplinkInfo `json:"last_uplink,omitempty"`
}

// Status 返回当前状态快照
func (l *Loop) Status() Status {
	s := Status{
		State:        l.machine.Current().String(),
		Running:      l.running,
		Active:       l.active,
		EventCount:   l.agg.EventCount(),
		BufferIndex:  l.bufferIndex,
		TxPending:    l.txPending,
		CycleSeconds: l.cycle.Seconds(),
		CycleCount:   l.cycle.Count(),
		NextUplinkIn: l.cycle.Timer().Remaining().Seconds(),
	}
	if l.decoder != nil {
		s.SerialRx = l.decoder.RxCount()
		s.SerialErrors = l.decoder.ErrCount()
	}
	if r := l.lastUplink; r != nil {
		s.LastUplink = &UplinkInfo{
			ID:         r.ID,
			At:         r.At,
			Frame:      r.FrameHex(),
			Size:       len(r.Frame),
			Flags:      r.Flags.String(),
			EventIndex: r.EventIndex,
			Truncated:  r.Truncated,
		}
	}
	return s
}
