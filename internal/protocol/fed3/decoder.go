package fed3

import (
	"time"

	"github.com/taoyao-code/fed3-node/internal/hal"
	"go.uber.org/zap"
)

// DefaultT35 约 3.5 个字符时间的帧间静默
const DefaultT35 = 5 * time.Millisecond

// Link 串口设备链路（非阻塞）
type Link interface {
	// Available 当前可读字节数
	Available() int
	// ReadByte 读出一个已到达的字节
	ReadByte() (byte, error)
}

// Result 一次完整捕获的解码结果
type Result struct {
	Code   ErrorCode
	MsgID  byte
	Size   int // 捕获的字节数（溢出时为截断后的长度）
	Record EventRecord
}

// Decoder 以静默超时切分帧的串口解码器
// 字节数连续两次轮询不变且超过 t35 后，视为一帧结束
type Decoder struct {
	link  Link
	clock hal.Clock
	t35   time.Duration
	log   *zap.Logger

	lastAvail int
	deadline  time.Time

	buf [IntakeSize]byte
	n   int

	rxCount  uint32
	errCount uint32
}

// NewDecoder 创建解码器；t35<=0 时使用 DefaultT35
func NewDecoder(link Link, clock hal.Clock, t35 time.Duration, log *zap.Logger) *Decoder {
	if t35 <= 0 {
		t35 = DefaultT35
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{link: link, clock: clock, t35: t35, log: log}
}

// Poll 轮询链路；仅当一帧捕获完成时返回 ok=true
func (d *Decoder) Poll() (res Result, ok bool) {
	if d.link == nil {
		return res, false
	}
	avail := d.link.Available()
	if avail == 0 {
		return res, false
	}
	if avail != d.lastAvail {
		d.lastAvail = avail
		d.deadline = d.clock.Now().Add(d.t35)
		return res, false
	}
	if d.clock.Now().Before(d.deadline) {
		return res, false
	}
	d.lastAvail = 0
	return d.capture(), true
}

// capture 读出全部已到达字节并校验
func (d *Decoder) capture() Result {
	overflow := false
	d.n = 0
	for d.link.Available() > 0 {
		b, err := d.link.ReadByte()
		if err != nil {
			break
		}
		if d.n >= len(d.buf) {
			overflow = true
			continue
		}
		d.buf[d.n] = b
		d.n++
	}
	d.rxCount++

	frame := d.buf[:d.n]
	res := Result{Size: d.n}
	if d.n > 0 {
		res.MsgID = frame[OffsetID]
	}

	code := Validate(frame)
	if overflow {
		// 截断内容仍做一次校验，仅用于诊断
		d.log.Debug("fed3 intake overflow", zap.Int("kept", d.n), zap.Stringer("truncated_check", code))
		code = BuffOverflow
	}
	res.Code = code
	if code != Success {
		d.errCount++
		d.log.Debug("fed3 frame rejected",
			zap.Stringer("code", code),
			zap.Uint8("msg_id", res.MsgID),
			zap.Int("size", d.n))
		return res
	}
	res.Record = NewEventRecord(Payload(frame))
	return res
}

// RxCount 捕获次数（含失败）
func (d *Decoder) RxCount() uint32 { return d.rxCount }

// ErrCount 失败次数
func (d *Decoder) ErrCount() uint32 { return d.errCount }

// ResetCounters 清零诊断计数
func (d *Decoder) ResetCounters() {
	d.rxCount = 0
	d.errCount = 0
}
