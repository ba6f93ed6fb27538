package fed3

// 设备链路帧布局：
// id[1] | addrHi[1] | addrLo[1] | byteCount[1] | payload[byteCount] | crcLo[1] | crcHi[1]
const (
	OffsetID      = 0
	OffsetAddrHi  = 1
	OffsetAddrLo  = 2
	OffsetByteCnt = 3

	HeaderSize = 4
	CRCSize    = 2

	// MinFrameSize 最短可校验帧
	MinFrameSize = 4
	// IntakeSize 接收缓冲容量，超出部分丢弃并判为溢出
	IntakeSize = 42

	// DeviceMsgID 喂食器上报帧的消息 ID
	DeviceMsgID = 0x01
)

// Validate 依次校验长度、CRC、消息 ID，遇到第一个失败即返回
func Validate(frame []byte) ErrorCode {
	if len(frame) < MinFrameSize {
		return RuntPacket
	}
	if VerifyCRC(frame) != nil {
		return BadCRC
	}
	if frame[OffsetID] != DeviceMsgID {
		return InvalidMsgID
	}
	return Success
}

// Payload 返回帧头与 CRC 之间的负载；帧过短时返回 nil
func Payload(frame []byte) []byte {
	if len(frame) < HeaderSize+CRCSize {
		return nil
	}
	return frame[HeaderSize : len(frame)-CRCSize]
}

// Build 构造一帧设备链路数据（与 Validate 对应）
func Build(id byte, addr uint16, payload []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(payload)+CRCSize)
	buf = append(buf, id, byte(addr>>8), byte(addr), byte(len(payload)))
	buf = append(buf, payload...)
	return AppendCRC(buf)
}
