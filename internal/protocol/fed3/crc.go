package fed3

import "errors"

// ErrCRCShort 数据不足以包含两字节 CRC
var ErrCRCShort = errors.New("frame too short for crc")

// CRC16 计算 Modbus RTU CRC-16（反射多项式 0xA001，初值 0xFFFF）
// 返回值低字节为 crcLo，即帧中先发送的字节
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// swappedCRC 交换高低字节后的 CRC，与帧尾两字节按大端读出的值直接可比
func swappedCRC(data []byte) uint16 {
	crc := CRC16(data)
	return crc<<8 | crc>>8
}

// AppendCRC 在数据末尾追加 crcLo、crcHi
func AppendCRC(data []byte) []byte {
	crc := CRC16(data)
	out := make([]byte, len(data), len(data)+2)
	copy(out, data)
	return append(out, byte(crc), byte(crc>>8))
}

// VerifyCRC 校验以 CRC 结尾的完整帧
func VerifyCRC(frame []byte) error {
	if len(frame) < 2 {
		return ErrCRCShort
	}
	n := len(frame) - 2
	got := uint16(frame[n])<<8 | uint16(frame[n+1])
	if swappedCRC(frame[:n]) != got {
		return ErrBadCRC
	}
	return nil
}
