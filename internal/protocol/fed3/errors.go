package fed3

import (
	"errors"
	"fmt"
)

var (
	ErrBuffOverflow = errors.New("buffer overflow")
	ErrRuntPacket   = errors.New("runt packet")
	ErrBadCRC       = errors.New("bad crc")
	ErrInvalidMsgID = errors.New("invalid message id")
	ErrShortRecord  = errors.New("short event record")
)

// ErrorCode 串口帧解码结果码，数值与设备端约定一致
type ErrorCode uint8

const (
	Success      ErrorCode = 0
	BuffOverflow ErrorCode = 1
	RuntPacket   ErrorCode = 2
	BadCRC       ErrorCode = 3
	InvalidMsgID ErrorCode = 4
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case BuffOverflow:
		return "buff_overflow"
	case RuntPacket:
		return "runt_packet"
	case BadCRC:
		return "bad_crc"
	case InvalidMsgID:
		return "invalid_msg_id"
	default:
		return fmt.Sprintf("code_%d", uint8(c))
	}
}

// Err 转换为哨兵错误；Success 返回 nil
func (c ErrorCode) Err() error {
	switch c {
	case Success:
		return nil
	case BuffOverflow:
		return ErrBuffOverflow
	case RuntPacket:
		return ErrRuntPacket
	case BadCRC:
		return ErrBadCRC
	case InvalidMsgID:
		return ErrInvalidMsgID
	default:
		return fmt.Errorf("fed3: unknown error code %d", uint8(c))
	}
}
