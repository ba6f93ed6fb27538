package uplink

import "math"

// MaxFrameSize 上行负载预算
const MaxFrameSize = 52

// TxBuffer 定长上行缓冲，多字节字段一律大端
// 超出容量的字节被丢弃并标记截断
type TxBuffer struct {
	buf       [MaxFrameSize]byte
	n         int
	truncated bool
}

// Begin 清空缓冲
func (b *TxBuffer) Begin() {
	b.n = 0
	b.truncated = false
}

// Put 写入一个字节
func (b *TxBuffer) Put(c byte) {
	if b.n >= len(b.buf) {
		b.truncated = true
		return
	}
	b.buf[b.n] = c
	b.n++
}

// PutBytes 原样写入
func (b *TxBuffer) PutBytes(p []byte) {
	for _, c := range p {
		b.Put(c)
	}
}

// Put2 写入 16 位大端
func (b *TxBuffer) Put2(v uint16) {
	b.Put(byte(v >> 8))
	b.Put(byte(v))
}

// Put2sf 有符号 16 位，饱和
func (b *TxBuffer) Put2sf(v int64) {
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	b.Put2(uint16(int16(v)))
}

// Put2uf 无符号 16 位，饱和
func (b *TxBuffer) Put2uf(v int64) {
	if v > math.MaxUint16 {
		v = math.MaxUint16
	} else if v < 0 {
		v = 0
	}
	b.Put2(uint16(v))
}

// PutV 电压：v*4096
func (b *TxBuffer) PutV(v float32) {
	b.Put2sf(roundHalfAway(v * 4096))
}

// PutT 温度：°C*256
func (b *TxBuffer) PutT(t float32) {
	b.Put2sf(roundHalfAway(t * 256))
}

// PutP 气压：hPa*25（4 Pa 为单位）
func (b *TxBuffer) PutP(hpa float32) {
	b.Put2uf(roundHalfAway(hpa * 25))
}

// PutRH 湿度：RH/100*65535，截断
func (b *TxBuffer) PutRH(rh float32) {
	b.Put2uf(int64(rh / 100 * 65535))
}

// PutLux 已编码的 uflt16 光照值
func (b *TxBuffer) PutLux(v uint16) {
	b.Put2(v)
}

// PutBootCountLsb 启动计数仅发送低字节
func (b *TxBuffer) PutBootCountLsb(n uint32) {
	b.Put(byte(n))
}

// Bytes 已写入内容（引用内部数组）
func (b *TxBuffer) Bytes() []byte { return b.buf[:b.n] }

// Len 已写入字节数
func (b *TxBuffer) Len() int { return b.n }

// Truncated 是否有字节因超出预算被丢弃
func (b *TxBuffer) Truncated() bool { return b.truncated }

func roundHalfAway(v float32) int64 {
	return int64(math.Round(float64(v)))
}

// F2Uflt16 将 [0,1) 区间的值压缩为 uflt16：高 4 位指数，低 12 位尾数
// 解码：mantissa/4096 * 2^(exp-15)
func F2Uflt16(f float64) uint16 {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 1 {
		return 0xFFFF
	}
	normal, exp := math.Frexp(f)
	exp += 15
	if exp < 0 {
		// 下溢：按最小指数非规格化
		normal = math.Ldexp(normal, exp)
		exp = 0
	}
	fraction := uint32(math.Ldexp(normal, 12) + 0.5)
	if fraction >= 1<<12 {
		fraction = 1 << 11
		exp++
	}
	if exp > 15 {
		return 0xFFFF
	}
	return uint16(exp)<<12 | uint16(fraction)
}
