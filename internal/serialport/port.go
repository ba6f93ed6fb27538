// Package serialport 将饲喂器串口接入解码器：后台 goroutine 读取字节，轮询侧按字节取出
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
)

// ErrEmpty 缓冲区无数据
var ErrEmpty = errors.New("serialport: no data available")

// Port 带接收缓冲的设备链路，实现 fed3.Link
type Port struct {
	rc     io.ReadCloser
	logger *zap.Logger
	limit  int

	mu       sync.Mutex
	buf      []byte
	dropped  uint64
	readErr  error
	lastRead time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// Open 打开串口并启动读取
func Open(cfg cfgpkg.SerialConfig, logger *zap.Logger) (*Port, error) {
	c := &serial.Config{Name: cfg.Port, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	return New(s, cfg.BufferSize, logger), nil
}

// New 以任意字节流构造链路；limit<=0 时使用 256
func New(rc io.ReadCloser, limit int, logger *zap.Logger) *Port {
	if limit <= 0 {
		limit = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Port{rc: rc, logger: logger, limit: limit, done: make(chan struct{})}
	p.wg.Add(1)
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer p.wg.Done()
	chunk := make([]byte, 64)
	for {
		n, err := p.rc.Read(chunk)
		if n > 0 {
			p.push(chunk[:n])
		}
		if err != nil {
			select {
			case <-p.done:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				// 读超时在部分平台返回 EOF
				continue
			}
			p.mu.Lock()
			p.readErr = err
			p.mu.Unlock()
			p.logger.Error("serial read failed", zap.Error(err))
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}

func (p *Port) push(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRead = time.Now()
	room := p.limit - len(p.buf)
	if room < len(b) {
		if room < 0 {
			room = 0
		}
		p.dropped += uint64(len(b) - room)
		b = b[:room]
	}
	p.buf = append(p.buf, b...)
}

// Available 已接收未取出的字节数
func (p *Port) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// ReadByte 取出一个字节
func (p *Port) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return 0, ErrEmpty
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	return b, nil
}

// Dropped 因缓冲区满丢弃的字节数
func (p *Port) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Err 读取 goroutine 的终止错误
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readErr
}

// LastRead 最近一次收到数据的时间
func (p *Port) LastRead() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRead
}

// Close 关闭串口并等待读取 goroutine 退出
func (p *Port) Close() error {
	close(p.done)
	err := p.rc.Close()
	p.wg.Wait()
	return err
}
