// Package tcpserver 串口转网络桥接入：饲喂器串口经 ser2net 一类设备转为 TCP，
// 节点监听端口，把收到的字节送入与本地串口相同的接收缓冲。
package tcpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/serialport"
)

// acquireTimeout 已有桥接连接时新连接的等待时间
const acquireTimeout = 200 * time.Millisecond

// Bridge 单连接 TCP 桥；嵌入的 Port 实现 fed3.Link
type Bridge struct {
	*serialport.Port

	addr   string
	idle   time.Duration
	logger *zap.Logger
	gate   *SessionGate
	pw     *io.PipeWriter

	ln    net.Listener
	wg    sync.WaitGroup
	stopC chan struct{}

	// 可选指标回调
	onAccept    func(accepted bool)
	onRecvBytes func(n int)
}

// NewBridge 创建桥；idle>0 时连接静默超过 idle 即断开，等待桥端重连
func NewBridge(addr string, bufferSize int, idle time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	pr, pw := io.Pipe()
	return &Bridge{
		Port:   serialport.New(pr, bufferSize, logger),
		addr:   addr,
		idle:   idle,
		logger: logger,
		gate:   NewSessionGate(1, acquireTimeout),
		pw:     pw,
		stopC:  make(chan struct{}),
	}
}

// SetMetricsCallbacks 设置指标回调
func (b *Bridge) SetMetricsCallbacks(onAccept func(accepted bool), onRecvBytes func(int)) {
	b.onAccept, b.onRecvBytes = onAccept, onRecvBytes
}

// Addr 实际监听地址（Start 之后有效）
func (b *Bridge) Addr() net.Addr {
	if b.ln == nil {
		return nil
	}
	return b.ln.Addr()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (b *Bridge) Start() error {
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return err
	}
	b.ln = ln

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			conn, err := b.ln.Accept()
			if err != nil {
				select {
				case <-b.stopC:
					return
				default:
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if err := b.gate.Enter(context.Background()); err != nil {
				b.logger.Warn("bridge busy, connection rejected", zap.String("remote", conn.RemoteAddr().String()))
				b.notifyAccept(false)
				_ = conn.Close()
				continue
			}
			b.notifyAccept(true)

			b.wg.Add(1)
			go func(c net.Conn) {
				defer b.wg.Done()
				defer b.gate.Leave()
				defer c.Close()
				b.serve(c)
			}(conn)
		}
	}()
	return nil
}

func (b *Bridge) notifyAccept(ok bool) {
	if b.onAccept != nil {
		b.onAccept(ok)
	}
}

func (b *Bridge) serve(c net.Conn) {
	remote := c.RemoteAddr().String()
	b.logger.Info("bridge connected", zap.String("remote", remote))

	// 关闭时中断阻塞中的 Read
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-b.stopC:
			_ = c.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, 512)
	for {
		if b.idle > 0 {
			_ = c.SetReadDeadline(time.Now().Add(b.idle))
		}
		n, err := c.Read(buf)
		if n > 0 {
			if b.onRecvBytes != nil {
				b.onRecvBytes(n)
			}
			if _, werr := b.pw.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				b.logger.Warn("bridge idle, closing", zap.String("remote", remote))
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				b.logger.Warn("bridge read failed", zap.String("remote", remote), zap.Error(err))
			}
			b.logger.Info("bridge disconnected", zap.String("remote", remote))
			return
		}
	}
}

// Connected 当前是否有桥接连接
func (b *Bridge) Connected() bool {
	return b.gate.Active() > 0
}

// Sessions 桥接会话统计
func (b *Bridge) Sessions() SessionStats {
	return b.gate.Stats()
}

// Shutdown 关闭监听与连接，并等待接收协程退出
func (b *Bridge) Shutdown(ctx context.Context) error {
	select {
	case <-b.stopC:
		return nil
	default:
	}
	close(b.stopC)
	if b.ln != nil {
		_ = b.ln.Close()
	}
	// 先关闭读端，使阻塞中的管道写入返回
	portErr := b.Port.Close()

	ch := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return portErr
	}
}

// Close 以默认超时关闭
func (b *Bridge) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.Shutdown(ctx)
}
