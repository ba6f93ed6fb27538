package sim

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/hal"
)

// Indicator 以日志代替指示灯
type Indicator struct {
	logger  *zap.Logger
	current atomic.Uint32
}

// NewIndicator 创建指示灯
func NewIndicator(logger *zap.Logger) *Indicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indicator{logger: logger}
}

func (i *Indicator) SetPattern(p hal.LedPattern) {
	if hal.LedPattern(i.current.Swap(uint32(p))) != p {
		i.logger.Debug("led", zap.Stringer("pattern", p))
	}
}

// Pattern 当前图案
func (i *Indicator) Pattern() hal.LedPattern {
	return hal.LedPattern(i.current.Load())
}

// Sleeper 阻塞式休眠；ctx 取消或 Wake 可提前唤醒
type Sleeper struct {
	ctx    context.Context
	wake   chan struct{}
	logger *zap.Logger
}

// NewSleeper 创建休眠器
func NewSleeper(ctx context.Context, logger *zap.Logger) *Sleeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sleeper{ctx: ctx, wake: make(chan struct{}, 1), logger: logger}
}

// Prepare 丢弃休眠前积压的唤醒，只有进入休眠后的 Wake 才能打断
func (s *Sleeper) Prepare() {
	select {
	case <-s.wake:
	default:
	}
	s.logger.Debug("deep sleep: peripherals off")
}
func (s *Sleeper) Recover() { s.logger.Debug("deep sleep: peripherals restored") }

func (s *Sleeper) Sleep(seconds uint32) {
	t := time.NewTimer(time.Duration(seconds) * time.Second)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.wake:
		s.logger.Info("deep sleep interrupted")
	case <-s.ctx.Done():
	}
}

// Wake 唤醒正在进行的 Sleep；Prepare 与 Sleep 之间到达的唤醒同样生效
func (s *Sleeper) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Console 以标准输出是否为终端判断调试连接
type Console struct {
	fd uintptr
}

// NewConsole 探测 os.Stdout
func NewConsole() *Console { return &Console{fd: os.Stdout.Fd()} }

func (c *Console) Attached() bool {
	return isatty.IsTerminal(c.fd) || isatty.IsCygwinTerminal(c.fd)
}

// Clock 实时时钟；ctx 取消后 Sleep 立即返回，避免关闭时卡在休眠倒计时
type Clock struct {
	ctx context.Context
}

// NewClock 创建实时时钟
func NewClock(ctx context.Context) *Clock { return &Clock{ctx: ctx} }

func (c *Clock) Now() time.Time { return time.Now() }

func (c *Clock) Sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.ctx.Done():
	}
}
