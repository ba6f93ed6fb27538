package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/loop"
)

var (
	// ErrCommandQueueFull 控制命令队列已满
	ErrCommandQueueFull = errors.New("command queue full")
	// ErrRunnerStopped 运行循环已退出
	ErrRunnerStopped = errors.New("runner stopped")
)

const (
	defaultCommandQueue = 16
	shutdownGrace       = 5 * time.Second
)

// Stepper 运行循环驱动的测量循环
type Stepper interface {
	Begin()
	End()
	Poll()
	RequestActive(enable bool)
	SetTxCycleTime(seconds, burstCount uint32)
	Running() bool
	Status() loop.Status
}

// Waker 打断正在进行的深度休眠
type Waker interface {
	Wake()
}

type command func(s Stepper)

// Runner 在单个 goroutine 中拥有测量循环：按固定间隔 Poll，
// 在两次 Poll 之间执行排队的控制命令，并发布状态快照。
type Runner struct {
	step     Stepper
	interval time.Duration
	waker    Waker
	logger   *zap.Logger

	cmds     chan command
	done     chan struct{}
	status   atomic.Pointer[loop.Status]
	lastStep atomic.Int64
}

// NewRunner 创建运行循环；waker 可为 nil
func NewRunner(step Stepper, interval time.Duration, queueSize int, waker Waker, logger *zap.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = defaultCommandQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		step:     step,
		interval: interval,
		waker:    waker,
		logger:   logger,
		cmds:     make(chan command, queueSize),
		done:     make(chan struct{}),
	}
	st := step.Status()
	r.status.Store(&st)
	return r
}

// Run 阻塞直到 ctx 取消且测量循环结束（或超过关闭宽限期）
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	r.step.Begin()
	r.publish()
	r.logger.Info("run loop started", zap.Duration("poll_interval", r.interval))

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case cmd := <-r.cmds:
			cmd(r.step)
			r.publish()
		case <-t.C:
			r.step.Poll()
			r.publish()
		}
	}
}

// shutdown 请求结束并继续轮询，直到进入终止状态
func (r *Runner) shutdown() {
	r.step.End()
	deadline := time.Now().Add(shutdownGrace)
	for r.step.Running() && time.Now().Before(deadline) {
		time.Sleep(r.interval)
		r.step.Poll()
		r.step.End()
	}
	r.publish()
	if r.step.Running() {
		r.logger.Warn("run loop stopped before reaching final state", zap.String("state", r.Status().State))
		return
	}
	r.logger.Info("run loop stopped")
}

func (r *Runner) publish() {
	st := r.step.Status()
	r.status.Store(&st)
	r.lastStep.Store(time.Now().UnixNano())
}

func (r *Runner) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-r.done:
		return ErrRunnerStopped
	default:
	}
	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrCommandQueueFull
	}
	if r.waker != nil {
		r.waker.Wake()
	}
	return nil
}

// RequestActive 投递激活/停用请求
func (r *Runner) RequestActive(ctx context.Context, enable bool) error {
	return r.enqueue(ctx, func(s Stepper) { s.RequestActive(enable) })
}

// SetCycle 投递上行周期修改
func (r *Runner) SetCycle(ctx context.Context, seconds, burst uint32) error {
	return r.enqueue(ctx, func(s Stepper) { s.SetTxCycleTime(seconds, burst) })
}

// Status 最近一次发布的状态快照
func (r *Runner) Status() loop.Status {
	return *r.status.Load()
}

// LastStep 最近一次轮询或命令执行时间
func (r *Runner) LastStep() time.Time {
	ns := r.lastStep.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// LastUplinkAt 最近一次上行帧的时间；尚无上行时为零值
func (r *Runner) LastUplinkAt() time.Time {
	if u := r.Status().LastUplink; u != nil {
		return u.At
	}
	return time.Time{}
}

// Done 运行循环退出后关闭
func (r *Runner) Done() <-chan struct{} { return r.done }
