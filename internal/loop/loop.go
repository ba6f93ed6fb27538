// Package loop 实现传感节点的测量循环：采集、缓存饲喂器事件、按周期上行并在间隙睡眠
package loop

import (
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/cycle"
	"github.com/taoyao-code/fed3-node/internal/fsm"
	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/metrics"
	"github.com/taoyao-code/fed3-node/internal/mirror"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
	"github.com/taoyao-code/fed3-node/internal/uplink"
)

const (
	DefaultWarmup       = 5 * time.Second
	DefaultLightTimeout = time.Second
	DefaultUplinkPort   = 2

	// 剩余时间超过该值才进入睡眠
	sleepThreshold = 1500 * time.Millisecond
	// 深度睡眠的最短时长（秒）
	minDeepSleepSeconds    = 2
	deepSleepCountdown     = 30
	deepSleepCountdownTest = 10
	deepSleepSettle        = 100 * time.Millisecond
)

// Options 循环参数
type Options struct {
	Warmup       time.Duration
	LightTimeout time.Duration
	UplinkPort   uint8
	// DeepSleep 平台是否具备深度睡眠能力
	DeepSleep bool

	InitialCycleSeconds   uint32
	BurstCount            uint32
	PermanentCycleSeconds uint32

	T35   time.Duration
	Debug DebugFlags
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		Warmup:                DefaultWarmup,
		LightTimeout:          DefaultLightTimeout,
		UplinkPort:            DefaultUplinkPort,
		DeepSleep:             true,
		InitialCycleSeconds:   cycle.DefaultInitialSeconds,
		BurstCount:            cycle.DefaultBurstCount,
		PermanentCycleSeconds: cycle.DefaultPermanentSeconds,
		T35:                   fed3.DefaultT35,
		Debug:                 DefaultDebugFlags,
	}
}

// Mirror 上行镜像接收方
type Mirror interface {
	Submit(rec *mirror.Record)
}

// Deps 外部依赖；除 Clock 与 Radio 外均可为 nil
type Deps struct {
	Clock     hal.Clock
	Link      fed3.Link
	Radio     hal.Radio
	Power     hal.PowerMonitor
	Env       hal.EnvSensor
	Light     hal.LightSensor
	Indicator hal.Indicator
	Sleeper   hal.Sleeper
	Console   hal.Console
	Flags     hal.FlagsProvider
	Names     *fed3.Names
	Mirror    Mirror
	Metrics   *metrics.NodeMetrics
	Logger    *zap.Logger
}

type txResult struct {
	seq uint32
	ok  bool
}

// Loop 测量循环。非并发安全：所有方法须在同一个 goroutine 中调用，
// 发送完成回调只会写入内部通道，由 Poll 消费。
type Loop struct {
	opts Options
	deps Deps
	log  *zap.Logger

	machine *fsm.Machine[State]
	agg     *measurement.Aggregator
	encoder *uplink.Encoder
	decoder *fed3.Decoder
	cycle   *cycle.Controller

	// 单次定时器
	timerStart  time.Time
	timerDelay  time.Duration
	timerActive bool
	timerEvent  bool

	running         bool
	exit            bool
	active          bool
	rqActive        bool
	rqInactive      bool
	printedSleeping bool
	// 深度睡眠倒计时剩余格数，0 表示未在倒计时
	countdown int

	txPending  bool
	txComplete bool
	txErr      bool
	txSeq      uint32
	txDone     chan txResult

	bufferIndex int
	lastUplink  *mirror.Record
}

// New 创建测量循环
func New(opts Options, deps Deps) *Loop {
	if deps.Clock == nil {
		deps.Clock = hal.SystemClock{}
	}
	if deps.Names == nil {
		deps.Names = fed3.DefaultNames()
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Warmup <= 0 {
		opts.Warmup = DefaultWarmup
	}
	if opts.LightTimeout <= 0 {
		opts.LightTimeout = DefaultLightTimeout
	}
	if opts.UplinkPort == 0 {
		opts.UplinkPort = DefaultUplinkPort
	}

	timer := cycle.NewTimer(deps.Clock, time.Duration(opts.InitialCycleSeconds)*time.Second)
	l := &Loop{
		opts:    opts,
		deps:    deps,
		log:     log,
		agg:     measurement.NewAggregator(deps.Power, deps.Env, deps.Light, log),
		encoder: uplink.NewEncoder(deps.Indicator, deps.Names, log),
		cycle:   cycle.NewController(timer, opts.InitialCycleSeconds, opts.BurstCount, opts.PermanentCycleSeconds, log),
		txDone:  make(chan txResult, 4),
	}
	if deps.Link != nil {
		l.decoder = fed3.NewDecoder(deps.Link, deps.Clock, opts.T35, log)
	}
	l.machine = fsm.New(StateInitial, StateNoChange, l.dispatch)
	l.machine.OnEnter(l.onEnter)
	return l
}

// Begin 启动状态机
func (l *Loop) Begin() {
	if l.running {
		return
	}
	l.running = true
	l.exit = false
	l.machine.Eval()
}

// End 请求停止；在 Inactive 或 Sleeping 中生效
func (l *Loop) End() {
	if !l.running {
		return
	}
	l.exit = true
	l.machine.Eval()
}

// RequestActive 请求激活或停用
func (l *Loop) RequestActive(enable bool) {
	if enable {
		l.rqActive = true
	} else {
		l.rqInactive = true
	}
	l.machine.Eval()
}

// SetTxCycleTime 设置上行周期与突发次数；有到期节拍时立即求值
func (l *Loop) SetTxCycleTime(seconds, burstCount uint32) {
	if l.cycle.SetInterval(seconds, burstCount) {
		l.machine.Eval()
	}
}

// Poll 周期调用：收取串口帧、检查定时器与发送完成，有事件时求值
func (l *Loop) Poll() {
	fEvent := l.drainTxDone()

	if !l.active {
		if fEvent {
			l.machine.Eval()
		}
		return
	}

	l.updateFeederData()

	if l.timerActive && !l.deps.Clock.Now().Before(l.timerStart.Add(l.timerDelay)) {
		l.timerActive = false
		l.timerEvent = true
		fEvent = true
	}
	if l.cycle.Timer().PeekTicks() != 0 {
		fEvent = true
	}
	// 异步光照读数需要轮询就绪
	if l.machine.Current() == StateMeasure {
		fEvent = true
	}
	if fEvent {
		l.machine.Eval()
	}
}

// State 当前状态
func (l *Loop) State() State { return l.machine.Current() }

// Running 是否已启动且未结束
func (l *Loop) Running() bool { return l.running }

// Active 是否处于激活状态
func (l *Loop) Active() bool { return l.active }

// updateFeederData 轮询串口解码器，成功帧追加到事件缓冲
func (l *Loop) updateFeederData() {
	if l.decoder == nil {
		return
	}
	res, ok := l.decoder.Poll()
	if !ok {
		return
	}
	if m := l.deps.Metrics; m != nil {
		m.SerialFramesTotal.WithLabelValues(res.Code.String()).Inc()
	}
	if res.Code != fed3.Success {
		if l.opts.Debug.Has(DebugWarning) {
			l.log.Warn("device frame rejected",
				zap.String("code", res.Code.String()),
				zap.Int("size", res.Size))
		}
		return
	}
	evicted := l.agg.AppendEvent(res.Record)
	if m := l.deps.Metrics; m != nil {
		m.EventsBuffered.Set(float64(l.agg.EventCount()))
		if evicted {
			m.EventsEvictedTotal.Inc()
		}
	}
	if evicted && l.opts.Debug.Has(DebugWarning) {
		l.log.Warn("event buffer full, oldest event dropped")
	}
}

func (l *Loop) drainTxDone() bool {
	got := false
	for {
		select {
		case r := <-l.txDone:
			if r.seq != l.txSeq || !l.txPending {
				continue
			}
			l.txPending = false
			l.txComplete = true
			l.txErr = !r.ok
			l.recordTx()
			got = true
		default:
			return got
		}
	}
}

func (l *Loop) setTimer(d time.Duration) {
	l.timerStart = l.deps.Clock.Now()
	l.timerDelay = d
	l.timerActive = true
	l.timerEvent = false
}

func (l *Loop) clearTimer() {
	l.timerActive = false
	l.timerEvent = false
}

func (l *Loop) timedOut() bool {
	r := l.timerEvent
	l.timerEvent = false
	return r
}

func (l *Loop) setPattern(p hal.LedPattern) {
	if l.deps.Indicator != nil {
		l.deps.Indicator.SetPattern(p)
	}
}

func (l *Loop) operatingFlags() hal.OperatingFlags {
	if l.deps.Flags == nil {
		return 0
	}
	return l.deps.Flags.OperatingFlags()
}

func (l *Loop) onEnter(s State) {
	if m := l.deps.Metrics; m != nil {
		m.StateEntriesTotal.WithLabelValues(s.String()).Inc()
	}
	if l.opts.Debug.Has(DebugTrace) {
		l.log.Info("fsm enter", zap.Stringer("state", s))
	}
}
