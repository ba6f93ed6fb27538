package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/hal/haltest"
	"github.com/taoyao-code/fed3-node/internal/mirror"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
)

type recMirror struct {
	recs []*mirror.Record
}

func (m *recMirror) Submit(rec *mirror.Record) { m.recs = append(m.recs, rec) }

type harness struct {
	clock     *haltest.Clock
	link      *haltest.Link
	radio     *haltest.Radio
	light     *haltest.Light
	indicator *haltest.Indicator
	sleeper   *haltest.Sleeper
	console   *haltest.Console
	flags     *hal.FlagStore
	mirror    *recMirror
	logs      *observer.ObservedLogs
	loop      *Loop
}

func newHarness(t *testing.T, tweak func(*Options, *harness)) *harness {
	t.Helper()
	clock := haltest.NewClock()
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		clock:     clock,
		link:      &haltest.Link{},
		radio:     &haltest.Radio{Provisioned: true},
		light:     &haltest.Light{Value: 1 << 20},
		indicator: &haltest.Indicator{},
		sleeper:   &haltest.Sleeper{Clock: clock},
		console:   &haltest.Console{IsAttached: true},
		flags:     hal.NewFlagStore(0),
		mirror:    &recMirror{},
		logs:      logs,
	}
	opts := DefaultOptions()
	if tweak != nil {
		tweak(&opts, h)
	}
	h.loop = New(opts, Deps{
		Clock:     clock,
		Link:      h.link,
		Radio:     h.radio,
		Power:     &haltest.Power{VbatV: 3.7, VbusV: 0, Boot: 7},
		Env:       &haltest.Env{Reading: hal.EnvReading{Temperature: 21.5, Pressure: 1013.25, Humidity: 40}},
		Light:     h.light,
		Indicator: h.indicator,
		Sleeper:   h.sleeper,
		Console:   h.console,
		Flags:     h.flags,
		Mirror:    h.mirror,
		Logger:    zap.New(core),
	})
	return h
}

// activate 启动并激活，停在 Warmup
func (h *harness) activate(t *testing.T) {
	t.Helper()
	h.loop.Begin()
	require.Equal(t, StateInactive, h.loop.State())
	h.loop.RequestActive(true)
	require.Equal(t, StateWarmup, h.loop.State())
}

// feed 通过串口送入一条饲喂器事件并等待静默期结束
func (h *harness) feed(t *testing.T, pellets uint32) []byte {
	t.Helper()
	payload := fed3.EncodePayload(&fed3.EventInfo{Timestamp: 1700000000, PelletCount: pellets})
	h.link.Write(fed3.Build(fed3.DeviceMsgID, 0, payload))
	h.loop.Poll()
	h.clock.Advance(fed3.DefaultT35)
	h.loop.Poll()
	return payload
}

// finishWarmup 推进到预热结束并轮询一次
func (h *harness) finishWarmup() {
	h.clock.Advance(DefaultWarmup)
	h.loop.Poll()
}

func TestLoop_ActivationEntersWarmupInOneEval(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)
	assert.True(t, h.loop.Active())

	h.clock.Advance(DefaultWarmup - time.Millisecond)
	h.loop.Poll()
	assert.Equal(t, StateWarmup, h.loop.State(), "预热未结束")
}

func TestLoop_FirstCycleWithoutEvents(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)
	h.finishWarmup()

	require.Len(t, h.radio.Sent, 1)
	sent := h.radio.Sent[0]
	assert.Equal(t, uint8(DefaultUplinkPort), sent.Port)
	assert.False(t, sent.Confirmed)
	assert.Equal(t, byte(0x24), sent.Frame[0])
	assert.Equal(t, StateSleeping, h.loop.State())

	st := h.loop.Status()
	assert.Equal(t, 0, st.EventCount, "周期结束后快照已清空")
	assert.Equal(t, DefaultOptions().BurstCount-1, st.CycleCount)
	require.NotNil(t, st.LastUplink)
	assert.Equal(t, -1, st.LastUplink.EventIndex)

	require.Len(t, h.mirror.recs, 1)
	assert.Equal(t, sent.Frame, h.mirror.recs[0].Frame)
	assert.Empty(t, h.sleeper.Slept, "控制台在线时使用浅睡眠")
}

func TestLoop_TransmitsEveryBufferedEvent(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	var payloads [][]byte
	for i := uint32(1); i <= 3; i++ {
		payloads = append(payloads, h.feed(t, i))
	}
	require.Equal(t, 3, h.loop.Status().EventCount)

	h.finishWarmup()

	require.Len(t, h.radio.Sent, 3)
	for i, s := range h.radio.Sent {
		tail := s.Frame[len(s.Frame)-fed3.EventPayloadSize:]
		assert.Equal(t, payloads[i], tail, "第 %d 帧携带第 %d 条事件", i, i)
	}
	require.Len(t, h.mirror.recs, 3)
	for i, r := range h.mirror.recs {
		assert.Equal(t, i, r.EventIndex)
	}
	assert.Equal(t, StateSleeping, h.loop.State())
	assert.Equal(t, 0, h.loop.Status().EventCount)
}

func TestLoop_RejectedFrameIsNotBuffered(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	frame := fed3.Build(fed3.DeviceMsgID, 0, fed3.EncodePayload(&fed3.EventInfo{}))
	frame[len(frame)-1] ^= 0xFF
	h.link.Write(frame)
	h.loop.Poll()
	h.clock.Advance(fed3.DefaultT35)
	h.loop.Poll()

	st := h.loop.Status()
	assert.Equal(t, 0, st.EventCount)
	assert.Equal(t, uint32(1), st.SerialRx)
	assert.Equal(t, uint32(1), st.SerialErrors)
}

func TestLoop_WaitsForTransmitCompletion(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"发送成功", true},
		{"发送失败仍结束周期", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.radio.Deferred = true
			h.activate(t)
			h.finishWarmup()

			require.Len(t, h.radio.Sent, 1)
			assert.Equal(t, StateTransmit, h.loop.State())
			assert.True(t, h.loop.Status().TxPending)
			assert.Equal(t, hal.LedSending, h.indicator.Last())

			h.loop.Poll()
			assert.Equal(t, StateTransmit, h.loop.State(), "未完成前保持 Transmit")

			h.radio.Complete(tt.ok)
			assert.Equal(t, StateTransmit, h.loop.State(), "回调不直接驱动状态机")
			h.loop.Poll()
			assert.Equal(t, StateSleeping, h.loop.State())
			assert.False(t, h.loop.Status().TxPending)
		})
	}
}

func TestLoop_NotProvisionedSkipsRadio(t *testing.T) {
	h := newHarness(t, nil)
	h.radio.Provisioned = false
	h.activate(t)
	h.feed(t, 1)
	h.feed(t, 2)
	h.finishWarmup()

	assert.Empty(t, h.radio.Sent)
	assert.Equal(t, StateSleeping, h.loop.State())
	require.Len(t, h.mirror.recs, 1, "仍然镜像一帧")
	st := h.loop.Status()
	assert.Equal(t, 0, st.EventCount)
	assert.Equal(t, DefaultOptions().BurstCount, st.CycleCount, "未上行不消耗突发次数")
}

func TestLoop_RefusedStartEndsCycle(t *testing.T) {
	h := newHarness(t, nil)
	h.radio.RefuseStart = true
	h.activate(t)
	h.finishWarmup()

	assert.Empty(t, h.radio.Sent)
	assert.Equal(t, StateSleeping, h.loop.State())
	assert.False(t, h.loop.Status().TxPending)
}

func TestLoop_ConfirmedUplinkFlag(t *testing.T) {
	h := newHarness(t, nil)
	h.flags.Set(hal.FlagConfirmedUplink)
	h.activate(t)
	h.finishWarmup()

	require.Len(t, h.radio.Sent, 1)
	assert.True(t, h.radio.Sent[0].Confirmed)
}

func TestLoop_LightTimeoutStillTransmits(t *testing.T) {
	h := newHarness(t, nil)
	h.light.ReadyAfter = -1
	h.activate(t)
	h.finishWarmup()
	assert.Equal(t, StateMeasure, h.loop.State())

	h.clock.Advance(DefaultLightTimeout)
	h.loop.Poll()

	require.Len(t, h.radio.Sent, 1)
	assert.Equal(t, 1, h.light.Stops)
	assert.Equal(t, StateSleeping, h.loop.State())
}

func TestLoop_NextCycleOnTimerTick(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)
	h.finishWarmup()
	require.Len(t, h.radio.Sent, 1)

	h.clock.Advance(20 * time.Second)
	h.loop.Poll()
	assert.Len(t, h.radio.Sent, 1, "周期未到")

	h.clock.Advance(5 * time.Second)
	h.loop.Poll()
	assert.Len(t, h.radio.Sent, 2, "Sleeping 直接进入 Measure")
	assert.Equal(t, StateSleeping, h.loop.State())
}

func TestLoop_BurstDecay(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *harness) {
		o.InitialCycleSeconds = 30
		o.BurstCount = 2
		o.PermanentCycleSeconds = 180
	})
	h.activate(t)
	h.finishWarmup()
	st := h.loop.Status()
	assert.Equal(t, uint32(30), st.CycleSeconds)
	assert.Equal(t, uint32(1), st.CycleCount)

	h.clock.Advance(25 * time.Second)
	h.loop.Poll()
	require.Len(t, h.radio.Sent, 2)
	st = h.loop.Status()
	assert.Equal(t, uint32(180), st.CycleSeconds, "突发结束回到常驻周期")
	assert.Equal(t, uint32(0), st.CycleCount)
}

func TestLoop_SetTxCycleTimeEvaluatesPendingTick(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)
	h.finishWarmup()
	require.Len(t, h.radio.Sent, 1)

	h.clock.Advance(20 * time.Second)
	h.loop.SetTxCycleTime(10, 0)
	assert.Len(t, h.radio.Sent, 2)
	assert.Equal(t, uint32(10), h.loop.Status().CycleSeconds)
}

func TestLoop_Deactivate(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)
	h.finishWarmup()
	require.Equal(t, StateSleeping, h.loop.State())

	h.loop.RequestActive(false)
	assert.Equal(t, StateInactive, h.loop.State())
	assert.False(t, h.loop.Active())

	h.clock.Advance(time.Hour)
	h.loop.Poll()
	assert.Len(t, h.radio.Sent, 1, "停用后不再上行")
}

func TestLoop_End(t *testing.T) {
	t.Run("Inactive 中立即结束", func(t *testing.T) {
		h := newHarness(t, nil)
		h.loop.Begin()
		h.loop.End()
		assert.Equal(t, StateFinal, h.loop.State())
		assert.False(t, h.loop.Running())
	})

	t.Run("测量中延迟到 Sleeping", func(t *testing.T) {
		h := newHarness(t, nil)
		h.activate(t)
		h.loop.End()
		assert.Equal(t, StateWarmup, h.loop.State())

		h.finishWarmup()
		assert.Len(t, h.radio.Sent, 1)
		assert.Equal(t, StateFinal, h.loop.State())
		assert.False(t, h.loop.Active())
	})
}

// newDeepHarness 180s 周期、测试模式（10s 倒计时）的深度睡眠场景
func newDeepHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, func(o *Options, _ *harness) {
		o.InitialCycleSeconds = 180
		o.BurstCount = 0
	})
	h.flags.Set(hal.FlagDeepSleepTest)
	return h
}

// runCountdown 逐秒轮询走完倒计时与稳定期
func (h *harness) runCountdown() {
	for i := 0; i < deepSleepCountdownTest; i++ {
		h.clock.Advance(time.Second)
		h.loop.Poll()
	}
	h.clock.Advance(deepSleepSettle)
	h.loop.Poll()
}

func TestLoop_DeepSleep(t *testing.T) {
	h := newDeepHarness(t)
	h.activate(t)
	h.finishWarmup()

	assert.Empty(t, h.sleeper.Slept, "倒计时期间不睡眠")
	assert.Equal(t, hal.LedTwoShort, h.indicator.Last())
	assert.Equal(t, StateSleeping, h.loop.State())

	h.runCountdown()

	// 175s 剩余，10s 倒计时与 100ms 稳定后睡 164s
	require.Equal(t, []uint32{164}, h.sleeper.Slept)
	assert.Equal(t, 1, h.sleeper.Prepares)
	assert.Equal(t, 1, h.sleeper.Recovers)
	assert.Equal(t, StateSleeping, h.loop.State())

	h.clock.Advance(time.Second)
	h.loop.Poll()
	assert.Len(t, h.radio.Sent, 2)
}

func TestLoop_CountdownKeepsReadingFrames(t *testing.T) {
	h := newDeepHarness(t)
	h.activate(t)
	h.finishWarmup()
	require.Len(t, h.radio.Sent, 1)

	for sec := 1; sec <= deepSleepCountdownTest; sec++ {
		if sec == 2 || sec == 5 {
			h.feed(t, uint32(sec))
		}
		h.clock.Advance(time.Second)
		h.loop.Poll()
		assert.Empty(t, h.sleeper.Slept, "第 %d 秒", sec)
	}
	h.clock.Advance(deepSleepSettle)
	h.loop.Poll()
	require.Len(t, h.sleeper.Slept, 1)

	st := h.loop.Status()
	assert.Equal(t, 2, st.EventCount, "倒计时期间的帧全部入缓冲")
	assert.Equal(t, uint32(2), st.SerialRx)
	assert.Zero(t, st.SerialErrors)
}

func TestLoop_CountdownAbandonedOnDeactivate(t *testing.T) {
	h := newDeepHarness(t)
	h.activate(t)
	h.finishWarmup()

	h.clock.Advance(3 * time.Second)
	h.loop.Poll()
	h.loop.RequestActive(false)
	assert.Equal(t, StateInactive, h.loop.State())

	h.clock.Advance(time.Minute)
	h.loop.Poll()
	assert.Empty(t, h.sleeper.Slept)
}

func TestLoop_InterruptedDeepSleepReturnsToCaller(t *testing.T) {
	h := newDeepHarness(t)
	h.sleeper.Cut = 3 * time.Second
	h.activate(t)
	h.finishWarmup()
	h.runCountdown()

	require.Equal(t, []uint32{164}, h.sleeper.Slept)
	assert.Equal(t, StateSleeping, h.loop.State())

	// 无事件的 Poll 不会再次进入深度休眠
	h.loop.Poll()
	assert.Len(t, h.sleeper.Slept, 1)

	h.loop.RequestActive(false)
	assert.Equal(t, StateInactive, h.loop.State())
}

func TestLoop_UnprovisionedDropsPendingSend(t *testing.T) {
	h := newHarness(t, nil)
	h.radio.Deferred = true
	h.activate(t)
	h.finishWarmup()
	require.True(t, h.loop.Status().TxPending)

	h.radio.Provisioned = false
	h.loop.machine.Eval()
	assert.Equal(t, StateSleeping, h.loop.State())
	assert.False(t, h.loop.Status().TxPending)

	// 迟到的完成回调被丢弃
	h.radio.Provisioned = true
	h.radio.Complete(true)
	h.loop.Poll()
	assert.Equal(t, StateSleeping, h.loop.State())

	h.clock.Advance(25 * time.Second)
	h.loop.Poll()
	require.Len(t, h.radio.Sent, 2, "下一周期正常发送")
	assert.True(t, h.loop.Status().TxPending)
	assert.Equal(t, StateTransmit, h.loop.State())
}

func TestLoop_CheckDeepSleep(t *testing.T) {
	tests := []struct {
		name     string
		deep     bool
		attached bool
		flags    hal.OperatingFlags
		elapsed  time.Duration
		wantDeep bool
	}{
		{"控制台在线", true, true, 0, 0, false},
		{"无控制台", true, false, 0, 0, true},
		{"无人值守", true, true, hal.FlagUnattended, 0, true},
		{"测试模式", true, true, hal.FlagDeepSleepTest, 0, true},
		{"禁用优先", true, false, hal.FlagDisableDeepSleep | hal.FlagDeepSleepTest, 0, false},
		{"平台不支持", false, false, 0, 0, false},
		{"剩余不足 2s", true, false, 0, 29 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options, _ *harness) { o.DeepSleep = tt.deep })
			h.console.IsAttached = tt.attached
			h.flags.Set(tt.flags)
			h.clock.Advance(tt.elapsed)
			assert.Equal(t, tt.wantDeep, h.loop.checkDeepSleep())
		})
	}
}

func TestLoop_TraceLogsStates(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *harness) { o.Debug |= DebugTrace })
	h.activate(t)

	var states []string
	for _, e := range h.logs.FilterMessage("fsm enter").All() {
		states = append(states, e.ContextMap()["state"].(string))
	}
	assert.Equal(t, []string{"stInitial", "stInactive", "stWarmup"}, states)
}
