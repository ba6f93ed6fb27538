package loop

import (
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/mirror"
)

func (l *Loop) dispatch(current State, entry bool) State {
	switch current {
	case StateInitial:
		l.resetMeasurements()
		return StateInactive

	case StateInactive:
		if l.exit {
			return StateFinal
		}
		if l.rqActive {
			l.rqActive = false
			l.rqInactive = false
			l.active = true
			l.cycle.Timer().Retrigger()
			return StateWarmup
		}
		if entry {
			l.active = false
		}
		return StateNoChange

	case StateSleeping:
		if entry {
			l.setPattern(hal.LedSleeping)
			l.printedSleeping = false
			l.countdown = 0
			l.clearTimer()
		}
		if l.exit {
			return StateFinal
		}
		if l.rqInactive {
			l.rqActive = false
			l.rqInactive = false
			l.active = false
			return StateInactive
		}
		if l.cycle.Timer().IsReady() {
			l.countdown = 0
			l.clearTimer()
			return StateMeasure
		}
		if l.cycle.Timer().Remaining() > sleepThreshold {
			l.sleep()
		}
		return StateNoChange

	case StateWarmup:
		if entry {
			l.setTimer(l.opts.Warmup)
		}
		if l.timedOut() {
			return StateMeasure
		}
		return StateNoChange

	case StateMeasure:
		if entry {
			started := l.agg.StartLight()
			l.agg.SampleSynchronous()
			if !started {
				return StateTransmit
			}
			l.setTimer(l.opts.LightTimeout)
		}
		if l.agg.PollLight() {
			l.clearTimer()
			return StateTransmit
		}
		if l.timedOut() {
			l.agg.AbandonLight()
			if l.opts.Debug.Has(DebugWarning) {
				l.log.Warn("light sensor timed out")
			}
			if m := l.deps.Metrics; m != nil {
				m.SensorTimeoutsTotal.WithLabelValues("light").Inc()
			}
			return StateTransmit
		}
		return StateNoChange

	case StateTransmit:
		provisioned := l.deps.Radio != nil && l.deps.Radio.IsProvisioned()
		if entry {
			l.transmitCurrent(provisioned)
		}
		if !provisioned {
			// 挂起中的发送不再等待，迟到的回调按序号丢弃
			if l.txPending {
				l.txPending = false
				l.txSeq++
			}
			if m := l.deps.Metrics; m != nil {
				m.UplinksTotal.WithLabelValues("unprovisioned").Inc()
			}
			l.resetMeasurements()
			return StateSleeping
		}
		if !l.txComplete {
			return StateNoChange
		}
		l.txComplete = false
		if l.txErr {
			l.log.Error("uplink failed", zap.Int("event_index", l.bufferIndex-1))
		}
		if l.bufferIndex < l.agg.EventCount() {
			return StateMeasure
		}
		l.cycle.Update()
		l.resetMeasurements()
		return StateSleeping

	case StateFinal:
		if entry {
			l.setPattern(hal.LedOff)
			l.running = false
			l.active = false
			l.log.Info("measurement loop stopped")
		}
		return StateNoChange
	}

	l.log.Error("unknown state", zap.Stringer("state", current))
	return StateNoChange
}

// resetMeasurements 清空快照并回到第一个缓存事件
func (l *Loop) resetMeasurements() {
	l.agg.Reset()
	l.bufferIndex = 0
	if m := l.deps.Metrics; m != nil {
		m.EventsBuffered.Set(0)
	}
}

// transmitCurrent 编码当前快照与 bufferIndex 指向的事件，镜像后交给无线
func (l *Loop) transmitCurrent(provisioned bool) {
	snap := l.agg.Copy()
	frame := l.encoder.Encode(&snap, l.bufferIndex)
	confirmed := l.operatingFlags().Has(hal.FlagConfirmedUplink)

	rec := mirror.NewRecord(l.deps.Clock.Now(), frame, snap, l.opts.UplinkPort, confirmed)
	l.lastUplink = rec
	if l.deps.Mirror != nil {
		l.deps.Mirror.Submit(rec)
	}
	if m := l.deps.Metrics; m != nil {
		m.UplinkBytes.Observe(float64(len(frame.Bytes)))
		if frame.Truncated {
			m.UplinkTruncatedTotal.Inc()
		}
	}
	if l.opts.Debug.Has(DebugInfo) {
		l.log.Info("uplink frame",
			zap.String("frame", hex.EncodeToString(frame.Bytes)),
			zap.Stringer("flags", frame.Flags),
			zap.Int("event_index", frame.EventIndex),
			zap.Int("events", snap.EventCount()))
	}

	if provisioned {
		l.startTransmission(frame.Bytes, confirmed)
	}
	l.bufferIndex++
}

func (l *Loop) startTransmission(frame []byte, confirmed bool) {
	l.setPattern(hal.LedOff)
	l.setPattern(hal.LedSending)

	if l.txPending {
		l.log.Error("uplink still pending, frame not sent")
		l.finishTx(false, "not_started")
		return
	}

	l.txSeq++
	seq := l.txSeq
	l.txPending = true
	l.txComplete = false
	l.txErr = false

	done := func(ok bool) {
		select {
		case l.txDone <- txResult{seq: seq, ok: ok}:
		default:
		}
	}
	if !l.deps.Radio.SendFrame(frame, done, confirmed, l.opts.UplinkPort) {
		l.txPending = false
		l.log.Error("uplink could not be started")
		l.finishTx(false, "not_started")
		return
	}
	// 同步完成的回调已写入通道
	l.drainTxDone()
}

func (l *Loop) finishTx(ok bool, result string) {
	l.txComplete = true
	l.txErr = !ok
	if m := l.deps.Metrics; m != nil {
		m.UplinksTotal.WithLabelValues(result).Inc()
	}
}

// recordTx 记录一次已完成发送的结果
func (l *Loop) recordTx() {
	result := "ok"
	if l.txErr {
		result = "error"
	}
	if m := l.deps.Metrics; m != nil {
		m.UplinksTotal.WithLabelValues(result).Inc()
	}
	l.setPattern(hal.LedOff)
}
