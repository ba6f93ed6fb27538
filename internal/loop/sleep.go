package loop

import (
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/hal"
)

// sleep 在两次上行之间睡眠；首次进入时播报睡眠方式。
// 深度睡眠前的倒计时由单次定时器逐秒推进，期间 Poll 照常收取串口帧。
func (l *Loop) sleep() {
	deep := l.checkDeepSleep()
	if !l.printedSleeping {
		l.doSleepAlert(deep)
		return
	}
	if l.countdown > 0 {
		if l.timedOut() {
			l.stepCountdown()
		}
		return
	}
	if deep {
		l.doDeepSleep()
	}
}

// checkDeepSleep 平台支持、剩余时间足够、无人值守或无控制台，且未被禁用
func (l *Loop) checkDeepSleep() bool {
	if !l.opts.DeepSleep || l.deps.Sleeper == nil {
		return false
	}
	if l.cycle.Timer().Remaining()/time.Second < minDeepSleepSeconds {
		return false
	}
	flags := l.operatingFlags()
	if flags.Has(hal.FlagDisableDeepSleep) {
		return false
	}
	if flags.Has(hal.FlagDeepSleepTest) {
		return true
	}
	if l.deps.Console == nil || !l.deps.Console.Attached() {
		return true
	}
	return flags.Has(hal.FlagUnattended)
}

func (l *Loop) doSleepAlert(deep bool) {
	l.printedSleeping = true
	if !deep {
		l.log.Info("using light sleep")
		return
	}

	countdown := deepSleepCountdown
	if l.operatingFlags().Has(hal.FlagDeepSleepTest) {
		countdown = deepSleepCountdownTest
	}
	l.log.Info("using deep sleep", zap.Int("countdown_seconds", countdown))
	l.setPattern(hal.LedTwoShort)
	// 倒计时秒数之后再加一段稳定期
	l.countdown = countdown + 1
	l.setTimer(time.Second)
}

// stepCountdown 倒计时走一格；最后一格为稳定期，结束后进入深度睡眠
func (l *Loop) stepCountdown() {
	l.countdown--
	switch {
	case l.countdown > 1:
		l.log.Debug("deep sleep countdown", zap.Int("seconds", l.countdown-1))
		l.setTimer(time.Second)
	case l.countdown == 1:
		l.log.Info("starting deep sleep")
		l.setTimer(deepSleepSettle)
	default:
		l.doDeepSleep()
	}
}

func (l *Loop) doDeepSleep() {
	secs := uint32(l.cycle.Timer().Remaining() / time.Second)
	if secs == 0 {
		return
	}
	l.setPattern(hal.LedOff)
	start := l.deps.Clock.Now()
	l.deps.Sleeper.Prepare()
	l.deps.Sleeper.Sleep(secs)
	l.deps.Sleeper.Recover()
	if m := l.deps.Metrics; m != nil {
		m.DeepSleepsTotal.Inc()
	}
	// 提前唤醒时返回调用方，由下一次 Poll 继续
	if l.deps.Clock.Now().Sub(start) >= time.Duration(secs)*time.Second {
		l.machine.Eval()
	}
}
