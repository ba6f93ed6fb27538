package tcpserver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBridgeBusy 已有设备会话占用桥
var ErrBridgeBusy = errors.New("bridge busy")

// SessionStats 桥接会话统计
type SessionStats struct {
	Active   int       `json:"active"`
	Accepted int64     `json:"accepted"`
	Rejected int64     `json:"rejected"`
	Since    time.Time `json:"since,omitempty"`
}

// SessionGate 设备会话闸门（基于信号量）；桥接模式下只放行一个会话，
// 新连接在 wait 内拿不到名额即拒绝。
type SessionGate struct {
	slots    chan struct{}
	wait     time.Duration
	accepted atomic.Int64
	rejected atomic.Int64
	// 当前会话接入时间（unix 纳秒），无会话时为 0
	since atomic.Int64
}

// NewSessionGate 创建会话闸门
func NewSessionGate(max int, wait time.Duration) *SessionGate {
	if max <= 0 {
		max = 1
	}
	if wait <= 0 {
		wait = time.Second
	}
	return &SessionGate{slots: make(chan struct{}, max), wait: wait}
}

// Enter 占用一个会话名额
func (g *SessionGate) Enter(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	select {
	case g.slots <- struct{}{}:
		g.accepted.Add(1)
		g.since.Store(time.Now().UnixNano())
		return nil
	case <-ctx.Done():
		g.rejected.Add(1)
		return ErrBridgeBusy
	}
}

// Leave 释放会话名额；多余调用被忽略
func (g *SessionGate) Leave() {
	select {
	case <-g.slots:
		if len(g.slots) == 0 {
			g.since.Store(0)
		}
	default:
	}
}

// Active 当前会话数
func (g *SessionGate) Active() int { return len(g.slots) }

// Stats 会话统计快照
func (g *SessionGate) Stats() SessionStats {
	st := SessionStats{
		Active:   g.Active(),
		Accepted: g.accepted.Load(),
		Rejected: g.rejected.Load(),
	}
	if ns := g.since.Load(); ns != 0 {
		st.Since = time.Unix(0, ns)
	}
	return st
}
