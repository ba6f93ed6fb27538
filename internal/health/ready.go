package health

import "sync/atomic"

// Readiness 启动就绪状态（运行循环已启动、镜像存储已连接）
type Readiness struct {
	loopReady    atomic.Bool
	storageReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetLoopReady(v bool)    { r.loopReady.Store(v) }
func (r *Readiness) SetStorageReady(v bool) { r.storageReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.loopReady.Load() && r.storageReady.Load()
}
