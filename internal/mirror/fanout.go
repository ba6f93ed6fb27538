package mirror

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/metrics"
)

// Sink 镜像存储目标
type Sink interface {
	Name() string
	Write(ctx context.Context, rec *Record) error
}

// Fanout 异步镜像队列：Submit 不阻塞测量循环，单个 worker 依次写入各 Sink
type Fanout struct {
	sinks   []Sink
	queue   chan *Record
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.NodeMetrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewFanout 创建镜像队列；size<=0 时使用 64
func NewFanout(size int, timeout time.Duration, logger *zap.Logger, m *metrics.NodeMetrics, sinks ...Sink) *Fanout {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		sinks:   sinks,
		queue:   make(chan *Record, size),
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Sinks 已配置的存储目标
func (f *Fanout) Sinks() []Sink { return f.sinks }

// Submit 入队；队列满或已关闭时丢弃
func (f *Fanout) Submit(rec *Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || len(f.sinks) == 0 {
		return
	}
	select {
	case f.queue <- rec:
	default:
		f.logger.Warn("mirror queue full, record dropped", zap.String("id", rec.ID))
		if f.metrics != nil {
			f.metrics.MirrorDroppedTotal.Inc()
		}
	}
}

// Start 启动 worker；ctx 取消后处理完已入队记录再退出
func (f *Fanout) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case rec, ok := <-f.queue:
				if !ok {
					return
				}
				f.write(rec)
			case <-ctx.Done():
				f.drain()
				return
			}
		}
	}()
}

// Close 停止接收并等待 worker 退出
func (f *Fanout) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Fanout) drain() {
	for {
		select {
		case rec, ok := <-f.queue:
			if !ok {
				return
			}
			f.write(rec)
		default:
			return
		}
	}
}

func (f *Fanout) write(rec *Record) {
	for _, s := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		err := s.Write(ctx, rec)
		cancel()
		result := "ok"
		if err != nil {
			result = "error"
			f.logger.Error("mirror write failed",
				zap.String("sink", s.Name()),
				zap.String("id", rec.ID),
				zap.Error(err))
		}
		if f.metrics != nil {
			f.metrics.MirrorWritesTotal.WithLabelValues(s.Name(), result).Inc()
		}
	}
}
