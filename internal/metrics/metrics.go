package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NodeMetrics 节点业务指标
type NodeMetrics struct {
	SerialFramesTotal    *prometheus.CounterVec // labels: result=success|bad_crc|...
	EventsBuffered       prometheus.Gauge       // 当前周期缓存事件数
	EventsEvictedTotal   prometheus.Counter     // 缓冲满被淘汰的事件
	UplinksTotal         *prometheus.CounterVec // labels: result=ok|error|not_started|unprovisioned
	UplinkBytes          prometheus.Histogram
	UplinkTruncatedTotal prometheus.Counter
	StateEntriesTotal    *prometheus.CounterVec // labels: state
	SensorTimeoutsTotal  *prometheus.CounterVec // labels: sensor
	DeepSleepsTotal      prometheus.Counter
	MirrorWritesTotal    *prometheus.CounterVec // labels: sink, result=ok|error
	MirrorDroppedTotal   prometheus.Counter
	DutyCycleDenied      prometheus.Counter
	BridgeConnsTotal     *prometheus.CounterVec // labels: result=accepted|rejected
	LinkBytesTotal       prometheus.Counter
}

// NewNodeMetrics 注册并返回业务指标
func NewNodeMetrics(reg prometheus.Registerer) *NodeMetrics {
	m := &NodeMetrics{
		SerialFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fed3_serial_frames_total",
			Help: "Captured device-link frames by decode result.",
		}, []string{"result"}),
		EventsBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fed3_events_buffered",
			Help: "Feeder events buffered for the current uplink cycle.",
		}),
		EventsEvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fed3_events_evicted_total",
			Help: "Feeder events dropped because the event buffer was full.",
		}),
		UplinksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uplink_total",
			Help: "Uplink attempts by result.",
		}, []string{"result"}),
		UplinkBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uplink_frame_bytes",
			Help:    "Encoded uplink frame size.",
			Buckets: []float64{4, 8, 16, 24, 32, 40, 48, 52},
		}),
		UplinkTruncatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uplink_truncated_total",
			Help: "Uplink frames truncated to the payload budget.",
		}),
		StateEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loop_state_entries_total",
			Help: "Measurement loop state entries.",
		}, []string{"state"}),
		SensorTimeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_timeouts_total",
			Help: "Asynchronous sensor reads abandoned on timeout.",
		}, []string{"sensor"}),
		DeepSleepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deep_sleeps_total",
			Help: "Deep sleep episodes.",
		}),
		MirrorWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_writes_total",
			Help: "Local mirror writes by sink and result.",
		}, []string{"sink", "result"}),
		MirrorDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirror_dropped_total",
			Help: "Mirror records dropped because the queue was full.",
		}),
		DutyCycleDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radio_duty_cycle_denied_total",
			Help: "Uplinks refused by the duty-cycle limiter.",
		}),
		BridgeConnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fed3_bridge_connections_total",
			Help: "Serial-over-TCP bridge connections by result.",
		}, []string{"result"}),
		LinkBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fed3_link_bytes_total",
			Help: "Bytes received from the feeder link.",
		}),
	}
	reg.MustRegister(
		m.SerialFramesTotal, m.EventsBuffered, m.EventsEvictedTotal,
		m.UplinksTotal, m.UplinkBytes, m.UplinkTruncatedTotal,
		m.StateEntriesTotal, m.SensorTimeoutsTotal, m.DeepSleepsTotal,
		m.MirrorWritesTotal, m.MirrorDroppedTotal, m.DutyCycleDenied,
		m.BridgeConnsTotal, m.LinkBytesTotal,
	)
	return m
}
