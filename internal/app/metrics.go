package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/taoyao-code/fed3-node/internal/metrics"
)

// NewMetrics 初始化注册表与节点指标
func NewMetrics() (*prometheus.Registry, *metrics.NodeMetrics) {
	reg := metrics.NewRegistry()
	return reg, metrics.NewNodeMetrics(reg)
}
