package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"   // 正常采集与上行
	StatusDegraded  Status = "degraded"  // 镜像或辅助服务异常，测量循环仍在工作
	StatusUnhealthy Status = "unhealthy" // 测量循环或设备链路不可用
)

// CheckResult 单项检查结果
type CheckResult struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Optional bool           `json:"optional,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Latency  time.Duration  `json:"latency"`
}

// Checker 健康检查器接口
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// optionalChecker 非关键依赖：失败最多降级
type optionalChecker struct {
	Checker
}

// Optional 包装镜像存储等尽力而为的依赖，其不健康结果按降级计入总体状态
func Optional(c Checker) Checker {
	return optionalChecker{Checker: c}
}

func (o optionalChecker) Check(ctx context.Context) CheckResult {
	r := o.Checker.Check(ctx)
	r.Optional = true
	if r.Status == StatusUnhealthy {
		r.Status = StatusDegraded
	}
	return r
}
