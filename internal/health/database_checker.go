package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MirrorProgress 镜像库中本设备最近一行的时间
type MirrorProgress interface {
	LastMirroredAt(ctx context.Context) (time.Time, error)
}

// DatabaseChecker 上行镜像库检查：连接、连接池，以及镜像相对最近上行的滞后
type DatabaseChecker struct {
	pool       *pgxpool.Pool
	progress   MirrorProgress
	lastUplink func() time.Time
	maxLag     time.Duration
}

// NewDatabaseChecker 创建镜像库检查器；progress 或 lastUplink 为 nil 时不检查滞后
func NewDatabaseChecker(pool *pgxpool.Pool, progress MirrorProgress, lastUplink func() time.Time, maxLag time.Duration) *DatabaseChecker {
	return &DatabaseChecker{pool: pool, progress: progress, lastUplink: lastUplink, maxLag: maxLag}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if err := c.pool.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.pool.Stat()
	details := map[string]any{
		"acquired_conns": stats.AcquiredConns(),
		"max_conns":      stats.MaxConns(),
	}
	status, message := poolStatus(stats.AcquiredConns(), stats.MaxConns())

	if c.progress != nil && c.lastUplink != nil {
		mirrored, err := c.progress.LastMirroredAt(ctx)
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("mirror query failed: %v", err),
				Details: details,
				Latency: time.Since(start),
			}
		}
		lag := mirrorLag(time.Now(), c.lastUplink(), mirrored)
		details["mirror_lag"] = lag.String()
		if c.maxLag > 0 && lag > c.maxLag && status == StatusHealthy {
			status, message = StatusDegraded, "mirror behind uplinks"
		}
	}

	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}

// poolStatus 连接池用满时降级
func poolStatus(acquired, max int32) (Status, string) {
	if max > 0 && acquired >= max {
		return StatusDegraded, "connection pool exhausted"
	}
	return StatusHealthy, "ok"
}

// mirrorLag 最近上行尚未落库的时长；还没有上行或镜像已追上时为 0
func mirrorLag(now, lastUplink, lastMirrored time.Time) time.Duration {
	if lastUplink.IsZero() || !lastMirrored.Before(lastUplink) {
		return 0
	}
	if lastMirrored.IsZero() {
		return now.Sub(lastUplink)
	}
	return lastUplink.Sub(lastMirrored)
}
