package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/fed3-node/internal/tcpserver"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock",
		Latency: time.Millisecond,
	}
}

func TestAggregator(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		checks []Checker
		want   Status
		ready  bool
	}{
		{"全部健康", []Checker{&mockChecker{"loop", StatusHealthy}, &mockChecker{"serial", StatusHealthy}}, StatusHealthy, true},
		{"部分降级", []Checker{&mockChecker{"loop", StatusHealthy}, &mockChecker{"influx", StatusDegraded}}, StatusDegraded, true},
		{"部分不健康", []Checker{&mockChecker{"loop", StatusDegraded}, &mockChecker{"serial", StatusUnhealthy}}, StatusUnhealthy, false},
		{"无检查器", nil, StatusHealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.checks...)
			assert.Equal(t, tt.want, agg.OverallStatus(ctx))
			assert.Equal(t, tt.ready, agg.Ready(ctx))
		})
	}

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})

		report := agg.Report(ctx)
		assert.Len(t, report.Checks, 2)
		assert.Equal(t, StatusHealthy, report.Status)
		assert.False(t, report.Timestamp.IsZero())
	})
}

type fakeStep struct{ last time.Time }

func (f fakeStep) LastStep() time.Time { return f.last }

func TestLoopChecker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		last time.Time
		want Status
	}{
		{"未启动", time.Time{}, StatusUnhealthy},
		{"正常轮询", now.Add(-time.Second), StatusHealthy},
		{"长时间未轮询", now.Add(-time.Minute), StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLoopChecker(fakeStep{tt.last}, 10*time.Second)
			c.now = func() time.Time { return now }
			assert.Equal(t, tt.want, c.Check(context.Background()).Status)
		})
	}
}

type fakeLink struct {
	err     error
	dropped uint64
}

func (f fakeLink) Err() error          { return f.err }
func (f fakeLink) Dropped() uint64     { return f.dropped }
func (f fakeLink) LastRead() time.Time { return time.Time{} }

type fakeBridge struct {
	fakeLink
	connected bool
	stats     tcpserver.SessionStats
}

func (f fakeBridge) Connected() bool                  { return f.connected }
func (f fakeBridge) Sessions() tcpserver.SessionStats { return f.stats }

func TestSerialChecker(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, NewSerialChecker(fakeLink{}).Check(ctx).Status)
	assert.Equal(t, StatusDegraded, NewSerialChecker(fakeLink{dropped: 3}).Check(ctx).Status)

	res := NewSerialChecker(fakeLink{err: errors.New("EOF")}).Check(ctx)
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Message, "EOF")

	t.Run("桥接无设备会话", func(t *testing.T) {
		res := NewSerialChecker(fakeBridge{stats: tcpserver.SessionStats{Accepted: 2}}).Check(ctx)
		assert.Equal(t, StatusDegraded, res.Status)
		assert.Equal(t, tcpserver.SessionStats{Accepted: 2}, res.Details["bridge"])
	})

	t.Run("桥接已连接", func(t *testing.T) {
		res := NewSerialChecker(fakeBridge{connected: true, stats: tcpserver.SessionStats{Active: 1, Accepted: 1}}).Check(ctx)
		assert.Equal(t, StatusHealthy, res.Status)
	})
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("influx", pingFunc(func(context.Context) error { return nil }))
	assert.Equal(t, "influx", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	bad := NewPingChecker("influx", pingFunc(func(context.Context) error { return errors.New("refused") }))
	assert.Equal(t, StatusUnhealthy, bad.Check(context.Background()).Status)
}

func TestOptional(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		inner Status
		want  Status
	}{
		{"健康不变", StatusHealthy, StatusHealthy},
		{"降级不变", StatusDegraded, StatusDegraded},
		{"不健康按降级计", StatusUnhealthy, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Optional(&mockChecker{"influx", tt.inner})
			assert.Equal(t, "influx", c.Name())
			res := c.Check(ctx)
			assert.Equal(t, tt.want, res.Status)
			assert.True(t, res.Optional)
		})
	}

	t.Run("镜像目标故障不影响就绪", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"loop", StatusHealthy}, Optional(&mockChecker{"database", StatusUnhealthy}))
		assert.Equal(t, StatusDegraded, agg.OverallStatus(ctx))
		assert.True(t, agg.Ready(ctx))
	})
}

func TestMirrorLag(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		uplink   time.Time
		mirrored time.Time
		want     time.Duration
	}{
		{"尚无上行", time.Time{}, time.Time{}, 0},
		{"已追上", now.Add(-time.Minute), now.Add(-time.Minute), 0},
		{"镜像更新", now.Add(-time.Minute), now, 0},
		{"落后", now.Add(-time.Minute), now.Add(-4 * time.Minute), 3 * time.Minute},
		{"从未镜像", now.Add(-time.Minute), time.Time{}, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mirrorLag(now, tt.uplink, tt.mirrored))
		})
	}
}

func TestPoolStatus(t *testing.T) {
	st, _ := poolStatus(3, 5)
	assert.Equal(t, StatusHealthy, st)
	st, msg := poolStatus(5, 5)
	assert.Equal(t, StatusDegraded, st)
	assert.Equal(t, "connection pool exhausted", msg)
	st, _ = poolStatus(0, 0)
	assert.Equal(t, StatusHealthy, st)
}

func TestReadiness(t *testing.T) {
	r := New()
	assert.False(t, r.Ready())
	r.SetLoopReady(true)
	assert.False(t, r.Ready())
	r.SetStorageReady(true)
	assert.True(t, r.Ready())
}

func TestHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		status Status
		code   int
	}{
		{"降级返回200", StatusDegraded, http.StatusOK},
		{"不健康返回503", StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			RegisterHTTPRoutes(r.Group("/api/v1"), NewAggregator(&mockChecker{"loop", tt.status}))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
			require.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), string(tt.status))
		})
	}
}
