package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/loop"
	"github.com/taoyao-code/fed3-node/internal/storage/models"
	pgstorage "github.com/taoyao-code/fed3-node/internal/storage/pg"
)

type fakeController struct {
	status  loop.Status
	err     error
	actives []bool
	cycles  [][2]uint32
}

func (f *fakeController) Status() loop.Status { return f.status }

func (f *fakeController) RequestActive(_ context.Context, enable bool) error {
	if f.err != nil {
		return f.err
	}
	f.actives = append(f.actives, enable)
	return nil
}

func (f *fakeController) SetCycle(_ context.Context, seconds, burst uint32) error {
	if f.err != nil {
		return f.err
	}
	f.cycles = append(f.cycles, [2]uint32{seconds, burst})
	return nil
}

type fakeUplinks struct{ rows []pgstorage.MirrorRow }

func (f fakeUplinks) Recent(_ context.Context, limit int) ([]pgstorage.MirrorRow, error) {
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

type fakeEvents struct {
	gotDevice string
	gotLimit  int
}

func (f *fakeEvents) RecentEvents(_ context.Context, deviceID string, limit int) ([]models.FeederEvent, error) {
	f.gotDevice, f.gotLimit = deviceID, limit
	return []models.FeederEvent{{DeviceID: deviceID, EventName: "Pellet"}}, nil
}

func newTestRouter(h *ControlHandler, auth cfgpkg.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterControlRoutes(r.Group("/api/v1"), h, auth, middleware.RateLimitConfig{}, zap.NewNop())
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestControlHandler_Status(t *testing.T) {
	ctrl := &fakeController{status: loop.Status{State: "stSleeping", Running: true, Active: true, CycleSeconds: 30}}
	r := newTestRouter(NewControlHandler(ctrl, nil, nil, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})

	w := do(r, http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"stSleeping"`)
	assert.Contains(t, w.Body.String(), `"cycle_seconds":30`)
}

func TestControlHandler_ActivateDeactivate(t *testing.T) {
	ctrl := &fakeController{}
	r := newTestRouter(NewControlHandler(ctrl, nil, nil, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/v1/activate", "", nil).Code)
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/v1/deactivate", "", nil).Code)
	assert.Equal(t, []bool{true, false}, ctrl.actives)

	t.Run("队列满返回503", func(t *testing.T) {
		busy := &fakeController{err: errors.New("command queue full")}
		r := newTestRouter(NewControlHandler(busy, nil, nil, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})
		w := do(r, http.MethodPost, "/api/v1/activate", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "command queue full")
	})
}

func TestControlHandler_SetCycle(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"合法周期", `{"seconds":60,"count":5}`, http.StatusAccepted},
		{"省略突发次数", `{"seconds":120}`, http.StatusAccepted},
		{"周期为零", `{"seconds":0}`, http.StatusBadRequest},
		{"非法JSON", `{"seconds":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			r := newTestRouter(NewControlHandler(ctrl, nil, nil, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})
			w := do(r, http.MethodPut, "/api/v1/cycle", tt.body, nil)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusAccepted {
				assert.Len(t, ctrl.cycles, 1)
			} else {
				assert.Empty(t, ctrl.cycles)
			}
		})
	}
}

func TestControlHandler_History(t *testing.T) {
	t.Run("未启用镜像返回404", func(t *testing.T) {
		r := newTestRouter(NewControlHandler(&fakeController{}, nil, nil, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/uplinks", "", nil).Code)
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/events", "", nil).Code)
	})

	t.Run("上行镜像限制条数", func(t *testing.T) {
		rows := []pgstorage.MirrorRow{
			{ID: "a", CreatedAt: time.Unix(2, 0)},
			{ID: "b", CreatedAt: time.Unix(1, 0)},
		}
		r := newTestRouter(NewControlHandler(&fakeController{}, fakeUplinks{rows}, nil, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})
		w := do(r, http.MethodGet, "/api/v1/uplinks?limit=1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"a"`)
		assert.NotContains(t, w.Body.String(), `"id":"b"`)
	})

	t.Run("事件流水按设备查询", func(t *testing.T) {
		ev := &fakeEvents{}
		r := newTestRouter(NewControlHandler(&fakeController{}, nil, ev, "node-1", zap.NewNop()), cfgpkg.AuthConfig{})
		w := do(r, http.MethodGet, "/api/v1/events?limit=9999", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "node-1", ev.gotDevice)
		assert.Equal(t, maxListLimit, ev.gotLimit)
	})
}

func TestControlRoutes_Auth(t *testing.T) {
	auth := cfgpkg.AuthConfig{Enabled: true, APIKeys: []string{"sk_test_12345678"}}
	ctrl := &fakeController{}
	r := newTestRouter(NewControlHandler(ctrl, nil, nil, "node-1", zap.NewNop()), auth)

	tests := []struct {
		name    string
		headers map[string]string
		code    int
	}{
		{"缺少Key", nil, http.StatusUnauthorized},
		{"无效Key", map[string]string{"X-API-Key": "wrong"}, http.StatusForbidden},
		{"Header认证", map[string]string{"X-API-Key": "sk_test_12345678"}, http.StatusAccepted},
		{"Bearer认证", map[string]string{"Authorization": "Bearer sk_test_12345678"}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, do(r, http.MethodPost, "/api/v1/activate", "", tt.headers).Code)
		})
	}

	// 状态查询无需认证
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/status", "", nil).Code)
}
