package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/fed3-node/internal/loop"
	"github.com/taoyao-code/fed3-node/internal/storage/models"
	pgstorage "github.com/taoyao-code/fed3-node/internal/storage/pg"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Controller 运行循环控制面；命令异步投递到循环协程
type Controller interface {
	Status() loop.Status
	RequestActive(ctx context.Context, enable bool) error
	SetCycle(ctx context.Context, seconds, burst uint32) error
}

// UplinkHistory 上行镜像查询
type UplinkHistory interface {
	Recent(ctx context.Context, limit int) ([]pgstorage.MirrorRow, error)
}

// EventHistory 喂食事件流水查询
type EventHistory interface {
	RecentEvents(ctx context.Context, deviceID string, limit int) ([]models.FeederEvent, error)
}

// ControlHandler 节点控制API处理器
type ControlHandler struct {
	ctrl     Controller
	uplinks  UplinkHistory
	events   EventHistory
	deviceID string
	logger   *zap.Logger
}

// NewControlHandler 创建控制API处理器；uplinks/events 可为 nil
func NewControlHandler(ctrl Controller, uplinks UplinkHistory, events EventHistory, deviceID string, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{
		ctrl:     ctrl,
		uplinks:  uplinks,
		events:   events,
		deviceID: deviceID,
		logger:   logger,
	}
}

// CycleRequest 修改上行周期
type CycleRequest struct {
	Seconds uint32 `json:"seconds" binding:"required,min=1"`
	Count   uint32 `json:"count"`
}

// GetStatus 查询运行循环状态
func (h *ControlHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// Activate 请求进入工作状态
func (h *ControlHandler) Activate(c *gin.Context) {
	h.requestActive(c, true)
}

// Deactivate 请求退出工作状态
func (h *ControlHandler) Deactivate(c *gin.Context) {
	h.requestActive(c, false)
}

func (h *ControlHandler) requestActive(c *gin.Context, enable bool) {
	if err := h.ctrl.RequestActive(c.Request.Context(), enable); err != nil {
		h.logger.Warn("request active failed", zap.Bool("enable", enable), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "active": enable})
}

// SetCycle 修改上行周期与突发次数
func (h *ControlHandler) SetCycle(c *gin.Context) {
	var req CycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ctrl.SetCycle(c.Request.Context(), req.Seconds, req.Count); err != nil {
		h.logger.Warn("set cycle failed", zap.Uint32("seconds", req.Seconds), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "seconds": req.Seconds, "count": req.Count})
}

// ListUplinks 最近上行镜像
func (h *ControlHandler) ListUplinks(c *gin.Context) {
	if h.uplinks == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "uplink mirror disabled"})
		return
	}
	rows, err := h.uplinks.Recent(c.Request.Context(), parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uplinks": rows})
}

// ListEvents 最近喂食事件
func (h *ControlHandler) ListEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event journal disabled"})
		return
	}
	list, err := h.events.RecentEvents(c.Request.Context(), h.deviceID, parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

func parseLimit(c *gin.Context) int {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil && vv > 0 {
			limit = vv
		}
	}
	return min(limit, maxListLimit)
}
