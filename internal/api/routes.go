package api

import (
	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/fed3-node/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"go.uber.org/zap"
)

// RegisterControlRoutes 注册节点控制与查询路由
func RegisterControlRoutes(
	r gin.IRouter,
	handler *ControlHandler,
	authCfg cfgpkg.AuthConfig,
	limitCfg middleware.RateLimitConfig,
	logger *zap.Logger,
) {
	// 只读查询无需认证
	r.GET("/status", handler.GetStatus)
	r.GET("/uplinks", handler.ListUplinks)
	r.GET("/events", handler.ListEvents)

	ctl := r.Group("")
	ctl.Use(middleware.RateLimit(limitCfg))
	if authCfg.Enabled {
		ctl.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	ctl.POST("/activate", handler.Activate)
	ctl.POST("/deactivate", handler.Deactivate)
	ctl.PUT("/cycle", handler.SetCycle)

	logger.Info("control routes registered", zap.Int("endpoints", 6))
}
