package app

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/metrics"
	"github.com/taoyao-code/fed3-node/internal/radio"
	redisstorage "github.com/taoyao-code/fed3-node/internal/storage/redis"
)

// closableRadio 上行驱动同时持有后台协程
type closableRadio interface {
	hal.Radio
	io.Closer
}

// NewRadio 按配置选择上行驱动，并按需叠加占空比限制
func NewRadio(cfg cfgpkg.RadioConfig, deviceID string, redisClient *redisstorage.Client, m *metrics.NodeMetrics, logger *zap.Logger) (hal.Radio, io.Closer, error) {
	var inner closableRadio
	switch cfg.Driver {
	case cfgpkg.RadioLog:
		inner = radio.NewLog(cfg.Provisioned, logger)
	case cfgpkg.RadioRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("radio driver %q requires redis", cfg.Driver)
		}
		queue := redisstorage.NewUplinkQueue(redisClient, cfg.QueueKey)
		inner = radio.NewRedis(queue, deviceID, cfg.Provisioned, cfg.Webhook.Timeout, logger)
	case cfgpkg.RadioWebhook:
		wh := radio.NewWebhook(&http.Client{Timeout: cfg.Webhook.Timeout},
			cfg.Webhook.URL, cfg.Webhook.APIKey, cfg.Webhook.Secret, deviceID, cfg.Provisioned, logger)
		if cfg.Webhook.Retries >= 0 {
			wh.Retries = cfg.Webhook.Retries
		}
		inner = wh
	default:
		return nil, nil, fmt.Errorf("unknown radio driver %q", cfg.Driver)
	}
	logger.Info("radio initialized",
		zap.String("driver", cfg.Driver),
		zap.Bool("provisioned", cfg.Provisioned),
		zap.Bool("duty_cycle", cfg.DutyCycle.Enable))

	if !cfg.DutyCycle.Enable {
		return inner, inner, nil
	}
	return radio.NewDutyCycle(inner, cfg.DutyCycle.Every, cfg.DutyCycle.Burst, logger, m), inner, nil
}
