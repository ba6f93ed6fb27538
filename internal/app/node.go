package app

import (
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/loop"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
)

// LoopOptions 由配置生成测量循环参数
func LoopOptions(cfg *cfgpkg.Config) (loop.Options, error) {
	debug, err := loop.ParseDebugFlags(cfg.Loop.Debug)
	if err != nil {
		return loop.Options{}, fmt.Errorf("loop.debug: %w", err)
	}
	opts := loop.DefaultOptions()
	opts.Warmup = cfg.Loop.Warmup
	opts.LightTimeout = cfg.Loop.LightTimeout
	opts.UplinkPort = cfg.Loop.UplinkPort
	opts.DeepSleep = cfg.Loop.DeepSleep
	opts.InitialCycleSeconds = uint32(cfg.Loop.InitialCycle.Seconds())
	opts.BurstCount = cfg.Loop.BurstCount
	opts.PermanentCycleSeconds = uint32(cfg.Loop.PermanentCycle.Seconds())
	if cfg.Serial.InterCharTimeout > 0 {
		opts.T35 = cfg.Serial.InterCharTimeout
	}
	opts.Debug = debug
	return opts, nil
}

// OperatingFlags 解析配置中的运行标志
func OperatingFlags(cfg cfgpkg.LoopConfig) (*hal.FlagStore, error) {
	f, err := hal.ParseOperatingFlags(cfg.OperatingFlags)
	if err != nil {
		return nil, fmt.Errorf("loop.operatingFlags: %w", err)
	}
	return hal.NewFlagStore(f), nil
}

// LoadNames 加载名称表；未配置或加载失败时使用内置表
func LoadNames(cfg cfgpkg.NamesConfig, logger *zap.Logger) *fed3.Names {
	if cfg.File == "" {
		return fed3.DefaultNames()
	}
	names, err := fed3.LoadNames(cfg.File)
	if err != nil {
		logger.Warn("load names failed, using built-in tables", zap.String("path", cfg.File), zap.Error(err))
		return fed3.DefaultNames()
	}
	logger.Info("names loaded", zap.String("path", cfg.File),
		zap.Int("sessions", len(names.Sessions)), zap.Int("events", len(names.Events)))
	return names
}
