package main

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/fed3-node/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/logging"
)

func main() {
	// 1) 加载配置（FED3_CONFIG 或 configs/node.yaml）
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动节点（阻塞至收到退出信号）
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		logger.Fatal("node exited with error", zap.Error(err))
	}
}
