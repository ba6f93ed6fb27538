package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/fed3-node/internal/health"
	redisstorage "github.com/taoyao-code/fed3-node/internal/storage/redis"
)

// NewHealthAggregator 创建健康检查聚合器，初始只检查运行循环
func NewHealthAggregator(runner *Runner, stall time.Duration) *health.Aggregator {
	return health.NewAggregator(health.NewLoopChecker(runner, stall))
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r gin.IRouter, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// mirrorMaxLag 镜像落后最近上行超过该时长时降级
const mirrorMaxLag = 2 * time.Minute

// AddRedisChecker 添加Redis检查器；只有作为上行通道时才是关键依赖
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client, uplink bool) {
	if redisClient == nil {
		return
	}
	var c health.Checker = health.NewRedisChecker(redisClient)
	if !uplink {
		c = health.Optional(c)
	}
	aggregator.AddChecker(c)
}

// AddDatabaseChecker 添加镜像库检查器（非关键）
func AddDatabaseChecker(aggregator *health.Aggregator, dbpool *pgxpool.Pool, progress health.MirrorProgress, runner *Runner) {
	if dbpool == nil {
		return
	}
	var lastUplink func() time.Time
	if runner != nil {
		lastUplink = runner.LastUplinkAt
	}
	aggregator.AddChecker(health.Optional(health.NewDatabaseChecker(dbpool, progress, lastUplink, mirrorMaxLag)))
}

// AddMirrorChecker 添加其他镜像目标的探活检查（非关键）
func AddMirrorChecker(aggregator *health.Aggregator, name string, p health.Pinger) {
	aggregator.AddChecker(health.Optional(health.NewPingChecker(name, p)))
}
