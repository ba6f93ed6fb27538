package app

import (
	"context"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/migrate"
	pgstorage "github.com/taoyao-code/fed3-node/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并执行内嵌迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	migrations, err := fs.Sub(pgstorage.Migrations, "migrations")
	if err != nil {
		dbpool.Close()
		return nil, err
	}
	if err = (migrate.Runner{FS: migrations}).Up(ctx, dbpool); err != nil {
		log.Error("db migrate error", zap.Error(err))
		dbpool.Close()
		return nil, err
	}
	log.Info("db migrations applied")
	return dbpool, nil
}
