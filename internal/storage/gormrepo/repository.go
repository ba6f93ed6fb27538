package gormrepo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/taoyao-code/fed3-node/internal/storage"
	"github.com/taoyao-code/fed3-node/internal/storage/models"
)

// Repository 基于 GORM 的 EventJournal 实现。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// Open 以 DSN 打开 GORM 连接
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return db, nil
}

// New 返回一个使用给定 *gorm.DB 的 EventJournal 实例。
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ storage.EventJournal = (*Repository)(nil)

// WithTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) WithTx(ctx context.Context, fn func(storage.EventJournal) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// AppendEvent 插入事件；uplink_id 冲突时忽略。
func (r *Repository) AppendEvent(ctx context.Context, ev *models.FeederEvent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uplink_id"}},
			DoNothing: true,
		}).
		Create(ev).Error
}

// RecentEvents 按饲喂器时间倒序返回最近事件。
func (r *Repository) RecentEvents(ctx context.Context, deviceID string, limit int) ([]models.FeederEvent, error) {
	var out []models.FeederEvent
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("feeder_time DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountEvents 统计设备事件数。
func (r *Repository) CountEvents(ctx context.Context, deviceID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.FeederEvent{}).
		Where("device_id = ?", deviceID).
		Count(&n).Error
	return n, err
}
