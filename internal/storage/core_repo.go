package storage

import (
	"context"

	"github.com/taoyao-code/fed3-node/internal/storage/models"
)

// EventJournal 饲喂器事件流水存储抽象
// 约束：
// - 上层不直接写 SQL，统一通过本接口访问
// - AppendEvent 以 uplink_id 幂等
type EventJournal interface {
	WithTx(ctx context.Context, fn func(repo EventJournal) error) error
	AppendEvent(ctx context.Context, ev *models.FeederEvent) error
	RecentEvents(ctx context.Context, deviceID string, limit int) ([]models.FeederEvent, error)
	CountEvents(ctx context.Context, deviceID string) (int64, error)
}
