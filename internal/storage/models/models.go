package models

import (
	"time"
)

// 注意：
// - 保持与 storage/pg/migrations 对齐
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// FeederEvent 映射 feeder_events 表：每条随上行发出的饲喂器事件一行
type FeederEvent struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 携带该事件的上行镜像 ID
	UplinkID   string    `gorm:"column:uplink_id;type:uuid;not null;uniqueIndex"`
	DeviceID   string    `gorm:"column:device_id;type:text;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
	// 饲喂器自身时钟
	FeederTime    time.Time `gorm:"column:feeder_time;not null"`
	FeederVersion string    `gorm:"column:feeder_version;type:text;not null"`
	FeederNumber  int32     `gorm:"column:feeder_number;not null"`
	SessionType   string    `gorm:"column:session_type;type:text;not null"`
	BatteryVolts  float32   `gorm:"column:battery_volts;not null"`
	MotorTurns    int32     `gorm:"column:motor_turns;not null"`
	FixedRatio    int32     `gorm:"column:fixed_ratio;not null"`
	EventName     string    `gorm:"column:event_name;type:text;not null"`
	EventTimeMs   int32     `gorm:"column:event_time_ms;not null"`
	// Retrieval 为 true 时 EventTimeMs 是取食耗时，否则为触发时长
	Retrieval        bool      `gorm:"column:retrieval;not null"`
	LeftCount        int32     `gorm:"column:left_count;not null"`
	RightCount       int32     `gorm:"column:right_count;not null"`
	PelletCount      int32     `gorm:"column:pellet_count;not null"`
	BlockPelletCount int32     `gorm:"column:block_pellet_count;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (FeederEvent) TableName() string { return "feeder_events" }
