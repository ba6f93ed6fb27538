package gormrepo

import (
	"context"
	"time"

	"github.com/taoyao-code/fed3-node/internal/mirror"
	"github.com/taoyao-code/fed3-node/internal/storage"
	"github.com/taoyao-code/fed3-node/internal/storage/models"
)

// Journal 将携带事件的上行写入 feeder_events；不含事件的上行忽略
type Journal struct {
	Repo     storage.EventJournal
	DeviceID string
}

func (j *Journal) Name() string { return "journal" }

// Write 实现 mirror.Sink
func (j *Journal) Write(ctx context.Context, rec *mirror.Record) error {
	ev := toModel(j.DeviceID, rec)
	if ev == nil {
		return nil
	}
	return j.Repo.AppendEvent(ctx, ev)
}

func toModel(deviceID string, rec *mirror.Record) *models.FeederEvent {
	e := rec.Event
	if e == nil {
		return nil
	}
	return &models.FeederEvent{
		UplinkID:         rec.ID,
		DeviceID:         deviceID,
		ReceivedAt:       rec.At,
		FeederTime:       time.Unix(int64(e.Timestamp), 0).UTC(),
		FeederVersion:    e.VersionString(),
		FeederNumber:     int32(e.DeviceNumber),
		SessionType:      e.SessionName,
		BatteryVolts:     float32(e.BatteryVolts()),
		MotorTurns:       int32(e.MotorTurns),
		FixedRatio:       int32(e.FixedRatio),
		EventName:        e.EventName,
		EventTimeMs:      int32(e.EventTimeMs()),
		Retrieval:        e.IsRetrieval(),
		LeftCount:        int32(e.LeftCount),
		RightCount:       int32(e.RightCount),
		PelletCount:      int32(e.PelletCount),
		BlockPelletCount: int32(e.BlockPelletCount),
	}
}
