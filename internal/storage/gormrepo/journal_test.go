package gormrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/mirror"
	"github.com/taoyao-code/fed3-node/internal/protocol/fed3"
	"github.com/taoyao-code/fed3-node/internal/storage"
	"github.com/taoyao-code/fed3-node/internal/storage/models"
	"github.com/taoyao-code/fed3-node/internal/uplink"
)

type memJournal struct {
	events []*models.FeederEvent
}

func (m *memJournal) WithTx(ctx context.Context, fn func(storage.EventJournal) error) error {
	return fn(m)
}

func (m *memJournal) AppendEvent(_ context.Context, ev *models.FeederEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memJournal) RecentEvents(context.Context, string, int) ([]models.FeederEvent, error) {
	return nil, nil
}

func (m *memJournal) CountEvents(context.Context, string) (int64, error) {
	return int64(len(m.events)), nil
}

func recordWithEvent(ev *fed3.EventInfo) *mirror.Record {
	f := &uplink.Frame{Bytes: []byte{0x24, 0x40}, Flags: measurement.FlagFED3, EventIndex: 0, Event: ev}
	return mirror.NewRecord(time.Unix(1700000100, 0).UTC(), f, measurement.Snapshot{}, 2, false)
}

func TestToModel(t *testing.T) {
	ev := &fed3.EventInfo{
		Timestamp:    1700000000,
		Version:      [3]uint8{1, 4, 2},
		DeviceNumber: 12,
		SessionName:  "FR1",
		BatteryRaw:   16384,
		EventActive:  fed3.RetrievalEvent,
		EventName:    "Pellet",
		EventTimeRaw: 250,
		LeftCount:    5,
		PelletCount:  3,
	}
	rec := recordWithEvent(ev)

	m := toModel("cage-2", rec)
	require.NotNil(t, m)
	assert.Equal(t, rec.ID, m.UplinkID)
	assert.Equal(t, "cage-2", m.DeviceID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), m.FeederTime)
	assert.Equal(t, "1.4.2", m.FeederVersion)
	assert.Equal(t, float32(4), m.BatteryVolts)
	assert.Equal(t, int32(1000), m.EventTimeMs)
	assert.True(t, m.Retrieval)
	assert.Equal(t, int32(3), m.PelletCount)
}

func TestJournal_SkipsFramesWithoutEvent(t *testing.T) {
	repo := &memJournal{}
	j := &Journal{Repo: repo, DeviceID: "cage-2"}

	require.NoError(t, j.Write(context.Background(), recordWithEvent(nil)))
	assert.Empty(t, repo.events)

	require.NoError(t, j.Write(context.Background(), recordWithEvent(&fed3.EventInfo{EventName: "Left"})))
	require.Len(t, repo.events, 1)
	assert.Equal(t, "Left", repo.events[0].EventName)
	assert.Equal(t, "journal", j.Name())
}
