package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/fed3-node/internal/hal"
	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/migrate"
	"github.com/taoyao-code/fed3-node/internal/mirror"
	"github.com/taoyao-code/fed3-node/internal/uplink"
)

func sampleRecord() *mirror.Record {
	snap := measurement.Snapshot{
		Flags: measurement.FlagVbat | measurement.FlagTPH,
		Vbat:  3.7,
		Env:   hal.EnvReading{Temperature: 21.5, Pressure: 1013.25, Humidity: 40},
	}
	f := &uplink.Frame{Bytes: []byte{0x24, 0x11, 0x3B, 0x33}, Flags: snap.Flags, EventIndex: -1}
	return mirror.NewRecord(time.Now().UTC().Truncate(time.Microsecond), f, snap, 2, false)
}

func TestMirrorArgs_NullsForMissingFields(t *testing.T) {
	rec := sampleRecord()
	args := mirrorArgs("cage-1", rec)
	require.Len(t, args, 16)

	assert.Equal(t, "cage-1", args[1])
	assert.Equal(t, int16(0x11), args[6])
	assert.Equal(t, int16(-1), args[8])
	assert.Equal(t, float32(3.7), args[9])
	assert.Nil(t, args[10], "Vbus 未采集")
	assert.Nil(t, args[11], "Boot 未采集")
	assert.Equal(t, float32(21.5), args[12])
	assert.Nil(t, args[15], "Light 未采集")
}

// 集成测试：需要 TEST_DATABASE_URL 指向可写的 PostgreSQL
func TestMirrorRepo_WriteAndRecent(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Skip("database not available, skipping test")
	}
	require.NoError(t, migrate.Runner{FS: Migrations}.Up(ctx, pool))

	repo := &MirrorRepo{Pool: pool, DeviceID: "test-" + time.Now().Format("150405.000000")}
	last, err := repo.LastMirroredAt(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "无镜像")

	rec := sampleRecord()
	require.NoError(t, repo.Write(ctx, rec))
	require.NoError(t, repo.Write(ctx, rec), "重复写入幂等")

	rows, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.ID, rows[0].ID)
	assert.Equal(t, rec.Frame, rows[0].Frame)
	assert.Equal(t, -1, rows[0].EventIndex)

	last, err = repo.LastMirroredAt(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, rec.At, last, time.Millisecond)
}
