package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/mirror"
)

// MirrorRepo uplink_mirror 表：每个编码帧一行
type MirrorRepo struct {
	Pool     *pgxpool.Pool
	DeviceID string
}

// MirrorRow 镜像行
type MirrorRow struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Port       uint8     `json:"port"`
	Confirmed  bool      `json:"confirmed"`
	Frame      []byte    `json:"frame"`
	Flags      uint8     `json:"flags"`
	Truncated  bool      `json:"truncated"`
	EventIndex int       `json:"event_index"`
}

func (r *MirrorRepo) Name() string { return "postgres" }

// mirrorArgs 按 INSERT 列顺序展开；未采集的字段写 NULL
func mirrorArgs(deviceID string, rec *mirror.Record) []any {
	s := &rec.Snapshot
	opt := func(flag measurement.Flags, v any) any {
		if s.Flags.Has(flag) {
			return v
		}
		return nil
	}
	var env [3]any
	if s.Flags.Has(measurement.FlagTPH) {
		env = [3]any{s.Env.Temperature, s.Env.Pressure, s.Env.Humidity}
	}
	return []any{
		rec.ID, deviceID, rec.At, int16(rec.Port), rec.Confirmed,
		rec.Frame, int16(rec.Flags), rec.Truncated, int16(rec.EventIndex),
		opt(measurement.FlagVbat, s.Vbat),
		opt(measurement.FlagVbus, s.Vbus),
		opt(measurement.FlagBoot, int64(s.BootCount)),
		env[0], env[1], env[2],
		opt(measurement.FlagLight, s.Light),
	}
}

// Write 实现 mirror.Sink
func (r *MirrorRepo) Write(ctx context.Context, rec *mirror.Record) error {
	const q = `INSERT INTO uplink_mirror
        (id, device_id, created_at, port, confirmed, frame, flags, truncated, event_index,
         vbat, vbus, boot_count, temperature, pressure, humidity, light)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        ON CONFLICT (id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, mirrorArgs(r.DeviceID, rec)...); err != nil {
		return fmt.Errorf("insert uplink_mirror: %w", err)
	}
	return nil
}

// LastMirroredAt 本设备最近一条镜像的上行时间；无记录时为零值
func (r *MirrorRepo) LastMirroredAt(ctx context.Context) (time.Time, error) {
	const q = `SELECT max(created_at) FROM uplink_mirror WHERE device_id=$1`
	var last *time.Time
	if err := r.Pool.QueryRow(ctx, q, r.DeviceID).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("query uplink_mirror: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}

// Recent 最近 limit 条镜像
func (r *MirrorRepo) Recent(ctx context.Context, limit int) ([]MirrorRow, error) {
	const q = `SELECT id::text, created_at, port, confirmed, frame, flags, truncated, event_index
        FROM uplink_mirror WHERE device_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, r.DeviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MirrorRow
	for rows.Next() {
		var row MirrorRow
		var port, flags, idx int16
		if err := rows.Scan(&row.ID, &row.CreatedAt, &port, &row.Confirmed, &row.Frame, &flags, &row.Truncated, &idx); err != nil {
			return nil, err
		}
		row.Port = uint8(port)
		row.Flags = uint8(flags)
		row.EventIndex = int(idx)
		out = append(out, row)
	}
	return out, rows.Err()
}
