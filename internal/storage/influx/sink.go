// Package influx 将每次上行写为 InfluxDB 数据点
package influx

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	cfgpkg "github.com/taoyao-code/fed3-node/internal/config"
	"github.com/taoyao-code/fed3-node/internal/measurement"
	"github.com/taoyao-code/fed3-node/internal/mirror"
)

// Sink 阻塞写入 API 封装
type Sink struct {
	client      influxdb2.Client
	writer      api.WriteAPIBlocking
	measurement string
	deviceID    string
}

// New 创建 Sink
func New(cfg cfgpkg.InfluxConfig, deviceID string) *Sink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		deviceID:    deviceID,
	}
}

func (s *Sink) Name() string { return "influx" }

// Write 实现 mirror.Sink
func (s *Sink) Write(ctx context.Context, rec *mirror.Record) error {
	if err := s.writer.WritePoint(ctx, Point(s.measurement, s.deviceID, rec)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Ping 健康检查
func (s *Sink) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influx ping: not ready")
	}
	return nil
}

// Close 释放客户端
func (s *Sink) Close() {
	s.client.Close()
}

// Point 由镜像记录构造数据点；只写入已采集的字段
func Point(name, deviceID string, rec *mirror.Record) *write.Point {
	snap := &rec.Snapshot
	tags := map[string]string{
		"device": deviceID,
		"port":   strconv.Itoa(int(rec.Port)),
	}
	fields := map[string]interface{}{
		"frame_bytes": len(rec.Frame),
		"flags":       int(rec.Flags),
		"events":      snap.EventCount(),
		"truncated":   rec.Truncated,
	}
	if snap.Flags.Has(measurement.FlagVbat) {
		fields["vbat"] = snap.Vbat
	}
	if snap.Flags.Has(measurement.FlagVbus) {
		fields["vbus"] = snap.Vbus
	}
	if snap.Flags.Has(measurement.FlagBoot) {
		fields["boot_count"] = snap.BootCount
	}
	if snap.Flags.Has(measurement.FlagTPH) {
		fields["temperature"] = snap.Env.Temperature
		fields["pressure"] = snap.Env.Pressure
		fields["humidity"] = snap.Env.Humidity
	}
	if snap.Flags.Has(measurement.FlagLight) {
		fields["light"] = snap.Light
	}
	if e := rec.Event; e != nil {
		tags["event"] = e.EventName
		tags["session"] = e.SessionName
		fields["pellet_count"] = e.PelletCount
		fields["left_count"] = e.LeftCount
		fields["right_count"] = e.RightCount
		fields["event_time_ms"] = e.EventTimeMs()
	}
	return influxdb2.NewPoint(name, tags, fields, rec.At)
}
