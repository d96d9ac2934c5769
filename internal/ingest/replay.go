package ingest

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"

	"biosense/internal/config"
	"biosense/internal/csvlog"
	"biosense/internal/model"
)

// StartReplay feeds recorded CSV exports through the pipeline as if the
// device were live. Each row is re-framed into the single-sample wire
// encodings; log-only rows are skipped.
func StartReplay(ctx context.Context, cfg *config.Manager, out chan<- model.RawPacket, logger *slog.Logger) {
	current := cfg.Get().Ingest.Replay
	if !current.Enabled {
		if logger != nil {
			logger.Info("replay ingest disabled")
		}
		return
	}
	for _, path := range current.Files {
		path := path
		if logger != nil {
			logger.Info("replay ingest enabled", "path", path, "device_id", current.DeviceID)
		}
		go replayFile(ctx, path, current.DeviceID, out, logger)
	}
}

func replayFile(ctx context.Context, path, deviceID string, out chan<- model.RawPacket, logger *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		if logger != nil {
			logger.Warn("replay open failed", "path", path, "err", err)
		}
		return
	}
	defer f.Close()

	r := csvlog.NewReader(f)
	rows, packets := 0, 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if logger != nil {
				logger.Warn("replay parse error", "path", path, "err", err)
			}
			continue
		}
		rows++
		for _, pkt := range packetsFromRecord(deviceID, rec) {
			if SendNonBlocking(ctx, out, pkt, logger) {
				packets++
			}
		}
	}
	if logger != nil {
		logger.Info("replay finished", "path", path, "rows", rows, "packets", packets)
	}
}

// packetsFromRecord re-frames one CSV row. PPG rows become a headerless
// red-ir-green sample, accelerometer rows a headerless x,y,z sample,
// temperature a little-endian float32, battery a single percentage byte.
func packetsFromRecord(deviceID string, rec model.SensorData) []model.RawPacket {
	var out []model.RawPacket
	if rec.PPGIR != nil && rec.PPGRed != nil && rec.PPGGreen != nil {
		payload := make([]byte, 12)
		binary.LittleEndian.PutUint32(payload[0:4], uint32(*rec.PPGRed))
		binary.LittleEndian.PutUint32(payload[4:8], uint32(*rec.PPGIR))
		binary.LittleEndian.PutUint32(payload[8:12], uint32(*rec.PPGGreen))
		out = append(out, model.RawPacket{
			DeviceID:       deviceID,
			Characteristic: model.CharPPG,
			Payload:        payload,
			ReceivedAt:     rec.Timestamp,
		})
	}
	if rec.AccelX != nil && rec.AccelY != nil && rec.AccelZ != nil {
		payload := make([]byte, 6)
		binary.LittleEndian.PutUint16(payload[0:2], uint16(*rec.AccelX))
		binary.LittleEndian.PutUint16(payload[2:4], uint16(*rec.AccelY))
		binary.LittleEndian.PutUint16(payload[4:6], uint16(*rec.AccelZ))
		out = append(out, model.RawPacket{
			DeviceID:       deviceID,
			Characteristic: model.CharAccelerometer,
			Payload:        payload,
			ReceivedAt:     rec.Timestamp,
		})
	}
	if rec.TempC != nil {
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, math.Float32bits(float32(*rec.TempC)))
		out = append(out, model.RawPacket{
			DeviceID:       deviceID,
			Characteristic: model.CharTemperature,
			Payload:        payload,
			ReceivedAt:     rec.Timestamp,
		})
	}
	if rec.BatteryPercent != nil {
		out = append(out, model.RawPacket{
			DeviceID:       deviceID,
			Characteristic: model.CharBatteryStandard,
			Payload:        []byte{byte(*rec.BatteryPercent)},
			ReceivedAt:     rec.Timestamp,
		})
	}
	return out
}
