// Package ingest feeds raw sensor packets into the processing channel.
// Sources are independent goroutines: Kafka and MQTT for live devices,
// CSV replay for recorded exports. A full channel drops packets rather
// than blocking the source.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"biosense/internal/model"
)

func SendNonBlocking(ctx context.Context, out chan<- model.RawPacket, pkt model.RawPacket, logger *slog.Logger) bool {
	select {
	case out <- pkt:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("packet channel full, dropping packet", "device_id", pkt.DeviceID, "characteristic", pkt.Characteristic)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
