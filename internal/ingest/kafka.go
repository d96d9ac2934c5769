package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"biosense/internal/config"
	"biosense/internal/model"
)

func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- model.RawPacket, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			pkt, err := ParseFrame(m.Value)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka frame error", "err", err)
				}
				continue
			}
			SendNonBlocking(ctx, out, pkt, logger)
		}
	}()
}
