// Package live pushes fresh biometric results to Redis so dashboards can
// read the latest value per device and subscribe to a pub/sub channel for
// updates. Optional; the pipeline works without it.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"biosense/internal/config"
	"biosense/internal/model"
)

const latestKeyPrefix = "biosense:latest:"

// Latest values expire so a dashboard never shows a device that stopped
// reporting hours ago as current.
const latestTTL = 5 * time.Minute

type Publisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewPublisher(cfg config.LiveConfig, logger *slog.Logger) *Publisher {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Publisher{client: client, channel: cfg.Channel, logger: logger}
}

// Ping verifies the connection at startup. A nil Publisher pings fine.
func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Publish(ctx context.Context, result model.BiometricResult) {
	if p == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, latestKeyPrefix+result.DeviceID, data, latestTTL).Err(); err != nil {
		if p.logger != nil {
			p.logger.Warn("redis set failed", "device_id", result.DeviceID, "err", err)
		}
		return
	}
	if p.channel != "" {
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil && p.logger != nil {
			p.logger.Warn("redis publish failed", "channel", p.channel, "err", err)
		}
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
