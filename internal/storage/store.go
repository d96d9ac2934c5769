package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"biosense/internal/config"
	"biosense/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveResult(ctx context.Context, result model.BiometricResult) error
	SaveEvent(ctx context.Context, sessionID string, event model.MuscleActivityEvent) error
	SaveSensorData(ctx context.Context, deviceID string, records []model.SensorData) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// eventContext collects the physiological context captured when the
// interval opened; stored as one JSON column in both drivers.
func eventContext(event model.MuscleActivityEvent) map[string]any {
	ctx := map[string]any{
		"accel_at_start":       event.AccelAtStart,
		"temperature_at_start": event.TemperatureAtStart,
	}
	if event.HeartRateAtStart != nil {
		ctx["heart_rate_at_start"] = *event.HeartRateAtStart
	}
	if event.SpO2AtStart != nil {
		ctx["spo2_at_start"] = *event.SpO2AtStart
	}
	if event.SleepStateAtStart != nil {
		ctx["sleep_state_at_start"] = *event.SleepStateAtStart
	}
	return ctx
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
