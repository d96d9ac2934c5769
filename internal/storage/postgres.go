package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"biosense/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/biosense?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			device_id TEXT NOT NULL,
			heart_rate_bpm INTEGER NOT NULL,
			heart_rate_quality DOUBLE PRECISION NOT NULL,
			heart_rate_source TEXT NOT NULL,
			spo2_percent DOUBLE PRECISION NOT NULL,
			spo2_quality DOUBLE PRECISION NOT NULL,
			perfusion_index DOUBLE PRECISION NOT NULL,
			is_worn BOOLEAN NOT NULL,
			motion_level DOUBLE PRECISION NOT NULL,
			signal_strength TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_device_ts ON results(device_id, ts)`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_number INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			start_ts TIMESTAMPTZ NOT NULL,
			end_ts TIMESTAMPTZ NOT NULL,
			start_ir DOUBLE PRECISION NOT NULL,
			end_ir DOUBLE PRECISION NOT NULL,
			average_ir DOUBLE PRECISION NOT NULL,
			is_valid BOOLEAN NOT NULL,
			context_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			record_json JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_data_device_ts ON sensor_data(device_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveResult(ctx context.Context, result model.BiometricResult) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (ts, device_id, heart_rate_bpm, heart_rate_quality, heart_rate_source, spo2_percent, spo2_quality, perfusion_index, is_worn, motion_level, signal_strength)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		result.Timestamp.UTC(),
		result.DeviceID,
		result.HeartRateBPM,
		result.HeartRateQuality,
		string(result.HeartRateSource),
		result.SpO2Percent,
		result.SpO2Quality,
		result.PerfusionIndex,
		result.IsWorn,
		result.MotionLevel,
		string(result.SignalStrength),
	)
	return err
}

func (s *postgresStore) SaveEvent(ctx context.Context, sessionID string, event model.MuscleActivityEvent) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, event_number, event_type, start_ts, end_ts, start_ir, end_ir, average_ir, is_valid, context_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sessionID,
		event.EventNumber,
		string(event.Type),
		event.StartTs.UTC(),
		event.EndTs.UTC(),
		event.StartIR,
		event.EndIR,
		event.AverageIR,
		event.IsValid,
		encodeJSON(eventContext(event)),
	)
	return err
}

func (s *postgresStore) SaveSensorData(ctx context.Context, deviceID string, records []model.SensorData) error {
	if s.db == nil || deviceID == "" || len(records) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sensor_data (device_id, ts, record_json) VALUES ($1, $2, $3)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, deviceID, rec.Timestamp.UTC(), encodeJSON(rec)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
