package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"biosense/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:biosense.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			device_id TEXT NOT NULL,
			heart_rate_bpm INTEGER NOT NULL,
			heart_rate_quality REAL NOT NULL,
			heart_rate_source TEXT NOT NULL,
			spo2_percent REAL NOT NULL,
			spo2_quality REAL NOT NULL,
			perfusion_index REAL NOT NULL,
			is_worn INTEGER NOT NULL,
			motion_level REAL NOT NULL,
			signal_strength TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_device_ts ON results(device_id, ts)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			event_number INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			start_ts TEXT NOT NULL,
			end_ts TEXT NOT NULL,
			start_ir REAL NOT NULL,
			end_ir REAL NOT NULL,
			average_ir REAL NOT NULL,
			is_valid INTEGER NOT NULL,
			context_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			record_json TEXT NOT NULL
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

func (s *sqliteStore) SaveResult(ctx context.Context, result model.BiometricResult) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (ts, device_id, heart_rate_bpm, heart_rate_quality, heart_rate_source, spo2_percent, spo2_quality, perfusion_index, is_worn, motion_level, signal_strength)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) SaveEvent(ctx context.Context, sessionID string, event model.MuscleActivityEvent) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, event_number, event_type, start_ts, end_ts, start_ir, end_ir, average_ir, is_valid, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) SaveSensorData(ctx context.Context, deviceID string, records []model.SensorData) error {
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
		`INSERT INTO sensor_data (device_id, ts, record_json) VALUES (?, ?, ?)`)
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
