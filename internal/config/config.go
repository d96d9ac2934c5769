package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string         `json:"log_level" yaml:"log_level"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	API      APIConfig      `json:"api" yaml:"api"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Results  ResultsConfig  `json:"results" yaml:"results"`
	Events   EventsStore    `json:"events" yaml:"events"`
	Live     LiveConfig     `json:"live" yaml:"live"`
}

type IngestConfig struct {
	ChannelBuffer int          `json:"channel_buffer" yaml:"channel_buffer"`
	Kafka         KafkaConfig  `json:"kafka" yaml:"kafka"`
	MQTT          MQTTConfig   `json:"mqtt" yaml:"mqtt"`
	Replay        ReplayConfig `json:"replay" yaml:"replay"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type ReplayConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Files   []string `json:"files" yaml:"files"`
	// DeviceID stamped onto replayed rows, since CSV exports carry none.
	DeviceID string `json:"device_id" yaml:"device_id"`
}

type PipelineConfig struct {
	SampleRate     float64         `json:"sample_rate" yaml:"sample_rate"`
	ResultInterval time.Duration   `json:"result_interval" yaml:"result_interval"`
	MotionFirst    bool            `json:"motion_first" yaml:"motion_first"`
	Motion         MotionConfig    `json:"motion" yaml:"motion"`
	Normalize      NormalizeConfig `json:"normalize" yaml:"normalize"`
	SpO2           SpO2Config      `json:"spo2" yaml:"spo2"`
	HeartRate      HRConfig        `json:"heart_rate" yaml:"heart_rate"`
	EventDetection DetectionConfig `json:"event_detection" yaml:"event_detection"`
}

type MotionConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	Taps              int     `json:"taps" yaml:"taps"`
	LearningRate      float64 `json:"learning_rate" yaml:"learning_rate"`
	VarianceThreshold float64 `json:"variance_threshold" yaml:"variance_threshold"`
}

type NormalizeConfig struct {
	Alpha               float64 `json:"alpha" yaml:"alpha"`
	Strategy            string  `json:"strategy" yaml:"strategy"`
	LowSignalThreshold  float64 `json:"low_signal_threshold" yaml:"low_signal_threshold"`
	SaturationThreshold float64 `json:"saturation_threshold" yaml:"saturation_threshold"`
}

type SpO2Config struct {
	BufferSize      int     `json:"buffer_size" yaml:"buffer_size"`
	MinSamples      int     `json:"min_samples" yaml:"min_samples"`
	SmoothingWindow int     `json:"smoothing_window" yaml:"smoothing_window"`
	Curve           string  `json:"curve" yaml:"curve"`
	MinQuality      float64 `json:"min_quality" yaml:"min_quality"`
}

type HRConfig struct {
	WindowSeconds float64 `json:"window_seconds" yaml:"window_seconds"`
	MinQuality    float64 `json:"min_quality" yaml:"min_quality"`
	MinPerfusion  float64 `json:"min_perfusion" yaml:"min_perfusion"`
}

type DetectionConfig struct {
	IRThreshold      float64       `json:"ir_threshold" yaml:"ir_threshold"`
	ValidationWindow time.Duration `json:"validation_window" yaml:"validation_window"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type ResultsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type EventsStore struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type LiveConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Channel  string `json:"channel" yaml:"channel"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			Kafka:         KafkaConfig{Enabled: false},
			MQTT:          MQTTConfig{Enabled: false},
			Replay:        ReplayConfig{Enabled: false, DeviceID: "replay"},
		},
		Pipeline: PipelineConfig{
			SampleRate:     25,
			ResultInterval: 2 * time.Second,
			MotionFirst:    true,
			Motion: MotionConfig{
				Enabled:           true,
				Taps:              32,
				LearningRate:      0.01,
				VarianceThreshold: 1.0,
			},
			Normalize: NormalizeConfig{
				Alpha:               0.01,
				Strategy:            "persistent",
				LowSignalThreshold:  10000,
				SaturationThreshold: 500000,
			},
			SpO2: SpO2Config{
				BufferSize:      100,
				MinSamples:      30,
				SmoothingWindow: 10,
				Curve:           "quadratic",
				MinQuality:      0.6,
			},
			HeartRate: HRConfig{
				WindowSeconds: 8,
				MinQuality:    0.5,
				MinPerfusion:  0.1,
			},
			EventDetection: DetectionConfig{
				IRThreshold:      150,
				ValidationWindow: 180 * time.Second,
			},
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:biosense.db?_pragma=busy_timeout(5000)"},
		Results: ResultsConfig{StoreLimit: 500},
		Events:  EventsStore{StoreLimit: 1000},
		Live:    LiveConfig{Enabled: false, Addr: "localhost:6379", Channel: "biosense.results"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Ingest.Replay.DeviceID == "" {
		cfg.Ingest.Replay.DeviceID = "replay"
	}
	if cfg.Pipeline.SampleRate <= 0 {
		cfg.Pipeline.SampleRate = 25
	}
	if cfg.Pipeline.ResultInterval <= 0 {
		cfg.Pipeline.ResultInterval = 2 * time.Second
	}
	if cfg.Pipeline.Motion.Taps <= 0 {
		cfg.Pipeline.Motion.Taps = 32
	}
	if cfg.Pipeline.Motion.LearningRate <= 0 {
		cfg.Pipeline.Motion.LearningRate = 0.01
	}
	if cfg.Pipeline.Motion.VarianceThreshold <= 0 {
		cfg.Pipeline.Motion.VarianceThreshold = 1.0
	}
	if cfg.Pipeline.Normalize.Alpha <= 0 {
		cfg.Pipeline.Normalize.Alpha = 0.01
	}
	if cfg.Pipeline.Normalize.Strategy == "" {
		cfg.Pipeline.Normalize.Strategy = "persistent"
	}
	if cfg.Pipeline.EventDetection.IRThreshold == 0 {
		cfg.Pipeline.EventDetection.IRThreshold = 150
	}
	if cfg.Pipeline.EventDetection.ValidationWindow <= 0 {
		cfg.Pipeline.EventDetection.ValidationWindow = 180 * time.Second
	}
	if cfg.Results.StoreLimit <= 0 {
		cfg.Results.StoreLimit = 500
	}
	if cfg.Events.StoreLimit <= 0 {
		cfg.Events.StoreLimit = 1000
	}
	if cfg.Live.Channel == "" {
		cfg.Live.Channel = "biosense.results"
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.MQTT.Enabled {
		if cfg.Ingest.MQTT.Broker == "" || cfg.Ingest.MQTT.Topic == "" {
			return errors.New("ingest.mqtt requires broker, topic")
		}
	}
	if cfg.Ingest.Replay.Enabled && len(cfg.Ingest.Replay.Files) == 0 {
		return errors.New("ingest.replay.files required when ingest.replay.enabled is true")
	}
	if cfg.Live.Enabled && cfg.Live.Addr == "" {
		return errors.New("live.addr required when live.enabled is true")
	}
	if cfg.Pipeline.SampleRate <= 0 {
		return errors.New("pipeline.sample_rate must be > 0")
	}
	switch cfg.Pipeline.SpO2.Curve {
	case "", "linear", "quadratic", "cubic":
	default:
		return fmt.Errorf("pipeline.spo2.curve unknown: %q", cfg.Pipeline.SpO2.Curve)
	}
	switch cfg.Pipeline.Normalize.Strategy {
	case "", "raw", "dynamic_range", "adaptive_baseline", "persistent":
	default:
		return fmt.Errorf("pipeline.normalize.strategy unknown: %q", cfg.Pipeline.Normalize.Strategy)
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file;
// Reload and Watch are inert. Used by tests and the replay tool.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
