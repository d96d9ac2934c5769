package model

import "time"

// Characteristic identifies the BLE characteristic a raw packet arrived on.
// The transport layer demultiplexes notifications into (characteristic,
// payload) pairs before they reach this process.
type Characteristic string

const (
	CharPPG             Characteristic = "ppg"
	CharAccelerometer   Characteristic = "accelerometer"
	CharTemperature     Characteristic = "temperature"
	CharBatteryTGM      Characteristic = "battery_tgm"
	CharBatteryStandard Characteristic = "battery_standard"
	CharEMG             Characteristic = "emg"
)

// RawPacket is one demultiplexed BLE notification. Immutable, consumed once.
type RawPacket struct {
	DeviceID       string         `json:"device_id"`
	Characteristic Characteristic `json:"characteristic"`
	Payload        []byte         `json:"payload"`
	ReceivedAt     time.Time      `json:"received_at"`
}

type PPGSample struct {
	Red       int32     `json:"red"`
	IR        int32     `json:"ir"`
	Green     int32     `json:"green"`
	Timestamp time.Time `json:"timestamp"`
}

type AccelerometerSample struct {
	X         int16     `json:"x"`
	Y         int16     `json:"y"`
	Z         int16     `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}

type TemperatureSample struct {
	Celsius   float32   `json:"celsius"`
	Timestamp time.Time `json:"timestamp"`
}

type BatterySample struct {
	Percentage int       `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

// EMGSample carries a single-channel EMG reading normalized to [0,1]
// from the device's 10-bit ADC.
type EMGSample struct {
	Normalized float64   `json:"normalized"`
	Timestamp  time.Time `json:"timestamp"`
}

type HeartRateSource string

const (
	HRSourceIR          HeartRateSource = "ir"
	HRSourceGreen       HeartRateSource = "green"
	HRSourceFFT         HeartRateSource = "fft"
	HRSourceUnavailable HeartRateSource = "unavailable"
)

type SignalStrength string

const (
	SignalNone     SignalStrength = "none"
	SignalWeak     SignalStrength = "weak"
	SignalModerate SignalStrength = "moderate"
	SignalStrong   SignalStrength = "strong"
)

// BiometricResult is produced once per processing window and handed
// upward unchanged; it never persists itself.
type BiometricResult struct {
	Timestamp        time.Time       `json:"timestamp"`
	DeviceID         string          `json:"device_id"`
	HeartRateBPM     int             `json:"heart_rate_bpm"`
	HeartRateQuality float64         `json:"heart_rate_quality"`
	HeartRateSource  HeartRateSource `json:"heart_rate_source"`
	SpO2Percent      float64         `json:"spo2_percent"`
	SpO2Quality      float64         `json:"spo2_quality"`
	PerfusionIndex   float64         `json:"perfusion_index"`
	IsWorn           bool            `json:"is_worn"`
	MotionLevel      float64         `json:"motion_level"`
	SignalStrength   SignalStrength  `json:"signal_strength"`
}

type SleepState string

const (
	SleepAwake SleepState = "awake"
	SleepLight SleepState = "light"
	SleepDeep  SleepState = "deep"
	SleepREM   SleepState = "rem"
)

type EventType string

const (
	EventActivity EventType = "activity"
	EventRest     EventType = "rest"
)

// MuscleActivityEvent is a closed interval during which the PPG IR value
// stayed continuously on one side of the detection threshold. Immutable
// once emitted; IsValid is decided at emission time and never revised.
type MuscleActivityEvent struct {
	EventNumber        int         `json:"event_number"`
	Type               EventType   `json:"type"`
	StartTs            time.Time   `json:"start_ts"`
	EndTs              time.Time   `json:"end_ts"`
	StartIR            float64     `json:"start_ir"`
	EndIR              float64     `json:"end_ir"`
	AverageIR          float64     `json:"average_ir"`
	AccelAtStart       [3]int16    `json:"accel_at_start"`
	TemperatureAtStart float64     `json:"temperature_at_start"`
	HeartRateAtStart   *float64    `json:"heart_rate_at_start,omitempty"`
	SpO2AtStart        *float64    `json:"spo2_at_start,omitempty"`
	SleepStateAtStart  *SleepState `json:"sleep_state_at_start,omitempty"`
	IsValid            bool        `json:"is_valid"`
}

// SensorData is one exported record of the CSV contract: everything the
// device reported around a single timestamp. Nil pointers mean the column
// is empty; a record with only Message set is a log-only row.
type SensorData struct {
	Timestamp        time.Time `json:"timestamp"`
	PPGIR            *int32    `json:"ppg_ir,omitempty"`
	PPGRed           *int32    `json:"ppg_red,omitempty"`
	PPGGreen         *int32    `json:"ppg_green,omitempty"`
	AccelX           *int16    `json:"accel_x,omitempty"`
	AccelY           *int16    `json:"accel_y,omitempty"`
	AccelZ           *int16    `json:"accel_z,omitempty"`
	TempC            *float64  `json:"temp_c,omitempty"`
	BatteryPercent   *int      `json:"battery_percent,omitempty"`
	HeartRateBPM     *int      `json:"heart_rate_bpm,omitempty"`
	HeartRateQuality *float64  `json:"heart_rate_quality,omitempty"`
	SpO2Percent      *float64  `json:"spo2_percent,omitempty"`
	SpO2Quality      *float64  `json:"spo2_quality,omitempty"`
	Message          string    `json:"message,omitempty"`
}

// LogOnly reports whether every sensor column is empty.
func (s SensorData) LogOnly() bool {
	return s.PPGIR == nil && s.PPGRed == nil && s.PPGGreen == nil &&
		s.AccelX == nil && s.AccelY == nil && s.AccelZ == nil &&
		s.TempC == nil && s.BatteryPercent == nil &&
		s.HeartRateBPM == nil && s.HeartRateQuality == nil &&
		s.SpO2Percent == nil && s.SpO2Quality == nil
}
