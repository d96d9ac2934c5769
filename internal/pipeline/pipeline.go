// Package pipeline wires the processing stages together: raw packets in,
// biometric results and muscle activity events out. One engine serves all
// devices; per-device filter state lives in a map behind a coarse mutex,
// matching the single-ingestion-path contract of the stage packages.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"biosense/internal/config"
	"biosense/internal/decode"
	"biosense/internal/events"
	"biosense/internal/heartrate"
	"biosense/internal/history"
	"biosense/internal/live"
	"biosense/internal/model"
	"biosense/internal/motion"
	"biosense/internal/normalize"
	"biosense/internal/results"
	"biosense/internal/spo2"
	"biosense/internal/storage"
)

const (
	// accelCountsPerG converts raw accelerometer counts into g for the
	// LMS noise reference, so the variance guard threshold keeps its
	// meaning regardless of the sensor's full-scale range.
	accelCountsPerG = 1000.0

	// motionLevelAlpha smooths the reported motion level.
	motionLevelAlpha = 0.1

	// Perfusion-index boundaries for the reported signal strength.
	strengthWeakPI     = 0.1
	strengthModeratePI = 0.4
	strengthStrongPI   = 1.0
)

type Engine struct {
	logger  *slog.Logger
	results *results.Store
	events  *events.Store
	session *events.Session
	store   storage.Store
	live    *live.Publisher

	cfg atomic.Value

	mu      sync.Mutex
	devices map[string]*deviceState
	started time.Time
}

// deviceState is everything the pipeline tracks per device. Owned by the
// engine goroutine; the engine mutex covers it.
type deviceState struct {
	compensator *motion.Compensator
	normalizer  *normalize.Normalizer
	spo2        *spo2.Estimator
	heartRate   *heartrate.Extractor
	rawIR       *history.Buffer[float64]

	lastAccel   [3]int16
	gravityEMA  float64
	gravitySet  bool
	noiseRef    float64
	motionLevel float64

	lastTemp    float64
	lastBattery *int
	lastSpO2    spo2.Result
	lastResult  time.Time
}

func NewEngine(cfg *config.Config, logger *slog.Logger, resultsStore *results.Store, eventStore *events.Store, store storage.Store, publisher *live.Publisher) *Engine {
	e := &Engine{
		logger:  logger,
		results: resultsStore,
		events:  eventStore,
		store:   store,
		live:    publisher,
		devices: make(map[string]*deviceState),
		started: time.Now().UTC(),
	}
	e.cfg.Store(cfg)
	e.session = events.NewSession(events.Config{
		IRThreshold:      cfg.Pipeline.EventDetection.IRThreshold,
		ValidationWindow: cfg.Pipeline.EventDetection.ValidationWindow,
	})
	return e
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (e *Engine) StartedAt() time.Time { return e.started }

func (e *Engine) Start(ctx context.Context, in <-chan model.RawPacket) {
	go func() {
		for {
			select {
			case pkt := <-in:
				e.ProcessPacket(ctx, pkt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (e *Engine) ProcessPacket(ctx context.Context, pkt model.RawPacket) {
	decoded, ok := decode.Packet(pkt)
	if !ok {
		if e.logger != nil {
			e.logger.Debug("undecodable packet", "device_id", pkt.DeviceID, "characteristic", pkt.Characteristic, "bytes", len(pkt.Payload))
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.getDevice(pkt.DeviceID)

	switch {
	case len(decoded.PPG) > 0:
		e.processPPG(ctx, pkt.DeviceID, d, decoded.PPG)
	case len(decoded.Accel) > 0:
		for _, s := range decoded.Accel {
			e.processAccel(d, s)
		}
	case decoded.Temperature != nil:
		d.lastTemp = float64(decoded.Temperature.Celsius)
		e.session.UpdateTemperature(d.lastTemp, decoded.Temperature.Timestamp)
	case decoded.Battery != nil:
		pct := decoded.Battery.Percentage
		d.lastBattery = &pct
	case decoded.EMG != nil:
		// EMG is recorded but not fed to the estimators; the IR channel
		// drives muscle activity detection.
		if e.logger != nil {
			e.logger.Debug("emg sample", "device_id", pkt.DeviceID, "normalized", decoded.EMG.Normalized)
		}
	}
}

func (e *Engine) getDevice(deviceID string) *deviceState {
	if d, ok := e.devices[deviceID]; ok {
		return d
	}
	cfg := e.config().Pipeline
	window := int(cfg.HeartRate.WindowSeconds * cfg.SampleRate)
	if window < 2 {
		window = 2
	}
	d := &deviceState{
		compensator: motion.NewCompensator(
			motion.WithTaps(cfg.Motion.Taps),
			motion.WithLearningRate(cfg.Motion.LearningRate),
			motion.WithVarianceThreshold(cfg.Motion.VarianceThreshold),
		),
		normalizer: normalize.NewNormalizer(cfg.Normalize.Alpha),
		spo2: spo2.NewEstimator(spo2.Config{
			BufferSize:      cfg.SpO2.BufferSize,
			MinSamples:      cfg.SpO2.MinSamples,
			SmoothingWindow: cfg.SpO2.SmoothingWindow,
			Curve:           spo2.Curve(cfg.SpO2.Curve),
			MinQuality:      cfg.SpO2.MinQuality,
		}),
		heartRate: heartrate.NewExtractor(heartrate.Config{
			SampleRate:    cfg.SampleRate,
			WindowSeconds: cfg.HeartRate.WindowSeconds,
			MinQuality:    cfg.HeartRate.MinQuality,
			MinPerfusion:  cfg.HeartRate.MinPerfusion,
		}),
		rawIR: history.NewBuffer[float64](window),
	}
	if cfg.Normalize.LowSignalThreshold > 0 {
		d.normalizer.SetValidityWindow(cfg.Normalize.LowSignalThreshold, cfg.Normalize.SaturationThreshold)
	}
	e.devices[deviceID] = d
	return d
}

// processAccel refreshes the LMS noise reference: deviation of the
// acceleration magnitude from its gravity estimate, in g.
func (e *Engine) processAccel(d *deviceState, s model.AccelerometerSample) {
	d.lastAccel = [3]int16{s.X, s.Y, s.Z}
	x := float64(s.X) / accelCountsPerG
	y := float64(s.Y) / accelCountsPerG
	z := float64(s.Z) / accelCountsPerG
	mag := math.Sqrt(x*x + y*y + z*z)
	if !d.gravitySet {
		d.gravityEMA = mag
		d.gravitySet = true
	} else {
		d.gravityEMA = 0.05*mag + 0.95*d.gravityEMA
	}
	d.noiseRef = mag - d.gravityEMA
	d.motionLevel = motionLevelAlpha*math.Abs(d.noiseRef) + (1-motionLevelAlpha)*d.motionLevel
}

func (e *Engine) processPPG(ctx context.Context, deviceID string, d *deviceState, samples []model.PPGSample) {
	cfg := e.config().Pipeline

	raw := make([]normalize.Sample, len(samples))
	for i, s := range samples {
		ir := float64(s.IR)
		if cfg.Motion.Enabled && cfg.MotionFirst {
			ir = d.compensator.Filter(ir, d.noiseRef)
		}
		raw[i] = normalize.Sample{IR: ir, Red: float64(s.Red), Green: float64(s.Green)}
	}
	ac := d.normalizer.NormalizeBatch(raw, normalize.Strategy(cfg.Normalize.Strategy))

	for i, s := range samples {
		irAC := ac[i].IR
		if cfg.Motion.Enabled && !cfg.MotionFirst {
			irAC = d.compensator.Filter(irAC, d.noiseRef)
		}

		d.rawIR.Append(raw[i].IR)
		d.heartRate.AddSample(raw[i].IR, float64(s.Green))
		d.lastSpO2 = d.spo2.AddSample(float64(s.Red), float64(s.IR))

		if em, closed := e.session.ProcessSample(irAC, s.Timestamp, d.lastAccel, d.lastTemp); closed {
			e.routeEmission(ctx, em)
		}

		if d.lastResult.IsZero() {
			d.lastResult = s.Timestamp
		} else if s.Timestamp.Sub(d.lastResult) >= cfg.ResultInterval {
			d.lastResult = s.Timestamp
			e.emitResult(ctx, deviceID, d, s)
		}
	}
}

func (e *Engine) routeEmission(ctx context.Context, em events.Emission) {
	if em.Discarded {
		if e.logger != nil {
			e.logger.Info("muscle activity event discarded",
				"event_number", em.Event.EventNumber,
				"type", em.Event.Type,
			)
		}
		return
	}
	if e.logger != nil {
		e.logger.Info("muscle activity event",
			"event_number", em.Event.EventNumber,
			"type", em.Event.Type,
			"average_ir", em.Event.AverageIR,
			"duration_sec", em.Event.EndTs.Sub(em.Event.StartTs).Seconds(),
		)
	}
	if e.events != nil {
		e.events.Add(em.Event)
	}
	if e.store != nil {
		if err := e.store.SaveEvent(ctx, e.session.ID, em.Event); err != nil && e.logger != nil {
			e.logger.Warn("event save failed", "err", err)
		}
	}
}

func (e *Engine) emitResult(ctx context.Context, deviceID string, d *deviceState, s model.PPGSample) {
	reading := d.heartRate.Current()
	spo2Res := d.lastSpO2

	irWindow := d.rawIR.Values()
	dc := stat.Mean(irWindow, nil)
	pi := normalize.PerfusionIndex(peakToPeak(irWindow), dc)
	worn := pi >= strengthWeakPI && d.normalizer.SignalValid(dc)

	result := model.BiometricResult{
		Timestamp:      s.Timestamp,
		DeviceID:       deviceID,
		PerfusionIndex: pi,
		IsWorn:         worn,
		MotionLevel:    d.motionLevel,
		SignalStrength: classifyStrength(worn, pi),
	}
	result.HeartRateSource = reading.Source
	if reading.Valid {
		result.HeartRateBPM = reading.BPM
		result.HeartRateQuality = reading.Quality
		e.session.UpdateHeartRate(float64(reading.BPM), s.Timestamp)
	}
	if spo2Res.Valid {
		result.SpO2Percent = spo2Res.SpO2
		result.SpO2Quality = spo2Res.Quality
		e.session.UpdateSpO2(spo2Res.SpO2, s.Timestamp)
	}

	if e.results != nil {
		e.results.Update(result)
	}
	e.live.Publish(ctx, result)
	if e.store != nil {
		if err := e.store.SaveResult(ctx, result); err != nil && e.logger != nil {
			e.logger.Warn("result save failed", "device_id", deviceID, "err", err)
		}
		rec := buildRecord(d, s, result)
		if err := e.store.SaveSensorData(ctx, deviceID, []model.SensorData{rec}); err != nil && e.logger != nil {
			e.logger.Warn("sensor data save failed", "device_id", deviceID, "err", err)
		}
	}
}

// buildRecord assembles one CSV-contract record from the sample that
// closed the processing window and the latest known slow-channel values.
func buildRecord(d *deviceState, s model.PPGSample, result model.BiometricResult) model.SensorData {
	ir, red, green := s.IR, s.Red, s.Green
	x, y, z := d.lastAccel[0], d.lastAccel[1], d.lastAccel[2]
	rec := model.SensorData{
		Timestamp: s.Timestamp,
		PPGIR:     &ir,
		PPGRed:    &red,
		PPGGreen:  &green,
		AccelX:    &x,
		AccelY:    &y,
		AccelZ:    &z,
	}
	if d.lastTemp != 0 {
		t := d.lastTemp
		rec.TempC = &t
	}
	if d.lastBattery != nil {
		b := *d.lastBattery
		rec.BatteryPercent = &b
	}
	if result.HeartRateBPM > 0 {
		bpm := result.HeartRateBPM
		q := result.HeartRateQuality
		rec.HeartRateBPM = &bpm
		rec.HeartRateQuality = &q
	}
	if result.SpO2Percent > 0 {
		sp := result.SpO2Percent
		q := result.SpO2Quality
		rec.SpO2Percent = &sp
		rec.SpO2Quality = &q
	}
	return rec
}

func classifyStrength(worn bool, pi float64) model.SignalStrength {
	switch {
	case !worn || pi < strengthWeakPI:
		return model.SignalNone
	case pi < strengthModeratePI:
		return model.SignalWeak
	case pi < strengthStrongPI:
		return model.SignalModerate
	default:
		return model.SignalStrong
	}
}

func peakToPeak(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// Session accessors route API calls through the engine mutex, since the
// session itself is not goroutine-safe.

func (e *Engine) StartSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Start(time.Now().UTC())
	return e.session.ID
}

func (e *Engine) StopSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Stop()
}

func (e *Engine) PauseSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Pause()
}

func (e *Engine) ResumeSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Resume()
}

func (e *Engine) SessionStats() events.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Stats()
}

func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID
}

// Reset drops all per-device filter state and the recording session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = make(map[string]*deviceState)
	cfg := e.config()
	e.session = events.NewSession(events.Config{
		IRThreshold:      cfg.Pipeline.EventDetection.IRThreshold,
		ValidationWindow: cfg.Pipeline.EventDetection.ValidationWindow,
	})
}
