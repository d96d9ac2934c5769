// Package events holds the threshold-crossing state machine that turns a
// compensated IR stream into discrete muscle activity/rest intervals, the
// bounded recording session around it, and an in-memory event store.
package events

import (
	"time"

	"biosense/internal/model"
)

const (
	DefaultIRThreshold      = 150.0
	DefaultValidationWindow = 180 * time.Second

	// pruneSlack is kept beyond the validation window so a sample just
	// outside the window is not dropped before the interval that needs
	// it closes.
	pruneSlack = 60 * time.Second

	// Skin-contact temperature band. Validation history only records
	// temperatures inside it; anything else means the device is off the
	// wearer and proves nothing.
	skinTempMinC = 32.0
	skinTempMaxC = 38.0
)

// Config tunes a Detector.
type Config struct {
	IRThreshold      float64
	ValidationWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.IRThreshold == 0 {
		c.IRThreshold = DefaultIRThreshold
	}
	if c.ValidationWindow <= 0 {
		c.ValidationWindow = DefaultValidationWindow
	}
	return c
}

// Emission is the tagged result of a sample that closed an interval. The
// caller routes it; the detector stores no callbacks.
type Emission struct {
	Event     model.MuscleActivityEvent
	Discarded bool
}

type metricPoint struct {
	ts    time.Time
	value float64
}

type sleepPoint struct {
	ts    time.Time
	state model.SleepState
}

// Detector classifies every IR sample as Activity (above threshold) or
// Rest and emits an event each time the classification flips. Caller
// contract: samples arrive in non-decreasing timestamp order from a single
// goroutine.
type Detector struct {
	cfg Config

	started     bool
	currentType model.EventType

	intervalStart time.Time
	startIR       float64
	accelAtStart  [3]int16
	tempAtStart   float64
	hrAtStart     *float64
	spo2AtStart   *float64
	sleepAtStart  *model.SleepState
	irValues      []float64

	eventNumber    int
	detectedCount  int
	discardedCount int

	hrHistory    []metricPoint
	spo2History  []metricPoint
	tempHistory  []metricPoint
	sleepHistory []sleepPoint
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// ProcessSample advances the state machine. It returns an emission and
// true exactly when this sample closed an interval.
func (d *Detector) ProcessSample(ir float64, ts time.Time, accel [3]int16, temperature float64) (Emission, bool) {
	newType := model.EventRest
	if ir > d.cfg.IRThreshold {
		newType = model.EventActivity
	}

	if !d.started {
		d.started = true
		d.currentType = newType
		d.openInterval(ir, ts, accel, temperature)
		return Emission{}, false
	}

	if newType == d.currentType {
		d.irValues = append(d.irValues, ir)
		return Emission{}, false
	}

	em := d.closeInterval(ts)
	// currentType is what we are in now; only the accumulator resets.
	d.currentType = newType
	d.openInterval(ir, ts, accel, temperature)
	return em, true
}

func (d *Detector) openInterval(ir float64, ts time.Time, accel [3]int16, temperature float64) {
	d.intervalStart = ts
	d.startIR = ir
	d.accelAtStart = accel
	d.tempAtStart = temperature
	d.hrAtStart = latestValue(d.hrHistory)
	d.spo2AtStart = latestValue(d.spo2History)
	d.sleepAtStart = latestSleep(d.sleepHistory)
	d.irValues = append(d.irValues[:0], ir)
}

func (d *Detector) closeInterval(endTs time.Time) Emission {
	d.eventNumber++

	sum := 0.0
	for _, v := range d.irValues {
		sum += v
	}
	avg := 0.0
	if len(d.irValues) > 0 {
		avg = sum / float64(len(d.irValues))
	}
	endIR := d.startIR
	if len(d.irValues) > 0 {
		endIR = d.irValues[len(d.irValues)-1]
	}

	valid := d.isValidated(d.intervalStart)
	if valid {
		d.detectedCount++
	} else {
		d.discardedCount++
	}

	return Emission{
		Event: model.MuscleActivityEvent{
			EventNumber:        d.eventNumber,
			Type:               d.currentType,
			StartTs:            d.intervalStart,
			EndTs:              endTs,
			StartIR:            d.startIR,
			EndIR:              endIR,
			AverageIR:          avg,
			AccelAtStart:       d.accelAtStart,
			TemperatureAtStart: d.tempAtStart,
			HeartRateAtStart:   d.hrAtStart,
			SpO2AtStart:        d.spo2AtStart,
			SleepStateAtStart:  d.sleepAtStart,
			IsValid:            valid,
		},
		Discarded: !valid,
	}
}

// isValidated reports whether any metric history holds a sample inside
// [start - validationWindow, start].
func (d *Detector) isValidated(start time.Time) bool {
	cutoff := start.Add(-d.cfg.ValidationWindow)
	for _, p := range d.hrHistory {
		if inWindow(p.ts, cutoff, start) {
			return true
		}
	}
	for _, p := range d.spo2History {
		if inWindow(p.ts, cutoff, start) {
			return true
		}
	}
	for _, p := range d.tempHistory {
		if inWindow(p.ts, cutoff, start) {
			return true
		}
	}
	for _, p := range d.sleepHistory {
		if inWindow(p.ts, cutoff, start) {
			return true
		}
	}
	return false
}

func inWindow(ts, lo, hi time.Time) bool {
	return !ts.Before(lo) && !ts.After(hi)
}

// UpdateHeartRate records an externally sampled heart rate.
func (d *Detector) UpdateHeartRate(bpm float64, ts time.Time) {
	d.hrHistory = append(d.hrHistory, metricPoint{ts: ts, value: bpm})
	d.prune(ts)
}

// UpdateSpO2 records an externally sampled SpO2 percentage.
func (d *Detector) UpdateSpO2(percent float64, ts time.Time) {
	d.spo2History = append(d.spo2History, metricPoint{ts: ts, value: percent})
	d.prune(ts)
}

// UpdateSleepState records an externally sampled sleep state.
func (d *Detector) UpdateSleepState(state model.SleepState, ts time.Time) {
	d.sleepHistory = append(d.sleepHistory, sleepPoint{ts: ts, state: state})
	d.prune(ts)
}

// UpdateTemperature records a temperature into validation history only if
// it sits in the on-skin band; out-of-band values are dropped silently.
func (d *Detector) UpdateTemperature(celsius float64, ts time.Time) {
	if celsius < skinTempMinC || celsius > skinTempMaxC {
		return
	}
	d.tempHistory = append(d.tempHistory, metricPoint{ts: ts, value: celsius})
	d.prune(ts)
}

// prune drops history older than the validation window plus slack.
func (d *Detector) prune(now time.Time) {
	cutoff := now.Add(-d.cfg.ValidationWindow - pruneSlack)
	d.hrHistory = pruneMetrics(d.hrHistory, cutoff)
	d.spo2History = pruneMetrics(d.spo2History, cutoff)
	d.tempHistory = pruneMetrics(d.tempHistory, cutoff)

	keep := d.sleepHistory[:0]
	for _, p := range d.sleepHistory {
		if !p.ts.Before(cutoff) {
			keep = append(keep, p)
		}
	}
	d.sleepHistory = keep
}

func pruneMetrics(points []metricPoint, cutoff time.Time) []metricPoint {
	keep := points[:0]
	for _, p := range points {
		if !p.ts.Before(cutoff) {
			keep = append(keep, p)
		}
	}
	return keep
}

func latestValue(points []metricPoint) *float64 {
	if len(points) == 0 {
		return nil
	}
	v := points[len(points)-1].value
	return &v
}

func latestSleep(points []sleepPoint) *model.SleepState {
	if len(points) == 0 {
		return nil
	}
	s := points[len(points)-1].state
	return &s
}

// DetectedCount is the number of valid events emitted so far.
func (d *Detector) DetectedCount() int { return d.detectedCount }

// DiscardedCount is the number of invalid events emitted so far.
func (d *Detector) DiscardedCount() int { return d.discardedCount }

// EventNumber is the shared monotonic counter across valid and discarded.
func (d *Detector) EventNumber() int { return d.eventNumber }

// CurrentType returns the open interval's type and false before the first
// sample.
func (d *Detector) CurrentType() (model.EventType, bool) {
	return d.currentType, d.started
}

// Reset clears counters, histories and the open-interval accumulator, and
// forgets the current type.
func (d *Detector) Reset() {
	*d = Detector{cfg: d.cfg}
}
