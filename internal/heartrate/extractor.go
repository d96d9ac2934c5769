// Package heartrate extracts beats-per-minute from PPG channels over a
// rolling window, preferring time-domain beat detection on IR, falling
// back to green, then to a frequency-domain estimate.
package heartrate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"biosense/internal/history"
	"biosense/internal/model"
	"biosense/internal/normalize"
)

const (
	MinBPM = 40
	MaxBPM = 180

	DefaultSampleRate    = 25.0
	DefaultWindowSeconds = 8.0
	DefaultMinQuality    = 0.5
	DefaultMinPerfusion  = 0.1

	// peakThresholdSigma sets the rising-crossing detection threshold at
	// mean + this many standard deviations of the smoothed window.
	peakThresholdSigma = 0.5

	smoothingWindow = 5

	// minBeats is the fewest detected beats that give a usable interval
	// estimate (two intervals).
	minBeats = 3
)

// Config sizes the rolling window from the device sample rate.
type Config struct {
	SampleRate    float64
	WindowSeconds float64
	MinQuality    float64
	MinPerfusion  float64
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = DefaultWindowSeconds
	}
	if c.MinQuality <= 0 {
		c.MinQuality = DefaultMinQuality
	}
	if c.MinPerfusion <= 0 {
		c.MinPerfusion = DefaultMinPerfusion
	}
	return c
}

// Reading is one heart-rate estimate. Invalid readings report source
// Unavailable and zero BPM rather than an out-of-range number.
type Reading struct {
	BPM     int                   `json:"bpm"`
	Quality float64               `json:"quality"`
	Source  model.HeartRateSource `json:"source"`
	Valid   bool                  `json:"valid"`
}

func unavailable() Reading {
	return Reading{Source: model.HRSourceUnavailable}
}

// Extractor accumulates IR and green samples and estimates heart rate
// over the most recent window. Called from the single ingestion path;
// it does not lock.
type Extractor struct {
	cfg   Config
	ir    *history.Buffer[float64]
	green *history.Buffer[float64]
}

func NewExtractor(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	window := int(cfg.WindowSeconds * cfg.SampleRate)
	if window < 2 {
		window = 2
	}
	return &Extractor{
		cfg:   cfg,
		ir:    history.NewBuffer[float64](window),
		green: history.NewBuffer[float64](window),
	}
}

// AddSample appends one decoded (or compensated) IR/green pair.
func (e *Extractor) AddSample(ir, green float64) {
	e.ir.Append(ir)
	e.green.Append(green)
}

// Reset clears both channel windows.
func (e *Extractor) Reset() {
	e.ir.Clear()
	e.green.Clear()
}

// Current estimates heart rate from the window: IR first, green fallback,
// then FFT over IR. The worn gate and the quality gate both suppress
// output instead of letting an implausible number through.
func (e *Extractor) Current() Reading {
	irValues := e.ir.Values()
	if len(irValues) < e.ir.Cap() {
		return unavailable()
	}
	if !e.isWorn(irValues) {
		return unavailable()
	}

	if bpm, q, ok := e.timeDomain(irValues); ok && q >= e.cfg.MinQuality {
		return Reading{BPM: bpm, Quality: q, Source: model.HRSourceIR, Valid: true}
	}
	if bpm, q, ok := e.timeDomain(e.green.Values()); ok && q >= e.cfg.MinQuality {
		return Reading{BPM: bpm, Quality: q, Source: model.HRSourceGreen, Valid: true}
	}
	if bpm, q, ok := e.frequencyDomain(irValues); ok && q >= e.cfg.MinQuality {
		return Reading{BPM: bpm, Quality: q, Source: model.HRSourceFFT, Valid: true}
	}
	return unavailable()
}

// isWorn gates on perfusion index of the raw IR window.
func (e *Extractor) isWorn(values []float64) bool {
	dc := stat.Mean(values, nil)
	if dc <= 0 {
		return false
	}
	ac := peakToPeak(values)
	return normalize.PerfusionIndex(ac, dc) >= e.cfg.MinPerfusion
}

// timeDomain detects threshold rising-crossings with a refractory period
// and derives BPM from the mean beat interval. Quality is interval
// regularity (1 - coefficient of variation).
func (e *Extractor) timeDomain(values []float64) (int, float64, bool) {
	if len(values) < minBeats {
		return 0, 0, false
	}
	smooth := movingAverage(values, smoothingWindow)
	mean := stat.Mean(smooth, nil)
	sd := stat.StdDev(smooth, nil)
	if sd == 0 {
		return 0, 0, false
	}
	threshold := mean + peakThresholdSigma*sd
	refractory := int(60.0 / float64(MaxBPM) * e.cfg.SampleRate)
	if refractory < 1 {
		refractory = 1
	}

	var beats []int
	lastBeat := -refractory - 1
	for i := 1; i < len(smooth); i++ {
		if smooth[i-1] < threshold && smooth[i] >= threshold && i-lastBeat > refractory {
			beats = append(beats, i)
			lastBeat = i
		}
	}
	if len(beats) < minBeats {
		return 0, 0, false
	}

	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals = append(intervals, float64(beats[i]-beats[i-1]))
	}
	meanInterval := stat.Mean(intervals, nil)
	if meanInterval <= 0 {
		return 0, 0, false
	}
	bpm := 60.0 * e.cfg.SampleRate / meanInterval
	if bpm < MinBPM || bpm > MaxBPM {
		return 0, 0, false
	}

	cv := stat.StdDev(intervals, nil) / meanInterval
	quality := 1.0 - cv
	if quality < 0 {
		quality = 0
	}
	return int(bpm + 0.5), quality, true
}

func movingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) < 2 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(values) {
			hi = len(values) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
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
