// Package spo2 estimates blood-oxygen saturation from red/IR PPG channels
// via the ratio-of-ratios method, with a composite signal-quality score.
package spo2

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"biosense/internal/history"
	"biosense/internal/normalize"
)

// Curve selects the R-to-SpO2 calibration polynomial. The chosen curve is
// fixed per estimator instance.
type Curve string

const (
	CurveLinear    Curve = "linear"
	CurveQuadratic Curve = "quadratic"
	CurveCubic     Curve = "cubic"
)

const (
	DefaultBufferSize      = 100
	DefaultMinSamples      = 30
	DefaultSmoothingWindow = 10
	DefaultMinQuality      = 0.6

	// Physiological output clamp.
	MinSpO2 = 70.0
	MaxSpO2 = 100.0

	// expectedGoodSNR is the AC/DC ratio of a healthy perfused signal;
	// the SNR quality term normalizes against it.
	expectedGoodSNR = 0.1

	// expectedGoodAmplitude is the smoothed peak-to-peak amplitude, in
	// raw counts, of a well-coupled sensor.
	expectedGoodAmplitude = 1000.0

	// DC window inside which a channel is considered plausibly coupled
	// to skin. Mirrors the normalizer's validity thresholds.
	dcAdequateMin = normalize.DefaultLowSignalThreshold
	dcAdequateMax = normalize.DefaultSaturationThreshold
)

// Quality term weights: SNR, stability, amplitude, DC level.
const (
	weightSNR       = 0.4
	weightStability = 0.3
	weightAmplitude = 0.2
	weightDCLevel   = 0.1
)

// Config tunes an Estimator. Zero values take defaults.
type Config struct {
	BufferSize      int
	MinSamples      int
	SmoothingWindow int
	Curve           Curve
	MinQuality      float64
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.MinSamples > c.BufferSize {
		c.MinSamples = c.BufferSize
	}
	if c.SmoothingWindow <= 0 {
		c.SmoothingWindow = DefaultSmoothingWindow
	}
	if c.Curve == "" {
		c.Curve = CurveQuadratic
	}
	if c.MinQuality <= 0 {
		c.MinQuality = DefaultMinQuality
	}
	return c
}

// Result is one SpO2 estimate. Invalid results carry zeroed fields.
type Result struct {
	SpO2        float64 `json:"spo2"`
	RRatio      float64 `json:"r_ratio"`
	Quality     float64 `json:"quality"`
	SampleCount int     `json:"sample_count"`
	Valid       bool    `json:"valid"`
}

type pair struct {
	red float64
	ir  float64
}

// Estimator runs the ratio-of-ratios algorithm in batch or streaming mode.
// Streaming state (buffer plus fill level) is one mutex-guarded unit so a
// UI-thread Reset cannot corrupt a feed in progress.
type Estimator struct {
	cfg Config

	mu  sync.Mutex
	buf *history.Buffer[pair]
}

func NewEstimator(cfg Config) *Estimator {
	cfg = cfg.withDefaults()
	return &Estimator{
		cfg: cfg,
		buf: history.NewBuffer[pair](cfg.BufferSize),
	}
}

// Process runs the batch mode over parallel red/IR arrays.
func (e *Estimator) Process(red, ir []float64) Result {
	if len(red) != len(ir) || len(red) == 0 {
		return Result{}
	}
	return e.estimate(red, ir)
}

// AddSample appends one red/IR pair to the sliding buffer and re-estimates
// over the most recent BufferSize samples. Returns an invalid result until
// MinSamples have accumulated.
func (e *Estimator) AddSample(red, ir float64) Result {
	e.mu.Lock()
	e.buf.Append(pair{red: red, ir: ir})
	n := e.buf.Len()
	if n < e.cfg.MinSamples {
		e.mu.Unlock()
		return Result{SampleCount: n}
	}
	values := e.buf.Values()
	e.mu.Unlock()

	reds := make([]float64, len(values))
	irs := make([]float64, len(values))
	for i, p := range values {
		reds[i] = p.red
		irs[i] = p.ir
	}
	return e.estimate(reds, irs)
}

// Reset clears the streaming buffer and re-arms the minimum-sample guard.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Clear()
}

func (e *Estimator) estimate(red, ir []float64) Result {
	dcRed := stat.Mean(red, nil)
	dcIR := stat.Mean(ir, nil)
	if dcRed <= 0 || dcIR <= 0 {
		return Result{SampleCount: len(red)}
	}

	smoothRed := movingAverage(red, e.cfg.SmoothingWindow)
	smoothIR := movingAverage(ir, e.cfg.SmoothingWindow)
	acRed := peakToPeak(smoothRed)
	acIR := peakToPeak(smoothIR)
	if acRed == 0 || acIR == 0 {
		// Flat signal: no pulse to measure, never divide through zero.
		return Result{SampleCount: len(red)}
	}

	r := normalize.RRatio(acRed, dcRed, acIR, dcIR)
	if r <= 0 {
		return Result{SampleCount: len(red)}
	}

	spo2 := clamp(applyCurve(e.cfg.Curve, r), MinSpO2, MaxSpO2)
	quality := qualityScore(red, ir, acRed, acIR, dcRed, dcIR)

	return Result{
		SpO2:        spo2,
		RRatio:      r,
		Quality:     quality,
		SampleCount: len(red),
		Valid:       spo2 >= MinSpO2 && spo2 <= MaxSpO2 && quality >= e.cfg.MinQuality,
	}
}

func applyCurve(curve Curve, r float64) float64 {
	switch curve {
	case CurveLinear:
		return 110.0 - 25.0*r
	case CurveCubic:
		return -16.666666*r*r*r + 8.333333*r*r - 31.5*r + 125.59
	default: // quadratic
		return -45.060*r*r + 30.354*r + 94.845
	}
}

// qualityScore combines SNR, stability, amplitude adequacy and DC-level
// adequacy into [0,1].
func qualityScore(red, ir []float64, acRed, acIR, dcRed, dcIR float64) float64 {
	snr := clamp01(((acRed / dcRed) + (acIR / dcIR)) / 2.0 / expectedGoodSNR)

	covRed := stat.StdDev(red, nil) / dcRed
	covIR := stat.StdDev(ir, nil) / dcIR
	stability := clamp01(1.0 - (covRed+covIR)/2.0)

	amplitude := clamp01(((acRed + acIR) / 2.0) / expectedGoodAmplitude)

	dcScore := 0.0
	if dcRed > dcAdequateMin && dcRed < dcAdequateMax {
		dcScore += 0.5
	}
	if dcIR > dcAdequateMin && dcIR < dcAdequateMax {
		dcScore += 0.5
	}

	return weightSNR*snr + weightStability*stability + weightAmplitude*amplitude + weightDCLevel*dcScore
}

// movingAverage computes a centered moving average of the given window.
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

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }
