// Package normalize removes the DC baseline from PPG signals. Muscle-site
// PPG carries an unusually large DC offset, so every downstream estimator
// works on baseline-corrected values from here.
package normalize

import "math"

// Strategy names a batch normalization method.
type Strategy string

const (
	// StrategyRaw passes samples through untouched.
	StrategyRaw Strategy = "raw"
	// StrategyDynamicRange min-max scales each channel over the batch.
	StrategyDynamicRange Strategy = "dynamic_range"
	// StrategyAdaptiveBaseline tracks a fast baseline seeded from the
	// batch's first sample and discarded afterwards.
	StrategyAdaptiveBaseline Strategy = "adaptive_baseline"
	// StrategyPersistent continues the normalizer's long-lived
	// per-channel baselines across calls.
	StrategyPersistent Strategy = "persistent"
)

const (
	// DefaultAlpha is the persistent baseline tracking coefficient.
	DefaultAlpha = 0.01
	// adaptiveAlpha is the faster in-batch coefficient for the
	// adaptive-baseline strategy.
	adaptiveAlpha = 0.02

	// Raw-count validity window for the 32-bit PPG front end. Below the
	// low threshold the sensor is reading air; above the saturation
	// threshold the photodiode is railed.
	DefaultLowSignalThreshold  = 10000.0
	DefaultSaturationThreshold = 500000.0
)

// Sample is one timestamped three-channel PPG tuple, already decoded.
type Sample struct {
	IR    float64
	Red   float64
	Green float64
}

// baseline is a single exponential-moving-average DC tracker. First value
// seeds it and normalizes to zero.
type baseline struct {
	value  float64
	seeded bool
}

func (b *baseline) update(v, alpha float64) float64 {
	if !b.seeded {
		b.value = v
		b.seeded = true
		return 0
	}
	b.value = alpha*v + (1-alpha)*b.value
	return v - b.value
}

// Normalizer holds two independent state spaces: a single-channel baseline
// for streaming use and persistent per-channel baselines for the batch
// method. Not goroutine-safe; it is owned by one pipeline stage.
type Normalizer struct {
	alpha float64

	single baseline

	ir    baseline
	red   baseline
	green baseline

	lowSignal  float64
	saturation float64
}

func NewNormalizer(alpha float64) *Normalizer {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &Normalizer{
		alpha:      alpha,
		lowSignal:  DefaultLowSignalThreshold,
		saturation: DefaultSaturationThreshold,
	}
}

// SetValidityWindow overrides the raw-count validity thresholds.
func (n *Normalizer) SetValidityWindow(low, saturation float64) {
	if low > 0 && saturation > low {
		n.lowSignal = low
		n.saturation = saturation
	}
}

// Normalize removes the DC baseline from one raw value. The first call
// seeds the baseline and returns 0.
func (n *Normalizer) Normalize(raw float64) float64 {
	return n.single.update(raw, n.alpha)
}

// NormalizeBatch applies the named strategy to a batch of samples,
// returning AC values channel by channel. StrategyPersistent advances the
// normalizer's long-lived baselines; the other strategies leave them
// untouched.
func (n *Normalizer) NormalizeBatch(samples []Sample, strategy Strategy) []Sample {
	if len(samples) == 0 {
		return nil
	}
	switch strategy {
	case StrategyRaw:
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	case StrategyDynamicRange:
		return dynamicRange(samples)
	case StrategyAdaptiveBaseline:
		return adaptiveBaseline(samples)
	case StrategyPersistent:
		out := make([]Sample, len(samples))
		for i, s := range samples {
			out[i] = Sample{
				IR:    n.ir.update(s.IR, n.alpha),
				Red:   n.red.update(s.Red, n.alpha),
				Green: n.green.update(s.Green, n.alpha),
			}
		}
		return out
	default:
		return dynamicRange(samples)
	}
}

func dynamicRange(samples []Sample) []Sample {
	minS := samples[0]
	maxS := samples[0]
	for _, s := range samples[1:] {
		minS.IR = math.Min(minS.IR, s.IR)
		minS.Red = math.Min(minS.Red, s.Red)
		minS.Green = math.Min(minS.Green, s.Green)
		maxS.IR = math.Max(maxS.IR, s.IR)
		maxS.Red = math.Max(maxS.Red, s.Red)
		maxS.Green = math.Max(maxS.Green, s.Green)
	}
	out := make([]Sample, len(samples))
	for i, s := range samples {
		out[i] = Sample{
			IR:    scale(s.IR, minS.IR, maxS.IR),
			Red:   scale(s.Red, minS.Red, maxS.Red),
			Green: scale(s.Green, minS.Green, maxS.Green),
		}
	}
	return out
}

// scale maps v into [0,1] over the batch range, guarding zero range.
func scale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

func adaptiveBaseline(samples []Sample) []Sample {
	var ir, red, green baseline
	out := make([]Sample, len(samples))
	for i, s := range samples {
		out[i] = Sample{
			IR:    ir.update(s.IR, adaptiveAlpha),
			Red:   red.update(s.Red, adaptiveAlpha),
			Green: green.update(s.Green, adaptiveAlpha),
		}
	}
	return out
}

// Reset forgets all baselines, single-channel and per-channel.
func (n *Normalizer) Reset() {
	n.single = baseline{}
	n.ir = baseline{}
	n.red = baseline{}
	n.green = baseline{}
}

// SignalValid reports whether a raw count sits inside the usable window
// between the low-signal and saturation thresholds.
func (n *Normalizer) SignalValid(raw float64) bool {
	return raw > n.lowSignal && raw < n.saturation
}

// PerfusionIndex is |AC|/DC x 100, the standard worn/strength proxy.
func PerfusionIndex(ac, dc float64) float64 {
	if dc == 0 {
		return 0
	}
	return math.Abs(ac) / math.Abs(dc) * 100
}

// RRatio computes the ratio of ratios used by pulse oximetry. Returns 0
// when any denominator is unusable.
func RRatio(acRed, dcRed, acIR, dcIR float64) float64 {
	if dcRed <= 0 || dcIR <= 0 || acIR == 0 {
		return 0
	}
	irRatio := acIR / dcIR
	if irRatio == 0 {
		return 0
	}
	return (acRed / dcRed) / irRatio
}
