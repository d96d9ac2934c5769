// Package motion attenuates motion artifact in a PPG signal with an LMS
// adaptive filter driven by an accelerometer-derived noise reference.
package motion

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultTaps is the filter length used by the wearable firmware's
	// companion pipeline.
	DefaultTaps = 32

	DefaultLearningRate      = 0.01
	DefaultVarianceThreshold = 1.0

	// excessiveMotionGain is the hard dampening applied when the noise
	// reference variance says the wearer is moving too much for the
	// filter to adapt meaningfully.
	excessiveMotionGain = 0.01
)

// Compensator is a least-mean-squares adaptive filter. One producer feeds
// Filter at a time, but Reset may race an in-flight call, so all state
// sits behind one mutex.
type Compensator struct {
	mu                sync.Mutex
	weights           []float64
	noise             []float64
	learningRate      float64
	varianceThreshold float64
}

// Option configures a Compensator.
type Option func(*Compensator)

func WithTaps(n int) Option {
	return func(c *Compensator) {
		if n > 0 {
			c.weights = make([]float64, n)
			c.noise = make([]float64, n)
		}
	}
}

func WithLearningRate(mu float64) Option {
	return func(c *Compensator) {
		if mu > 0 {
			c.learningRate = mu
		}
	}
}

func WithVarianceThreshold(v float64) Option {
	return func(c *Compensator) {
		if v > 0 {
			c.varianceThreshold = v
		}
	}
}

func NewCompensator(opts ...Option) *Compensator {
	c := &Compensator{
		weights:           make([]float64, DefaultTaps),
		noise:             make([]float64, DefaultTaps),
		learningRate:      DefaultLearningRate,
		varianceThreshold: DefaultVarianceThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Filter pushes noiseReference into the reference ring and returns the
// motion-cancelled signal. Every input produces an output: when the
// reference variance exceeds the threshold the signal is hard-dampened
// instead of filtered, and the weights are left alone.
func (c *Compensator) Filter(signal, noiseReference float64) float64 {
	if math.IsNaN(signal) || math.IsInf(signal, 0) {
		return 0
	}
	if math.IsNaN(noiseReference) || math.IsInf(noiseReference, 0) {
		noiseReference = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.noise[1:], c.noise[:len(c.noise)-1])
	c.noise[0] = noiseReference

	if stat.PopVariance(c.noise, nil) > c.varianceThreshold {
		return signal * excessiveMotionGain
	}

	var estimate float64
	for i, w := range c.weights {
		estimate += w * c.noise[i]
	}
	err := signal - estimate
	for i := range c.weights {
		c.weights[i] += c.learningRate * err * c.noise[i]
	}
	return err
}

// Reset zeroes the weight vector and noise history. Call whenever the
// sensor is re-seated.
func (c *Compensator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.weights {
		c.weights[i] = 0
		c.noise[i] = 0
	}
}
