package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterConvergesOnCorrelatedNoise(t *testing.T) {
	c := NewCompensator()
	// Signal is a fixed multiple of the reference with no pulsatile
	// component, so a converged filter should cancel it entirely.
	const ref = 0.5
	const signal = 2.0 * ref

	var out float64
	for i := 0; i < 2000; i++ {
		out = c.Filter(signal, ref)
	}
	assert.InDelta(t, 0.0, out, 1e-3, "residual after convergence")
}

func TestFilterPassesSignalWithZeroNoise(t *testing.T) {
	c := NewCompensator()
	out := c.Filter(42.0, 0.0)
	// Zero reference means zero estimate; the first output is the signal.
	assert.Equal(t, 42.0, out)
}

func TestFilterDampensOnExcessiveMotion(t *testing.T) {
	c := NewCompensator(WithVarianceThreshold(1.0))
	// Alternate extreme reference values to push ring variance over 1.
	for i := 0; i < DefaultTaps; i++ {
		v := 100.0
		if i%2 == 0 {
			v = -100.0
		}
		c.Filter(1.0, v)
	}
	out := c.Filter(50.0, 100.0)
	assert.Equal(t, 50.0*excessiveMotionGain, out)
}

func TestFilterGuardsNaN(t *testing.T) {
	c := NewCompensator()
	require.Equal(t, 0.0, c.Filter(math.NaN(), 1.0))
	out := c.Filter(5.0, math.NaN())
	assert.False(t, math.IsNaN(out), "NaN reference must not poison output")
}

func TestResetClearsAdaptation(t *testing.T) {
	c := NewCompensator()
	for i := 0; i < 500; i++ {
		c.Filter(2.0, 1.0)
	}
	c.Reset()
	// After reset the estimate is zero again, so output equals signal.
	out := c.Filter(2.0, 1.0)
	assert.InDelta(t, 2.0, out, 1e-9)
}
