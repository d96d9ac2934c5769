package heartrate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biosense/internal/model"
)

func testConfig() Config {
	return Config{SampleRate: 25, WindowSeconds: 8}
}

// ppgWave builds dc + amplitude*sin(2*pi*bpm/60*t) at the test sample rate.
func ppgWave(n int, rate, bpm, dc, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		out[i] = dc + amplitude*math.Sin(2*math.Pi*bpm/60.0*t)
	}
	return out
}

func fillExtractor(e *Extractor, ir, green []float64) {
	for i := range ir {
		e.AddSample(ir[i], green[i])
	}
}

func TestTimeDomainIRPrimary(t *testing.T) {
	e := NewExtractor(testConfig())
	ir := ppgWave(200, 25, 75, 100000, 3000)
	fillExtractor(e, ir, ir)

	r := e.Current()
	require.True(t, r.Valid, "reading: %+v", r)
	assert.Equal(t, model.HRSourceIR, r.Source)
	assert.InDelta(t, 75, r.BPM, 2)
	assert.GreaterOrEqual(t, r.Quality, DefaultMinQuality)
}

func TestGreenFallbackWhenIRUnusable(t *testing.T) {
	e := NewExtractor(testConfig())
	// IR is a slow ramp: enough perfusion to pass the worn gate, no beats.
	ir := make([]float64, 200)
	for i := range ir {
		ir[i] = 100000 + float64(i)
	}
	green := ppgWave(200, 25, 90, 80000, 2500)
	fillExtractor(e, ir, green)

	r := e.Current()
	require.True(t, r.Valid, "reading: %+v", r)
	assert.Equal(t, model.HRSourceGreen, r.Source)
	assert.InDelta(t, 90, r.BPM, 3)
}

func TestFrequencyDomainEstimate(t *testing.T) {
	e := NewExtractor(testConfig())
	values := ppgWave(200, 25, 75, 100000, 3000)
	bpm, quality, ok := e.frequencyDomain(values)
	require.True(t, ok)
	assert.InDelta(t, 75, bpm, 2)
	assert.Greater(t, quality, 0.5)
}

func TestWornGateSuppressesOutput(t *testing.T) {
	e := NewExtractor(testConfig())
	// Clean beats but almost no perfusion: sensor off skin.
	ir := ppgWave(200, 25, 75, 100000, 30)
	fillExtractor(e, ir, ir)

	r := e.Current()
	assert.False(t, r.Valid)
	assert.Equal(t, model.HRSourceUnavailable, r.Source)
	assert.Equal(t, 0, r.BPM)
}

func TestUnavailableUntilWindowFull(t *testing.T) {
	e := NewExtractor(testConfig())
	ir := ppgWave(50, 25, 75, 100000, 3000)
	fillExtractor(e, ir, ir)
	r := e.Current()
	assert.Equal(t, model.HRSourceUnavailable, r.Source)
}

func TestOutOfRangeRateRejected(t *testing.T) {
	e := NewExtractor(testConfig())
	// 20 BPM is below the physiological floor; nothing should surface.
	ir := ppgWave(200, 25, 20, 100000, 3000)
	fillExtractor(e, ir, ir)
	r := e.Current()
	assert.False(t, r.Valid)
	assert.Equal(t, 0, r.BPM)
}

func TestResetClearsWindow(t *testing.T) {
	e := NewExtractor(testConfig())
	ir := ppgWave(200, 25, 75, 100000, 3000)
	fillExtractor(e, ir, ir)
	require.True(t, e.Current().Valid)
	e.Reset()
	assert.Equal(t, model.HRSourceUnavailable, e.Current().Source)
}
