package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSeedsOnFirstCall(t *testing.T) {
	n := NewNormalizer(0.01)
	assert.Equal(t, 0.0, n.Normalize(120000))
	// Second identical value: baseline already there, AC is zero.
	assert.InDelta(t, 0.0, n.Normalize(120000), 1e-9)
	// A step up yields a positive AC that shrinks as the baseline tracks.
	first := n.Normalize(130000)
	second := n.Normalize(130000)
	assert.Greater(t, first, 0.0)
	assert.Less(t, second, first)
}

func TestNormalizeBaselineRule(t *testing.T) {
	n := NewNormalizer(0.5)
	n.Normalize(100) // seeds baseline = 100
	// baseline = 0.5*200 + 0.5*100 = 150; ac = 200 - 150
	assert.InDelta(t, 50.0, n.Normalize(200), 1e-9)
}

func TestDynamicRangePerChannel(t *testing.T) {
	n := NewNormalizer(DefaultAlpha)
	batch := []Sample{
		{IR: 10, Red: 5, Green: 7},
		{IR: 20, Red: 5, Green: 14},
		{IR: 30, Red: 5, Green: 21},
	}
	out := n.NormalizeBatch(batch, StrategyDynamicRange)
	assert.InDelta(t, 0.0, out[0].IR, 1e-9)
	assert.InDelta(t, 0.5, out[1].IR, 1e-9)
	assert.InDelta(t, 1.0, out[2].IR, 1e-9)
	// Zero-range channel scales to 0 instead of dividing by zero.
	for _, s := range out {
		assert.Equal(t, 0.0, s.Red)
	}
}

func TestAdaptiveBaselineDiscardedAfterBatch(t *testing.T) {
	n := NewNormalizer(DefaultAlpha)
	batch := []Sample{{IR: 100}, {IR: 110}, {IR: 120}}
	first := n.NormalizeBatch(batch, StrategyAdaptiveBaseline)
	second := n.NormalizeBatch(batch, StrategyAdaptiveBaseline)
	// In-batch state resets between calls, so results are identical.
	assert.Equal(t, first, second)
	// First sample of each batch seeds, so its AC is zero.
	assert.Equal(t, 0.0, first[0].IR)
}

func TestPersistentBaselineContinuesAcrossBatches(t *testing.T) {
	n := NewNormalizer(0.1)
	batch := []Sample{{IR: 100}, {IR: 100}}
	first := n.NormalizeBatch(batch, StrategyPersistent)
	assert.Equal(t, 0.0, first[0].IR)
	// Baseline survives to the next batch; a step shows up as AC.
	second := n.NormalizeBatch([]Sample{{IR: 200}}, StrategyPersistent)
	assert.Greater(t, second[0].IR, 0.0)

	n.Reset()
	third := n.NormalizeBatch([]Sample{{IR: 200}}, StrategyPersistent)
	assert.Equal(t, 0.0, third[0].IR, "reset must forget the baseline")
}

func TestRawStrategyIsIdentity(t *testing.T) {
	n := NewNormalizer(DefaultAlpha)
	batch := []Sample{{IR: 1, Red: 2, Green: 3}}
	out := n.NormalizeBatch(batch, StrategyRaw)
	assert.Equal(t, batch, out)
}

func TestSignalValidWindow(t *testing.T) {
	n := NewNormalizer(DefaultAlpha)
	assert.False(t, n.SignalValid(9000), "below low-signal threshold")
	assert.True(t, n.SignalValid(150000))
	assert.False(t, n.SignalValid(600000), "saturated")
}

func TestPerfusionIndex(t *testing.T) {
	assert.InDelta(t, 2.0, PerfusionIndex(-2000, 100000), 1e-9)
	assert.Equal(t, 0.0, PerfusionIndex(2000, 0))
}

func TestRRatio(t *testing.T) {
	// (1000/100000) / (2000/200000) = 0.01 / 0.01 = 1
	assert.InDelta(t, 1.0, RRatio(1000, 100000, 2000, 200000), 1e-9)
	assert.Equal(t, 0.0, RRatio(1000, 0, 2000, 200000))
	assert.Equal(t, 0.0, RRatio(1000, 100000, 0, 200000))
}
