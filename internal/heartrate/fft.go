package heartrate

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// frequencyDomain estimates BPM as the dominant spectral peak inside the
// physiological band. Quality is the peak's share of in-band power, so a
// broadband (noisy) spectrum scores low.
func (e *Extractor) frequencyDomain(values []float64) (int, float64, bool) {
	n := len(values)
	if n < 16 {
		return 0, 0, false
	}

	mean := stat.Mean(values, nil)
	windowed := make([]float64, n)
	for i, v := range values {
		// Hann window to keep spectral leakage out of the band edges.
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = (v - mean) * w
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	loHz := float64(MinBPM) / 60.0
	hiHz := float64(MaxBPM) / 60.0
	binHz := e.cfg.SampleRate / float64(n)

	// Quality is the in-band peak's share of the whole spectrum (DC
	// excluded); a dominant rhythm outside the band drags it down.
	var peakPower, totalPower float64
	peakBin := -1
	for bin := 1; bin < len(coeffs); bin++ {
		power := cmplx.Abs(coeffs[bin])
		power *= power
		totalPower += power
		freq := float64(bin) * binHz
		if freq < loHz || freq > hiHz {
			continue
		}
		if power > peakPower {
			peakPower = power
			peakBin = bin
		}
	}
	if peakBin < 0 || totalPower == 0 {
		return 0, 0, false
	}

	bpm := float64(peakBin) * binHz * 60.0
	if bpm < MinBPM || bpm > MaxBPM {
		return 0, 0, false
	}
	return int(bpm + 0.5), peakPower / totalPower, true
}
