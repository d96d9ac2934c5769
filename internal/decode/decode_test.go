package decode

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

var testTS = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

func batchedPPGPayload(samples [][3]uint32) []byte {
	payload := make([]byte, ppgHeaderBytes+len(samples)*ppgBytesPerSample)
	for i, s := range samples {
		off := ppgHeaderBytes + i*ppgBytesPerSample
		putU32(payload[off:], s[0])   // green
		putU32(payload[off+4:], s[1]) // ir
		putU32(payload[off+8:], s[2]) // red
	}
	return payload
}

func TestPPGBatchedFieldOrder(t *testing.T) {
	payload := batchedPPGPayload([][3]uint32{
		{111, 222, 333},
		{444, 555, 666},
	})
	samples, ok := PPG(payload, testTS)
	if !ok {
		t.Fatalf("decode failed")
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Green != 111 || samples[0].IR != 222 || samples[0].Red != 333 {
		t.Fatalf("green-ir-red order violated: %+v", samples[0])
	}
	if samples[1].Green != 444 || samples[1].IR != 555 || samples[1].Red != 666 {
		t.Fatalf("green-ir-red order violated: %+v", samples[1])
	}
}

func TestPPGBatchedTrailingPartialIgnored(t *testing.T) {
	payload := batchedPPGPayload([][3]uint32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	payload = append(payload, 0xAA, 0xBB, 0xCC) // partial fourth record
	samples, ok := PPG(payload, testTS)
	if !ok || len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d (ok=%v)", len(samples), ok)
	}
}

func TestPPGSingleHeaderless(t *testing.T) {
	payload := make([]byte, 12)
	putU32(payload[0:], 900) // red
	putU32(payload[4:], 800) // ir
	putU32(payload[8:], 700) // green
	samples, ok := PPG(payload, testTS)
	if !ok || len(samples) != 1 {
		t.Fatalf("expected 1 sample, ok=%v len=%d", ok, len(samples))
	}
	s := samples[0]
	if s.Red != 900 || s.IR != 800 || s.Green != 700 {
		t.Fatalf("single-sample order violated: %+v", s)
	}
}

func TestPPGTooShort(t *testing.T) {
	if _, ok := PPG(make([]byte, 11), testTS); ok {
		t.Fatalf("expected no data for short payload")
	}
	if _, ok := PPG(nil, testTS); ok {
		t.Fatalf("expected no data for empty payload")
	}
}

func TestAccelerometerBothFramings(t *testing.T) {
	single := make([]byte, 6)
	x, z := int16(-100), int16(-300)
	putU16(single[0:], uint16(x))
	putU16(single[2:], 200)
	putU16(single[4:], uint16(z))
	samples, ok := Accelerometer(single, testTS)
	if !ok || len(samples) != 1 {
		t.Fatalf("single framing failed")
	}
	if samples[0].X != -100 || samples[0].Y != 200 || samples[0].Z != -300 {
		t.Fatalf("single framing values: %+v", samples[0])
	}

	batched := make([]byte, accelHeaderBytes+2*accelBytesPerSample+3) // + partial
	putU16(batched[4:], 1)
	putU16(batched[6:], 2)
	putU16(batched[8:], 3)
	putU16(batched[10:], 4)
	putU16(batched[12:], 5)
	putU16(batched[14:], 6)
	samples, ok = Accelerometer(batched, testTS)
	if !ok || len(samples) != 2 {
		t.Fatalf("batched framing: ok=%v len=%d", ok, len(samples))
	}
	if samples[1].X != 4 || samples[1].Y != 5 || samples[1].Z != 6 {
		t.Fatalf("batched framing values: %+v", samples[1])
	}
}

func TestTemperatureCandidateOrder(t *testing.T) {
	asFloat := make([]byte, 4)
	putU32(asFloat, math.Float32bits(36.6))
	s, ok := Temperature(asFloat, testTS)
	if !ok || math.Abs(float64(s.Celsius)-36.6) > 0.001 {
		t.Fatalf("float32 decode: ok=%v c=%v", ok, s.Celsius)
	}

	asMilli := make([]byte, 4)
	putU32(asMilli, 36600)
	s, ok = Temperature(asMilli, testTS)
	if !ok || math.Abs(float64(s.Celsius)-36.6) > 0.001 {
		t.Fatalf("millidegree decode: ok=%v c=%v", ok, s.Celsius)
	}

	asDeci := make([]byte, 2)
	putU16(asDeci, 366)
	s, ok = Temperature(asDeci, testTS)
	if !ok || math.Abs(float64(s.Celsius)-36.6) > 0.001 {
		t.Fatalf("decidegree decode: ok=%v c=%v", ok, s.Celsius)
	}
}

func TestTemperatureImplausibleRejected(t *testing.T) {
	frozen := make([]byte, 4)
	putU32(frozen, math.Float32bits(3.0))
	if _, ok := Temperature(frozen, testTS); ok {
		t.Fatalf("3.0 C should not decode on any path")
	}
	if _, ok := Temperature([]byte{0x01}, testTS); ok {
		t.Fatalf("1-byte payload should not decode")
	}
}

func TestVoltageToPercentageEndpoints(t *testing.T) {
	if got := VoltageToPercentage(4200); got != 100 {
		t.Fatalf("4200mV: got %d", got)
	}
	if got := VoltageToPercentage(4400); got != 100 {
		t.Fatalf("4400mV: got %d", got)
	}
	if got := VoltageToPercentage(3000); got != 0 {
		t.Fatalf("3000mV: got %d", got)
	}
	if got := VoltageToPercentage(2600); got != 0 {
		t.Fatalf("2600mV: got %d", got)
	}
}

func TestVoltageToPercentageMonotonic(t *testing.T) {
	prev := -1
	for mv := int32(2500); mv <= 4500; mv++ {
		pct := VoltageToPercentage(mv)
		if pct < prev {
			t.Fatalf("curve decreased at %dmV: %d -> %d", mv, prev, pct)
		}
		if pct < 0 || pct > 100 {
			t.Fatalf("out of range at %dmV: %d", mv, pct)
		}
		prev = pct
	}
}

func TestBatteryTGMRange(t *testing.T) {
	payload := make([]byte, 4)
	putU32(payload, 3790)
	s, ok := BatteryTGM(payload, testTS)
	if !ok || s.Percentage != 60 {
		t.Fatalf("3790mV: ok=%v pct=%d", ok, s.Percentage)
	}
	putU32(payload, 2400)
	if _, ok := BatteryTGM(payload, testTS); ok {
		t.Fatalf("2400mV should be rejected")
	}
	putU32(payload, 4600)
	if _, ok := BatteryTGM(payload, testTS); ok {
		t.Fatalf("4600mV should be rejected")
	}
}

func TestBatteryStandardClamped(t *testing.T) {
	s, ok := BatteryStandard([]byte{130}, testTS)
	if !ok || s.Percentage != 100 {
		t.Fatalf("clamp failed: ok=%v pct=%d", ok, s.Percentage)
	}
	if _, ok := BatteryStandard(nil, testTS); ok {
		t.Fatalf("empty payload should be rejected")
	}
}

func TestEMGNormalization(t *testing.T) {
	payload := make([]byte, 2)
	putU16(payload, 1023)
	s, ok := EMG(payload, testTS)
	if !ok || s.Normalized != 1.0 {
		t.Fatalf("full scale: ok=%v v=%v", ok, s.Normalized)
	}
	putU16(payload, 0)
	s, ok = EMG(payload, testTS)
	if !ok || s.Normalized != 0.0 {
		t.Fatalf("zero: ok=%v v=%v", ok, s.Normalized)
	}
	putU16(payload, 1024)
	if _, ok := EMG(payload, testTS); ok {
		t.Fatalf("over-range raw value should be rejected")
	}
}
