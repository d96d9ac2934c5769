package decode

import (
	"encoding/binary"
	"math"
	"time"

	"biosense/internal/model"
)

// Plausible skin-adjacent temperature band. A candidate decode outside
// this range is assumed to be a misread of a different wire format.
const (
	tempPlausibleMinC = 10.0
	tempPlausibleMaxC = 50.0
)

// tempCandidate tries one wire format; ok=false means the payload does not
// fit the format or the value is implausible.
type tempCandidate func(payload []byte) (float32, bool)

// Candidates are ordered: IEEE float first, then millidegree i32, then
// decidegree i16. First plausible value wins; the device fleet ships all
// three firmware encodings.
var tempCandidates = []tempCandidate{tempFloat32, tempMillidegrees, tempDecidegrees}

// Temperature decodes a temperature packet by trying each known wire
// format in order and accepting the first plausible result.
func Temperature(payload []byte, ts time.Time) (model.TemperatureSample, bool) {
	for _, candidate := range tempCandidates {
		if c, ok := candidate(payload); ok {
			return model.TemperatureSample{Celsius: c, Timestamp: ts}, true
		}
	}
	return model.TemperatureSample{}, false
}

func tempFloat32(payload []byte) (float32, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	c := math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))
	return c, plausibleCelsius(c)
}

func tempMillidegrees(payload []byte) (float32, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	c := float32(int32(binary.LittleEndian.Uint32(payload[0:4]))) / 1000.0
	return c, plausibleCelsius(c)
}

func tempDecidegrees(payload []byte) (float32, bool) {
	if len(payload) < 2 {
		return 0, false
	}
	c := float32(int16(binary.LittleEndian.Uint16(payload[0:2]))) / 10.0
	return c, plausibleCelsius(c)
}

func plausibleCelsius(c float32) bool {
	if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
		return false
	}
	return c > tempPlausibleMinC && c < tempPlausibleMaxC
}
