package decode

import (
	"encoding/binary"
	"time"

	"biosense/internal/model"
)

const (
	accelHeaderBytes    = 4
	accelBytesPerSample = 6

	// Same split as PPG: at or above this length the payload carries a
	// 4-byte header followed by batched records, below it a headerless
	// single x,y,z reading.
	accelBatchMin = accelHeaderBytes + accelBytesPerSample
)

// Accelerometer decodes either framing of an accelerometer packet into
// i16 LE x, y, z triples. Trailing partial records are discarded.
func Accelerometer(payload []byte, ts time.Time) ([]model.AccelerometerSample, bool) {
	if len(payload) >= accelBatchMin {
		body := payload[accelHeaderBytes:]
		count := len(body) / accelBytesPerSample
		samples := make([]model.AccelerometerSample, 0, count)
		for i := 0; i < count; i++ {
			samples = append(samples, accelRecord(body[i*accelBytesPerSample:], ts))
		}
		return samples, true
	}
	if len(payload) < accelBytesPerSample {
		return nil, false
	}
	return []model.AccelerometerSample{accelRecord(payload, ts)}, true
}

func accelRecord(rec []byte, ts time.Time) model.AccelerometerSample {
	return model.AccelerometerSample{
		X:         int16(binary.LittleEndian.Uint16(rec[0:2])),
		Y:         int16(binary.LittleEndian.Uint16(rec[2:4])),
		Z:         int16(binary.LittleEndian.Uint16(rec[4:6])),
		Timestamp: ts,
	}
}
