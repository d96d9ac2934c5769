package decode

import (
	"encoding/binary"
	"time"

	"biosense/internal/model"
)

// emgMaxRaw is the full-scale value of the EMG device's 10-bit ADC.
const emgMaxRaw = 1023

// EMG decodes a u16 LE reading in 0..1023 into a normalized [0,1] sample.
// Values above full scale mean a corrupted packet, not a loud muscle.
func EMG(payload []byte, ts time.Time) (model.EMGSample, bool) {
	if len(payload) < 2 {
		return model.EMGSample{}, false
	}
	raw := binary.LittleEndian.Uint16(payload[0:2])
	if raw > emgMaxRaw {
		return model.EMGSample{}, false
	}
	return model.EMGSample{
		Normalized: float64(raw) / float64(emgMaxRaw),
		Timestamp:  ts,
	}, true
}
