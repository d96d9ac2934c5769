// Package decode turns raw BLE characteristic payloads into typed samples.
// Every decoder is a pure function returning (samples, ok); truncated or
// malformed payloads are routine with BLE and yield ok=false, never an error.
package decode

import (
	"time"

	"biosense/internal/model"
)

// Decoded holds whatever samples a single packet produced. At most one of
// the slices/pointers is populated, matching the packet's characteristic.
type Decoded struct {
	PPG         []model.PPGSample
	Accel       []model.AccelerometerSample
	Temperature *model.TemperatureSample
	Battery     *model.BatterySample
	EMG         *model.EMGSample
}

// Packet dispatches on the characteristic and decodes the payload.
// ok is false when the characteristic is unknown or the payload malformed.
func Packet(pkt model.RawPacket) (Decoded, bool) {
	ts := pkt.ReceivedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	switch pkt.Characteristic {
	case model.CharPPG:
		samples, ok := PPG(pkt.Payload, ts)
		return Decoded{PPG: samples}, ok
	case model.CharAccelerometer:
		samples, ok := Accelerometer(pkt.Payload, ts)
		return Decoded{Accel: samples}, ok
	case model.CharTemperature:
		sample, ok := Temperature(pkt.Payload, ts)
		if !ok {
			return Decoded{}, false
		}
		return Decoded{Temperature: &sample}, true
	case model.CharBatteryTGM:
		sample, ok := BatteryTGM(pkt.Payload, ts)
		if !ok {
			return Decoded{}, false
		}
		return Decoded{Battery: &sample}, true
	case model.CharBatteryStandard:
		sample, ok := BatteryStandard(pkt.Payload, ts)
		if !ok {
			return Decoded{}, false
		}
		return Decoded{Battery: &sample}, true
	case model.CharEMG:
		sample, ok := EMG(pkt.Payload, ts)
		if !ok {
			return Decoded{}, false
		}
		return Decoded{EMG: &sample}, true
	default:
		return Decoded{}, false
	}
}
