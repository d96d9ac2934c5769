package ingest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"biosense/internal/model"
)

// frame is the wire envelope gateways publish on Kafka and MQTT: one BLE
// notification per message, payload base64-encoded.
type frame struct {
	DeviceID       string `json:"device_id"`
	Characteristic string `json:"characteristic"`
	Payload        string `json:"payload"`
	ReceivedAt     string `json:"received_at"`
}

var knownCharacteristics = map[model.Characteristic]bool{
	model.CharPPG:             true,
	model.CharAccelerometer:   true,
	model.CharTemperature:     true,
	model.CharBatteryTGM:      true,
	model.CharBatteryStandard: true,
	model.CharEMG:             true,
}

// ParseFrame decodes one envelope into a RawPacket. An empty or missing
// received_at defaults to now; unknown characteristics are rejected so a
// misconfigured gateway fails loudly instead of filling the channel.
func ParseFrame(data []byte) (model.RawPacket, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return model.RawPacket{}, err
	}
	if f.DeviceID == "" {
		return model.RawPacket{}, errors.New("frame missing device_id")
	}
	char := model.Characteristic(strings.ToLower(strings.TrimSpace(f.Characteristic)))
	if !knownCharacteristics[char] {
		return model.RawPacket{}, errors.New("unknown characteristic: " + f.Characteristic)
	}
	payload, err := base64.StdEncoding.DecodeString(f.Payload)
	if err != nil {
		return model.RawPacket{}, err
	}
	receivedAt := time.Now().UTC()
	if f.ReceivedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, f.ReceivedAt)
		if err != nil {
			return model.RawPacket{}, err
		}
		receivedAt = t
	}
	return model.RawPacket{
		DeviceID:       f.DeviceID,
		Characteristic: char,
		Payload:        payload,
		ReceivedAt:     receivedAt,
	}, nil
}
