package decode

import (
	"encoding/binary"
	"time"

	"biosense/internal/model"
)

const (
	ppgHeaderBytes    = 4
	ppgBytesPerSample = 12

	// Payloads at least this long take the 4-byte-header batched path;
	// shorter ones are treated as a headerless single reading. The two
	// firmware variants disagree on framing, so the boundary lives here
	// and nowhere else.
	ppgBatchMin = ppgHeaderBytes + ppgBytesPerSample
)

// PPG decodes either firmware variant of a PPG packet.
//
// Batched variant: 4-byte header, then 12-byte records of three i32 LE
// channels in green, ir, red order. The ordering is a firmware quirk and
// must not be "fixed". A trailing partial record is discarded.
//
// Single variant: headerless 12-byte record in red, ir, green order.
func PPG(payload []byte, ts time.Time) ([]model.PPGSample, bool) {
	if len(payload) >= ppgBatchMin {
		return ppgBatched(payload, ts)
	}
	return ppgSingle(payload, ts)
}

func ppgBatched(payload []byte, ts time.Time) ([]model.PPGSample, bool) {
	body := payload[ppgHeaderBytes:]
	count := len(body) / ppgBytesPerSample
	if count == 0 {
		return nil, false
	}
	samples := make([]model.PPGSample, 0, count)
	for i := 0; i < count; i++ {
		rec := body[i*ppgBytesPerSample:]
		samples = append(samples, model.PPGSample{
			Green:     int32(binary.LittleEndian.Uint32(rec[0:4])),
			IR:        int32(binary.LittleEndian.Uint32(rec[4:8])),
			Red:       int32(binary.LittleEndian.Uint32(rec[8:12])),
			Timestamp: ts,
		})
	}
	return samples, true
}

func ppgSingle(payload []byte, ts time.Time) ([]model.PPGSample, bool) {
	if len(payload) < ppgBytesPerSample {
		return nil, false
	}
	return []model.PPGSample{{
		Red:       int32(binary.LittleEndian.Uint32(payload[0:4])),
		IR:        int32(binary.LittleEndian.Uint32(payload[4:8])),
		Green:     int32(binary.LittleEndian.Uint32(payload[8:12])),
		Timestamp: ts,
	}}, true
}
