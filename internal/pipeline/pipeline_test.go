package pipeline

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"biosense/internal/config"
	"biosense/internal/events"
	"biosense/internal/model"
	"biosense/internal/results"
)

var start = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(cfg *config.Config) (*Engine, *results.Store, *events.Store) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	resultsStore := results.NewStore(10)
	eventStore := events.NewStore(100)
	e := NewEngine(cfg, nil, resultsStore, eventStore, nil, nil)
	return e, resultsStore, eventStore
}

func ppgPacket(device string, red, ir, green int32, ts time.Time) model.RawPacket {
	payload := make([]byte, 12)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(red))
	binary.LittleEndian.PutUint32(payload[4:8], uint32(ir))
	binary.LittleEndian.PutUint32(payload[8:12], uint32(green))
	return model.RawPacket{
		DeviceID:       device,
		Characteristic: model.CharPPG,
		Payload:        payload,
		ReceivedAt:     ts,
	}
}

func tempPacket(device string, celsius float32, ts time.Time) model.RawPacket {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, math.Float32bits(celsius))
	return model.RawPacket{
		DeviceID:       device,
		Characteristic: model.CharTemperature,
		Payload:        payload,
		ReceivedAt:     ts,
	}
}

func TestResultEmittedPerInterval(t *testing.T) {
	e, resultsStore, _ := newTestEngine(nil)
	ctx := context.Background()

	// 25 Hz pulsatile signal for just over two result intervals.
	const rate = 25.0
	for i := 0; i < 130; i++ {
		ts := start.Add(time.Duration(float64(i) / rate * float64(time.Second)))
		pulse := 2000 * math.Sin(2*math.Pi*1.25*float64(i)/rate)
		e.ProcessPacket(ctx, ppgPacket("band-1",
			int32(80000+pulse), int32(100000+pulse), int32(60000+pulse), ts))
	}

	got, _, ok := resultsStore.Get("band-1")
	if !ok {
		t.Fatalf("no result stored")
	}
	if !got.IsWorn {
		t.Fatalf("strong pulsatile signal should read as worn: %+v", got)
	}
	if got.SignalStrength != model.SignalStrong {
		t.Fatalf("signal strength = %s", got.SignalStrength)
	}
	if got.PerfusionIndex < 1 {
		t.Fatalf("perfusion index = %v", got.PerfusionIndex)
	}
}

func TestNoResultForUnwornDevice(t *testing.T) {
	e, resultsStore, _ := newTestEngine(nil)
	ctx := context.Background()

	// Flat signal below the low-signal threshold: sensor reading air.
	for i := 0; i < 130; i++ {
		ts := start.Add(time.Duration(i) * 40 * time.Millisecond)
		e.ProcessPacket(ctx, ppgPacket("band-1", 500, 500, 500, ts))
	}

	got, _, ok := resultsStore.Get("band-1")
	if !ok {
		t.Fatalf("interval results should still be emitted")
	}
	if got.IsWorn || got.SignalStrength != model.SignalNone {
		t.Fatalf("unworn device reported %+v", got)
	}
	if got.HeartRateBPM != 0 || got.SpO2Percent != 0 {
		t.Fatalf("estimates leaked through for unworn device: %+v", got)
	}
}

func TestSessionEventsRoutedToStore(t *testing.T) {
	e, _, eventStore := newTestEngine(nil)
	ctx := context.Background()

	id := e.StartSession()
	if id == "" {
		t.Fatalf("session id empty")
	}
	e.ProcessPacket(ctx, tempPacket("band-1", 36.5, start.Add(-5*time.Second)))

	// Baseline seeds at 100000 (AC 0, Rest), the jump crosses the
	// threshold (Activity), the drop crosses back.
	values := []int32{100000, 300000, 100000}
	for i, v := range values {
		ts := start.Add(time.Duration(i) * time.Second)
		e.ProcessPacket(ctx, ppgPacket("band-1", v, v, v, ts))
	}

	list := eventStore.List(0)
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if list[0].Type != model.EventRest || list[1].Type != model.EventActivity {
		t.Fatalf("event types: %s, %s", list[0].Type, list[1].Type)
	}
	if !list[0].IsValid || !list[1].IsValid {
		t.Fatalf("events should validate against the temperature sample")
	}

	stats := e.SessionStats()
	if !stats.Recording {
		t.Fatalf("session should be recording")
	}
}

func TestSamplesDroppedWhileSessionStopped(t *testing.T) {
	e, _, eventStore := newTestEngine(nil)
	ctx := context.Background()

	for i, v := range []int32{100000, 300000, 100000} {
		ts := start.Add(time.Duration(i) * time.Second)
		e.ProcessPacket(ctx, ppgPacket("band-1", v, v, v, ts))
	}
	if len(eventStore.List(0)) != 0 {
		t.Fatalf("events emitted without an active session")
	}
}

func TestUndecodablePacketIgnored(t *testing.T) {
	e, resultsStore, _ := newTestEngine(nil)
	e.ProcessPacket(context.Background(), model.RawPacket{
		DeviceID:       "band-1",
		Characteristic: "gyroscope",
		Payload:        []byte{1, 2, 3},
		ReceivedAt:     start,
	})
	if len(resultsStore.GetAll()) != 0 {
		t.Fatalf("unknown characteristic produced state")
	}
}

func TestResetDropsDeviceState(t *testing.T) {
	e, _, _ := newTestEngine(nil)
	ctx := context.Background()
	e.ProcessPacket(ctx, ppgPacket("band-1", 100000, 100000, 100000, start))
	e.mu.Lock()
	n := len(e.devices)
	e.mu.Unlock()
	if n != 1 {
		t.Fatalf("device state not created")
	}

	id := e.StartSession()
	e.Reset()
	e.mu.Lock()
	n = len(e.devices)
	e.mu.Unlock()
	if n != 0 {
		t.Fatalf("device state survived reset")
	}
	if e.SessionID() == id && id != "" {
		t.Fatalf("session survived reset")
	}
}
