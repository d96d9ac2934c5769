package csvlog

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"biosense/internal/model"
)

func i32p(v int32) *int32     { return &v }
func i16p(v int16) *int16     { return &v }
func intp(v int) *int         { return &v }
func f64p(v float64) *float64 { return &v }

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	rec := model.SensorData{
		Timestamp:        time.Date(2026, 3, 14, 10, 30, 0, 123000000, time.UTC),
		PPGIR:            i32p(123456),
		PPGRed:           i32p(234567),
		PPGGreen:         i32p(345678),
		AccelX:           i16p(-12),
		AccelY:           i16p(34),
		AccelZ:           i16p(-56),
		TempC:            f64p(36.5),
		BatteryPercent:   intp(87),
		HeartRateBPM:     intp(72),
		HeartRateQuality: f64p(0.91),
		SpO2Percent:      f64p(97.5),
		SpO2Quality:      f64p(0.84),
		Message:          "ok",
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "2026-03-14 10:30:00.123,") {
		t.Fatalf("timestamp format: %q", lines[1])
	}

	r := NewReader(&buf)
	got, err := r.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Fatalf("timestamp: %v", got.Timestamp)
	}
	if *got.PPGIR != 123456 || *got.AccelX != -12 || *got.BatteryPercent != 87 {
		t.Fatalf("fields: %+v", got)
	}
	if *got.SpO2Percent != 97.5 || got.Message != "ok" {
		t.Fatalf("fields: %+v", got)
	}
	if _, err := r.Read(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestMessageQuoting(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	rec := model.SensorData{
		Timestamp: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Message:   `sensor said "off", retrying`,
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Flush()
	if !strings.Contains(buf.String(), `"sensor said ""off"", retrying"`) {
		t.Fatalf("message not quote-escaped: %q", buf.String())
	}

	r := NewReader(&buf)
	got, err := r.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Message != rec.Message {
		t.Fatalf("message round trip: %q", got.Message)
	}
	if !got.LogOnly() {
		t.Fatalf("row with only a message should be log-only")
	}
}

func TestImportAcceptsISOAndLegacyTimestamps(t *testing.T) {
	for _, value := range []string{
		"2026-03-14 10:30:00.123",
		"2026-03-14T10:30:00Z",
		"2026-03-14T10:30:00.123",
		"2026-03-14 10:30:00",
		"14/03/2026 10:30:00",
	} {
		if _, err := ParseTimestamp(value); err != nil {
			t.Fatalf("%q not accepted: %v", value, err)
		}
	}
	if _, err := ParseTimestamp("not-a-time"); err == nil {
		t.Fatalf("garbage timestamp accepted")
	}
}

func TestReaderSkipsHeader(t *testing.T) {
	input := strings.Join(Header, ",") + "\n" +
		"2026-03-14 10:30:00.000,,,,,,,,,,,,,boot\n"
	r := NewReader(strings.NewReader(input))
	rec, err := r.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Message != "boot" || !rec.LogOnly() {
		t.Fatalf("log-only row: %+v", rec)
	}
}
