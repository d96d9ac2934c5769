// Package csvlog implements the sensor-data CSV contract: a fixed column
// order, a fixed export timestamp format, and RFC-4180 quoting. Import
// accepts ISO-8601 and legacy timestamp layouts alongside the export one.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"biosense/internal/model"
)

// Header is the fixed column order. Collaborators index by position, so
// the order is part of the contract.
var Header = []string{
	"Timestamp",
	"PPG_IR",
	"PPG_Red",
	"PPG_Green",
	"Accel_X",
	"Accel_Y",
	"Accel_Z",
	"Temp_C",
	"Battery_%",
	"HeartRate_BPM",
	"HeartRate_Quality",
	"SpO2_%",
	"SpO2_Quality",
	"Message",
}

// ExportTimestampLayout is the only format written on export.
const ExportTimestampLayout = "2006-01-02 15:04:05.000"

// importTimestampLayouts are tried in order on import.
var importTimestampLayouts = []string{
	ExportTimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// Writer streams SensorData records as CSV rows. encoding/csv supplies
// the RFC-4180 quoting (fields containing the separator, quotes or
// newlines are double-quote escaped with internal quotes doubled).
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

func (w *Writer) Write(rec model.SensorData) error {
	if !w.wroteHeader {
		if err := w.w.Write(Header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	return w.w.Write(record(rec))
}

func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func record(rec model.SensorData) []string {
	return []string{
		rec.Timestamp.Format(ExportTimestampLayout),
		fmtI32(rec.PPGIR),
		fmtI32(rec.PPGRed),
		fmtI32(rec.PPGGreen),
		fmtI16(rec.AccelX),
		fmtI16(rec.AccelY),
		fmtI16(rec.AccelZ),
		fmtF64(rec.TempC, 2),
		fmtInt(rec.BatteryPercent),
		fmtInt(rec.HeartRateBPM),
		fmtF64(rec.HeartRateQuality, 3),
		fmtF64(rec.SpO2Percent, 1),
		fmtF64(rec.SpO2Quality, 3),
		rec.Message,
	}
}

func fmtI32(v *int32) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(int64(*v), 10)
}

func fmtI16(v *int16) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(int64(*v), 10)
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtF64(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

// Reader parses exported files back into SensorData records, skipping the
// header row if present.
type Reader struct {
	r         *csv.Reader
	sawAnyRow bool
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &Reader{r: cr}
}

// Read returns the next record or io.EOF.
func (r *Reader) Read() (model.SensorData, error) {
	for {
		row, err := r.r.Read()
		if err != nil {
			return model.SensorData{}, err
		}
		if !r.sawAnyRow && looksLikeHeader(row) {
			r.sawAnyRow = true
			continue
		}
		r.sawAnyRow = true
		rec, err := parseRecord(row)
		if err != nil {
			return model.SensorData{}, err
		}
		return rec, nil
	}
}

func looksLikeHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "timestamp")
}

func parseRecord(row []string) (model.SensorData, error) {
	if len(row) < len(Header) {
		return model.SensorData{}, fmt.Errorf("row has %d columns, want %d", len(row), len(Header))
	}
	ts, err := ParseTimestamp(row[0])
	if err != nil {
		return model.SensorData{}, err
	}
	rec := model.SensorData{Timestamp: ts, Message: row[13]}
	rec.PPGIR = parseI32(row[1])
	rec.PPGRed = parseI32(row[2])
	rec.PPGGreen = parseI32(row[3])
	rec.AccelX = parseI16(row[4])
	rec.AccelY = parseI16(row[5])
	rec.AccelZ = parseI16(row[6])
	rec.TempC = parseF64(row[7])
	rec.BatteryPercent = parseInt(row[8])
	rec.HeartRateBPM = parseInt(row[9])
	rec.HeartRateQuality = parseF64(row[10])
	rec.SpO2Percent = parseF64(row[11])
	rec.SpO2Quality = parseF64(row[12])
	return rec, nil
}

func parseI32(s string) *int32 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil
	}
	out := int32(v)
	return &out
}

func parseI16(s string) *int16 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return nil
	}
	out := int16(v)
	return &out
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseF64(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseTimestamp tries the export layout, then ISO-8601, then legacy
// layouts.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range importTimestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}
