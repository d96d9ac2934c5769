package decode

import (
	"encoding/binary"
	"time"

	"biosense/internal/model"
)

// Valid millivolt range for the TGM battery characteristic. Readings
// outside it are sensor glitches, not extreme charge states.
const (
	tgmMinMillivolts = 2500
	tgmMaxMillivolts = 4500
)

type dischargePoint struct {
	millivolts int32
	percent    int
}

// Empirical Li-Po discharge curve for the TGM hardware, measured at rest.
// Ordered descending by voltage; interpolation is linear between
// bracketing points.
var dischargeCurve = [22]dischargePoint{
	{4200, 100},
	{4150, 97},
	{4110, 94},
	{4080, 91},
	{4020, 87},
	{3980, 83},
	{3920, 78},
	{3870, 72},
	{3820, 66},
	{3790, 60},
	{3770, 54},
	{3750, 48},
	{3730, 42},
	{3710, 37},
	{3690, 32},
	{3660, 26},
	{3620, 20},
	{3580, 14},
	{3520, 9},
	{3450, 5},
	{3300, 2},
	{3000, 0},
}

// BatteryTGM decodes the millivolt form: i32 LE, valid 2500..4500 mV,
// converted through the discharge curve.
func BatteryTGM(payload []byte, ts time.Time) (model.BatterySample, bool) {
	if len(payload) < 4 {
		return model.BatterySample{}, false
	}
	mv := int32(binary.LittleEndian.Uint32(payload[0:4]))
	if mv < tgmMinMillivolts || mv > tgmMaxMillivolts {
		return model.BatterySample{}, false
	}
	return model.BatterySample{Percentage: VoltageToPercentage(mv), Timestamp: ts}, true
}

// BatteryStandard decodes the single-byte percentage form, clamped [0,100].
func BatteryStandard(payload []byte, ts time.Time) (model.BatterySample, bool) {
	if len(payload) < 1 {
		return model.BatterySample{}, false
	}
	pct := int(payload[0])
	if pct > 100 {
		pct = 100
	}
	return model.BatterySample{Percentage: pct, Timestamp: ts}, true
}

// VoltageToPercentage maps a battery voltage onto the discharge curve with
// linear interpolation between bracketing points. Non-decreasing in mv;
// exactly 100 at or above 4200 mV and exactly 0 at or below 3000 mV.
func VoltageToPercentage(mv int32) int {
	if mv >= dischargeCurve[0].millivolts {
		return 100
	}
	last := dischargeCurve[len(dischargeCurve)-1]
	if mv <= last.millivolts {
		return 0
	}
	for i := 1; i < len(dischargeCurve); i++ {
		upper := dischargeCurve[i-1]
		lower := dischargeCurve[i]
		if mv >= lower.millivolts {
			span := upper.millivolts - lower.millivolts
			if span == 0 {
				return clampPercent(lower.percent)
			}
			frac := float64(mv-lower.millivolts) / float64(span)
			pct := float64(lower.percent) + frac*float64(upper.percent-lower.percent)
			return clampPercent(int(pct + 0.5))
		}
	}
	return 0
}

func clampPercent(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
