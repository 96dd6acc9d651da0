// Package wire implements the byte protocol spoken with the wireless bridge module.
//
// Outbound, every logical update is a fixed six byte frame; each value occupies two slots so the
// companion can cross-check them. Inbound, the companion sends single command bytes.
package wire

import (
	"errors"
	"fmt"
)

// FrameSize is the number of bytes in an outbound frame.
const FrameSize = 6

// Status byte markers and levels (slot 3 and 6 of a status frame)
const (
	ThresholdMarker byte = 1 << 0
	ThresholdHigh   byte = 1 << 1
	WaterLowLevel   byte = 1 << 4
	WaterLowMarker  byte = 1 << 5
	UnitFahrenheit  byte = 1 << 6
	UnitMarker      byte = 1 << 7
)

var (
	ErrSlotMismatch  = errors.New("duplicated frame slots differ")
	ErrUnknownStatus = errors.New("status byte carries no known marker")
)

// Frame is one outbound update.
type Frame [FrameSize]byte

// UpdateKind identifies what a frame carries.
type UpdateKind int

const (
	UpdateTemperature UpdateKind = iota
	UpdateMoisture
	UpdateThreshold
	UpdateUnit
	UpdateWaterLow
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateTemperature:
		return "temperature"
	case UpdateMoisture:
		return "moisture"
	case UpdateThreshold:
		return "threshold"
	case UpdateUnit:
		return "unit"
	case UpdateWaterLow:
		return "water-low"
	default:
		return "unknown"
	}
}

// Update is the decoded content of a frame. Flag updates carry 0 or 1 in Value.
type Update struct {
	Kind  UpdateKind
	Value int
}

// EncodeTemperature packs a temperature into slots 1 and 4. Negative values wrap as int8.
func EncodeTemperature(t int) Frame {
	b := byte(t)
	return Frame{b, 0, 0, b, 0, 0}
}

// EncodeMoisture packs a moisture percentage into slots 2 and 5.
func EncodeMoisture(percent int) Frame {
	b := byte(percent)
	return Frame{0, b, 0, 0, b, 0}
}

// EncodeThreshold packs the watering threshold level.
func EncodeThreshold(high bool) Frame {
	b := ThresholdMarker
	if high {
		b |= ThresholdHigh
	}
	return statusFrame(b)
}

// EncodeUnit packs the temperature unit.
func EncodeUnit(fahrenheit bool) Frame {
	b := UnitMarker
	if fahrenheit {
		b |= UnitFahrenheit
	}
	return statusFrame(b)
}

// EncodeWaterLow packs the reservoir status.
func EncodeWaterLow(low bool) Frame {
	b := WaterLowMarker
	if low {
		b |= WaterLowLevel
	}
	return statusFrame(b)
}

func statusFrame(b byte) Frame {
	return Frame{0, 0, b, 0, 0, b}
}

// Temperature reads back slot 1 as a signed value.
func (f Frame) Temperature() int {
	return int(int8(f[0]))
}

// Moisture reads back slot 2.
func (f Frame) Moisture() int {
	return int(f[1])
}

// Parse decodes a frame as the companion would. A frame of all zeros is indistinguishable
// between a temperature and a moisture of zero and is reported as a temperature.
func Parse(f Frame) (Update, error) {
	switch {
	case f[2] != 0 || f[5] != 0:
		if f[2] != f[5] {
			return Update{}, fmt.Errorf("status slots %#02x/%#02x: %w", f[2], f[5], ErrSlotMismatch)
		}
		return parseStatus(f[2])
	case f[1] != 0 || f[4] != 0:
		if f[1] != f[4] {
			return Update{}, fmt.Errorf("moisture slots %d/%d: %w", f[1], f[4], ErrSlotMismatch)
		}
		return Update{Kind: UpdateMoisture, Value: f.Moisture()}, nil
	default:
		if f[0] != f[3] {
			return Update{}, fmt.Errorf("temperature slots %d/%d: %w", f[0], f[3], ErrSlotMismatch)
		}
		return Update{Kind: UpdateTemperature, Value: f.Temperature()}, nil
	}
}

func parseStatus(b byte) (Update, error) {
	switch {
	case b&UnitMarker != 0:
		return Update{Kind: UpdateUnit, Value: level(b, UnitFahrenheit)}, nil
	case b&WaterLowMarker != 0:
		return Update{Kind: UpdateWaterLow, Value: level(b, WaterLowLevel)}, nil
	case b&ThresholdMarker != 0:
		return Update{Kind: UpdateThreshold, Value: level(b, ThresholdHigh)}, nil
	default:
		return Update{}, fmt.Errorf("status %#08b: %w", b, ErrUnknownStatus)
	}
}

func level(b, mask byte) int {
	if b&mask != 0 {
		return 1
	}
	return 0
}

func (f Frame) String() string {
	return fmt.Sprintf("[%d %d %d %d %d %d]", f[0], f[1], f[2], f[3], f[4], f[5])
}
