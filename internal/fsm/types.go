package fsm

import "fmt"

// Kind identifies the type of an event.
type Kind int

// Events
const (
	KindNone Kind = iota

	// Lifecycle
	KindInit
	KindTimeout

	// Raw button edges (from GPIO input events)
	KindButtonDown
	KindButtonUp

	// Debounced button gestures
	KindPressed
	KindReleased

	// Pump requests
	KindAddWater   // Param: duration in ticks
	KindWaterPress // fixed default duration

	// Sensor publications
	KindUpdateTemperature // Param: rounded temperature in the current unit
	KindMoistureUpdate    // Param: moisture percent

	// Display <-> temperature coordination
	KindBeginUnitSelect
	KindEndUnitSelect

	// Outbound bridge updates
	KindThresholdUpdate // Param: 1 = high
	KindUnitUpdate      // Param: 1 = fahrenheit
	KindWaterLowUpdate  // Param: 1 = water low

	// Inbound bridge byte
	KindFrameByteReceived // Param: received byte, never zero

	// Owner-side mutations
	KindSetUnit         // Param: 1 = fahrenheit
	KindToggleThreshold //
	KindSetThreshold    // Param: 1 = high

	// Console
	KindKeyPressed // Param: key rune
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	KindInit:              "init",
	KindTimeout:           "timeout",
	KindButtonDown:        "button-down",
	KindButtonUp:          "button-up",
	KindPressed:           "pressed",
	KindReleased:          "released",
	KindAddWater:          "add-water",
	KindWaterPress:        "water-press",
	KindUpdateTemperature: "update-temperature",
	KindMoistureUpdate:    "moisture-update",
	KindBeginUnitSelect:   "begin-unit-select",
	KindEndUnitSelect:     "end-unit-select",
	KindThresholdUpdate:   "threshold-update",
	KindUnitUpdate:        "unit-update",
	KindWaterLowUpdate:    "water-low-update",
	KindFrameByteReceived: "frame-byte-received",
	KindSetUnit:           "set-unit",
	KindToggleThreshold:   "toggle-threshold",
	KindSetThreshold:      "set-threshold",
	KindKeyPressed:        "key-pressed",
}

// String returns the string representation of the event kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is the unit of communication between services. It is copied by value.
type Event struct {
	Kind  Kind
	Param int
}

// E builds an event with a parameter.
func E(kind Kind, param int) Event {
	return Event{Kind: kind, Param: param}
}

func (e Event) String() string {
	if e.Param == 0 {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", e.Kind, e.Param)
}

// Flag converts a boolean into the 0/1 parameter convention.
func Flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ServiceID names one of the fixed set of services.
type ServiceID int

const (
	ServiceUserButton ServiceID = iota
	ServiceWaterButton
	ServiceTemperature
	ServiceMoisture
	ServicePump
	ServiceDisplay
	ServiceBridge
	ServiceConsole
	ServiceTelemetry

	NumServices = int(ServiceTelemetry) + 1
)

var serviceNames = [NumServices]string{
	"user-button",
	"water-button",
	"temperature",
	"moisture",
	"pump",
	"display",
	"bridge",
	"console",
	"telemetry",
}

func (s ServiceID) String() string {
	if s >= 0 && int(s) < NumServices {
		return serviceNames[s]
	}
	return fmt.Sprintf("service(%d)", int(s))
}

// TimerID names one of the fixed set of countdown timers.
type TimerID int

const (
	TimerUserDebounce TimerID = iota
	TimerWaterDebounce
	TimerTemperature
	TimerMoisture
	TimerPump
	TimerDisplay
	TimerConsole
	TimerTelemetry

	NumTimers = int(TimerTelemetry) + 1
)

var timerNames = [NumTimers]string{
	"user-debounce",
	"water-debounce",
	"temperature",
	"moisture",
	"pump",
	"display",
	"console",
	"telemetry",
}

func (t TimerID) String() string {
	if t >= 0 && int(t) < NumTimers {
		return timerNames[t]
	}
	return fmt.Sprintf("timer(%d)", int(t))
}

// Output names a digital output.
type Output int

const (
	OutputPump Output = iota
	OutputThresholdLow
	OutputThresholdHigh
	OutputWaterLow
	OutputProbe

	NumOutputs = int(OutputProbe) + 1
)

var outputNames = [NumOutputs]string{
	"pump",
	"threshold-low",
	"threshold-high",
	"water-low",
	"probe",
}

func (o Output) String() string {
	if o >= 0 && int(o) < NumOutputs {
		return outputNames[o]
	}
	return fmt.Sprintf("output(%d)", int(o))
}
