// Package display renders readings on the two-digit display and runs the single-button menu.
//
// Gestures from the idle view:
//
//	hold                      water the plant
//	click                     toggle the watering threshold
//	double click              open the carousel F -> C -> P -> F ...
//
// Inside the carousel a click advances to the next label and leaving the button alone (or
// holding it) selects the label on screen: F or C sets the temperature unit, P switches the idle
// view to soil moisture.
package display

import (
	"log"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Gesture timing, in ticks
const (
	LongPressTicks    = 1000
	DoubleClickTicks  = 250
	CarouselIdleTicks = 5000
)

// State represents the display controller states
type State int

const (
	StateWaiting State = iota
	StateButtonDown
	StateButtonUp
	StateFahrenheitSelect
	StateFahrenheitButtonDown
	StateCelsiusSelect
	StateCelsiusButtonDown
	StateMoistureSelect
	StateMoistureButtonDown
	StateWaitingMoisture
)

// String returns the string representation of the display state
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateButtonDown:
		return "button-down"
	case StateButtonUp:
		return "button-up"
	case StateFahrenheitSelect:
		return "fahrenheit-select"
	case StateFahrenheitButtonDown:
		return "fahrenheit-button-down"
	case StateCelsiusSelect:
		return "celsius-select"
	case StateCelsiusButtonDown:
		return "celsius-button-down"
	case StateMoistureSelect:
		return "moisture-select"
	case StateMoistureButtonDown:
		return "moisture-button-down"
	case StateWaitingMoisture:
		return "waiting-moisture"
	default:
		return "unknown"
	}
}

// TemperatureReader exposes the temperature owner's current reading.
type TemperatureReader interface {
	CurrentTemperature() int
}

// MoistureReader exposes the moisture owner's current reading.
type MoistureReader interface {
	CurrentMoisture() int
}

// Controller drives the display.
type Controller struct {
	logger      *log.Logger
	temperature TemperatureReader
	moisture    MoistureReader

	state State
	shown int // last temperature written, -1 when the display shows something else
}

// NewController creates a display controller reading values through the given accessors.
func NewController(temperature TemperatureReader, moisture MoistureReader, logger *log.Logger) *Controller {
	return &Controller{
		logger:      logger,
		temperature: temperature,
		moisture:    moisture,
		state:       StateWaiting,
		shown:       -1,
	}
}

// State returns the current display state
func (c *Controller) State() State {
	return c.state
}

// Handle runs one event through the controller.
func (c *Controller) Handle(ev fsm.Event) []fsm.Effect {
	if ev.Kind == fsm.KindInit {
		c.state = StateWaiting
		c.shown = -1
		return []fsm.Effect{fsm.Display(Blank)}
	}

	switch c.state {
	case StateWaiting:
		switch ev.Kind {
		case fsm.KindUpdateTemperature:
			if ev.Param == c.shown {
				return nil
			}
			c.shown = ev.Param
			return []fsm.Effect{fsm.Display(Digits(ev.Param))}
		case fsm.KindPressed:
			return c.enter(StateButtonDown, fsm.Arm(fsm.TimerDisplay, LongPressTicks))
		}

	case StateWaitingMoisture:
		switch ev.Kind {
		case fsm.KindMoistureUpdate:
			return []fsm.Effect{fsm.Display(Digits(ev.Param))}
		case fsm.KindPressed:
			return c.enter(StateButtonDown, fsm.Arm(fsm.TimerDisplay, LongPressTicks))
		}

	case StateButtonDown:
		switch ev.Kind {
		case fsm.KindTimeout:
			c.logger.Printf("Long press, watering")
			return c.enter(StateWaiting, fsm.PostTo(fsm.ServicePump, fsm.E(fsm.KindWaterPress, 0)))
		case fsm.KindReleased:
			return c.enter(StateButtonUp, fsm.Arm(fsm.TimerDisplay, DoubleClickTicks))
		}

	case StateButtonUp:
		switch ev.Kind {
		case fsm.KindPressed:
			return c.enter(StateFahrenheitSelect,
				fsm.PostTo(fsm.ServiceTemperature, fsm.E(fsm.KindBeginUnitSelect, 0)),
				fsm.Arm(fsm.TimerDisplay, CarouselIdleTicks),
				fsm.Display(GlyphF),
			)
		case fsm.KindTimeout:
			return c.enter(StateWaiting, fsm.PostTo(fsm.ServiceMoisture, fsm.E(fsm.KindToggleThreshold, 0)))
		}

	case StateFahrenheitSelect, StateCelsiusSelect, StateMoistureSelect:
		switch ev.Kind {
		case fsm.KindPressed:
			return c.enter(c.state+1, fsm.Arm(fsm.TimerDisplay, LongPressTicks))
		case fsm.KindTimeout:
			return c.commit()
		}

	case StateFahrenheitButtonDown:
		switch ev.Kind {
		case fsm.KindReleased:
			return c.enter(StateCelsiusSelect, fsm.Arm(fsm.TimerDisplay, CarouselIdleTicks), fsm.Display(GlyphC))
		case fsm.KindTimeout:
			return c.commit()
		}

	case StateCelsiusButtonDown:
		switch ev.Kind {
		case fsm.KindReleased:
			return c.enter(StateMoistureSelect, fsm.Arm(fsm.TimerDisplay, CarouselIdleTicks), fsm.Display(GlyphP))
		case fsm.KindTimeout:
			return c.commit()
		}

	case StateMoistureButtonDown:
		switch ev.Kind {
		case fsm.KindReleased:
			return c.enter(StateFahrenheitSelect, fsm.Arm(fsm.TimerDisplay, CarouselIdleTicks), fsm.Display(GlyphF))
		case fsm.KindTimeout:
			return c.commit()
		}
	}
	return nil
}

// commit selects the carousel entry currently on screen and leaves the carousel.
func (c *Controller) commit() []fsm.Effect {
	end := fsm.PostTo(fsm.ServiceTemperature, fsm.E(fsm.KindEndUnitSelect, 0))

	switch c.state {
	case StateMoistureSelect, StateMoistureButtonDown:
		c.logger.Printf("Showing soil moisture")
		c.shown = -1
		return c.enter(StateWaitingMoisture, end, fsm.Display(Digits(c.moisture.CurrentMoisture())))
	}

	fahrenheit := c.state == StateFahrenheitSelect || c.state == StateFahrenheitButtonDown
	if fahrenheit {
		c.logger.Printf("Selected Fahrenheit")
	} else {
		c.logger.Printf("Selected Celsius")
	}

	c.shown = c.temperature.CurrentTemperature()
	update := fsm.E(fsm.KindUnitUpdate, fsm.Flag(fahrenheit))
	return c.enter(StateWaiting,
		fsm.PostTo(fsm.ServiceTemperature, fsm.E(fsm.KindSetUnit, fsm.Flag(fahrenheit))),
		end,
		fsm.PostTo(fsm.ServiceBridge, update),
		fsm.PostTo(fsm.ServiceBridge, update),
		fsm.Display(Digits(c.shown)),
	)
}

func (c *Controller) enter(s State, effects ...fsm.Effect) []fsm.Effect {
	c.state = s
	return effects
}
