// Package pump drives the water pump output.
package pump

import (
	"log"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// DefaultTicks is how long the pump runs for a water press or a request without a duration.
const DefaultTicks = 2000

// State represents the pump states
type State int

const (
	StateIdle State = iota
	StatePumping
)

// String returns the string representation of the pump state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePumping:
		return "pumping"
	default:
		return "unknown"
	}
}

// Controller runs the pump for a requested number of ticks. Requests that arrive while the pump
// is already running are dropped; the running deadline is never extended.
type Controller struct {
	logger *log.Logger
	state  State
	runs   int
}

// NewController creates an idle pump controller
func NewController(logger *log.Logger) *Controller {
	return &Controller{logger: logger}
}

// State returns the current pump state
func (c *Controller) State() State {
	return c.state
}

// Pumping reports whether the pump output is on.
func (c *Controller) Pumping() bool {
	return c.state == StatePumping
}

// Runs returns how many times the pump has been started.
func (c *Controller) Runs() int {
	return c.runs
}

// Handle runs one event through the controller.
func (c *Controller) Handle(ev fsm.Event) []fsm.Effect {
	switch c.state {
	case StateIdle:
		switch ev.Kind {
		case fsm.KindInit:
			return []fsm.Effect{fsm.Set(fsm.OutputPump, false)}
		case fsm.KindAddWater:
			return c.start(ev.Param, "watering request")
		case fsm.KindWaterPress:
			return c.start(DefaultTicks, "water press")
		}

	case StatePumping:
		switch ev.Kind {
		case fsm.KindTimeout:
			c.logger.Printf("Pump stopped")
			c.state = StateIdle
			return []fsm.Effect{fsm.Set(fsm.OutputPump, false)}
		case fsm.KindAddWater, fsm.KindWaterPress:
			c.logger.Printf("Ignoring %s, pump already running", ev.Kind)
		}
	}
	return nil
}

func (c *Controller) start(ticks int, reason string) []fsm.Effect {
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	c.logger.Printf("Pump started for %d ticks (%s)", ticks, reason)
	c.state = StatePumping
	c.runs++
	return []fsm.Effect{
		fsm.Set(fsm.OutputPump, true),
		fsm.Arm(fsm.TimerPump, ticks),
	}
}
