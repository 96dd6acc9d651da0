// Package button turns raw GPIO edges into confirmed button gestures.
package button

import (
	"log"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// DebounceTicks is the quiet period an edge must survive before it is confirmed.
const DebounceTicks = 50

// State represents the debouncer states
type State int

const (
	StateIdle State = iota
	StateConfirmingFall
	StateConfirmingRise
)

// String returns the string representation of the debouncer state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirmingFall:
		return "confirming-fall"
	case StateConfirmingRise:
		return "confirming-rise"
	default:
		return "unknown"
	}
}

// Debouncer confirms a press or release once the raw line has been quiet for the debounce
// window. An opposite edge inside the window cancels the pending confirmation.
type Debouncer struct {
	name    string
	timer   fsm.TimerID
	window  int
	state   State
	logger  *log.Logger
	confirm func(pressed bool) []fsm.Effect
}

func newDebouncer(name string, timer fsm.TimerID, window int, logger *log.Logger, confirm func(bool) []fsm.Effect) *Debouncer {
	if window <= 0 {
		window = DebounceTicks
	}
	return &Debouncer{
		name:    name,
		timer:   timer,
		window:  window,
		state:   StateIdle,
		logger:  logger,
		confirm: confirm,
	}
}

// State returns the current debouncer state
func (d *Debouncer) State() State {
	return d.state
}

// Handle runs one event through the debouncer.
func (d *Debouncer) Handle(ev fsm.Event) []fsm.Effect {
	switch d.state {
	case StateIdle:
		switch ev.Kind {
		case fsm.KindButtonDown:
			d.state = StateConfirmingFall
			return []fsm.Effect{fsm.Arm(d.timer, d.window)}
		case fsm.KindButtonUp:
			d.state = StateConfirmingRise
			return []fsm.Effect{fsm.Arm(d.timer, d.window)}
		}

	case StateConfirmingFall:
		switch ev.Kind {
		case fsm.KindButtonUp:
			d.state = StateIdle
		case fsm.KindTimeout:
			d.state = StateIdle
			d.logger.Printf("%s button pressed", d.name)
			return d.confirm(true)
		}

	case StateConfirmingRise:
		switch ev.Kind {
		case fsm.KindButtonDown:
			d.state = StateIdle
		case fsm.KindTimeout:
			d.state = StateIdle
			d.logger.Printf("%s button released", d.name)
			return d.confirm(false)
		}
	}
	return nil
}
