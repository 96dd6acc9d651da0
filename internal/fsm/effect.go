package fsm

import (
	"fmt"

	"github.com/librescoot/smartpot-service/internal/wire"
)

// Op identifies what an effect asks the runtime to do.
type Op int

const (
	OpArmTimer Op = iota
	OpPost
	OpSetOutput
	OpWriteDisplay
	OpSendFrame
)

// Effect is a side effect requested by a transition. Machines never touch hardware, timers or
// other queues directly; they return effects and the runtime applies them in order.
type Effect struct {
	Op Op

	Timer TimerID
	Ticks int

	To    ServiceID
	Event Event

	Output Output
	On     bool

	Pattern uint16

	Frame wire.Frame
}

// Arm (re)arms a timer.
func Arm(timer TimerID, ticks int) Effect {
	return Effect{Op: OpArmTimer, Timer: timer, Ticks: ticks}
}

// PostTo enqueues an event for another service.
func PostTo(to ServiceID, ev Event) Effect {
	return Effect{Op: OpPost, To: to, Event: ev}
}

// Set drives a digital output.
func Set(out Output, on bool) Effect {
	return Effect{Op: OpSetOutput, Output: out, On: on}
}

// Display writes a segment pattern to the display buffer.
func Display(pattern uint16) Effect {
	return Effect{Op: OpWriteDisplay, Pattern: pattern}
}

// Send writes a frame to the bridge link.
func Send(f wire.Frame) Effect {
	return Effect{Op: OpSendFrame, Frame: f}
}

func (e Effect) String() string {
	switch e.Op {
	case OpArmTimer:
		return fmt.Sprintf("arm %s %d", e.Timer, e.Ticks)
	case OpPost:
		return fmt.Sprintf("post %s -> %s", e.Event, e.To)
	case OpSetOutput:
		return fmt.Sprintf("set %s=%v", e.Output, e.On)
	case OpWriteDisplay:
		return fmt.Sprintf("display %#04x", e.Pattern)
	case OpSendFrame:
		return fmt.Sprintf("send %s", e.Frame)
	default:
		return fmt.Sprintf("op(%d)", int(e.Op))
	}
}

// Posts returns the events in effects addressed to a service, in order.
func Posts(effects []Effect, to ServiceID) []Event {
	var out []Event
	for _, e := range effects {
		if e.Op == OpPost && e.To == to {
			out = append(out, e.Event)
		}
	}
	return out
}
