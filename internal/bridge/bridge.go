// Package bridge talks to the wireless companion module: local updates go out as 6-byte frames
// and inbound command bytes are turned into requests for the pump, the temperature unit and the
// watering threshold.
package bridge

import (
	"log"

	"github.com/librescoot/smartpot-service/internal/fsm"
	"github.com/librescoot/smartpot-service/internal/wire"
)

// State represents the bridge states
type State int

const (
	StateWaiting State = iota
	// StateWriting is reserved; frames are written in a single call so the bridge never waits
	// on the link.
	StateWriting
)

// String returns the string representation of the bridge state
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// Bridge encodes outbound updates and decodes inbound commands.
type Bridge struct {
	logger *log.Logger
	state  State
	lastRx byte

	framesOut  int
	commandsIn int
}

// New creates a bridge
func New(logger *log.Logger) *Bridge {
	return &Bridge{logger: logger}
}

// State returns the current bridge state
func (b *Bridge) State() State {
	return b.state
}

// LastCommand returns the last command byte that was acted on.
func (b *Bridge) LastCommand() byte {
	return b.lastRx
}

// FramesOut returns how many frames were handed to the link.
func (b *Bridge) FramesOut() int {
	return b.framesOut
}

// CommandsIn returns how many command bytes were decoded.
func (b *Bridge) CommandsIn() int {
	return b.commandsIn
}

// Handle runs one event through the bridge.
func (b *Bridge) Handle(ev fsm.Event) []fsm.Effect {
	if ev.Kind == fsm.KindInit {
		b.state = StateWaiting
		return nil
	}
	if b.state != StateWaiting {
		return nil
	}

	switch ev.Kind {
	case fsm.KindUpdateTemperature:
		return b.send(wire.EncodeTemperature(ev.Param))
	case fsm.KindMoistureUpdate:
		return b.send(wire.EncodeMoisture(ev.Param))
	case fsm.KindThresholdUpdate:
		return b.send(wire.EncodeThreshold(ev.Param != 0))
	case fsm.KindUnitUpdate:
		return b.send(wire.EncodeUnit(ev.Param != 0))
	case fsm.KindWaterLowUpdate:
		return b.send(wire.EncodeWaterLow(ev.Param != 0))
	case fsm.KindFrameByteReceived:
		return b.receive(byte(ev.Param))
	}
	return nil
}

func (b *Bridge) send(f wire.Frame) []fsm.Effect {
	b.framesOut++
	return []fsm.Effect{fsm.Send(f)}
}

// receive acts on a command byte unless it repeats the previous one; the link echoes.
func (b *Bridge) receive(rx byte) []fsm.Effect {
	if rx == b.lastRx {
		return nil
	}
	b.lastRx = rx
	b.commandsIn++

	cmd := wire.DecodeCommand(rx)
	b.logger.Printf("Bridge command %08b: water=%v unit=%v/%v threshold=%v/%v",
		rx, cmd.Water, cmd.SetUnit, cmd.Fahrenheit, cmd.SetThreshold, cmd.High)

	var effects []fsm.Effect
	if cmd.Water {
		effects = append(effects, fsm.PostTo(fsm.ServicePump, fsm.E(fsm.KindWaterPress, 0)))
	}
	if cmd.SetUnit {
		effects = append(effects, fsm.PostTo(fsm.ServiceTemperature, fsm.E(fsm.KindSetUnit, fsm.Flag(cmd.Fahrenheit))))
	}
	if cmd.SetThreshold {
		effects = append(effects, fsm.PostTo(fsm.ServiceMoisture, fsm.E(fsm.KindSetThreshold, fsm.Flag(cmd.High))))
	}
	return effects
}
