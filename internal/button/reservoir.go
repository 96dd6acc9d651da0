package button

import (
	"log"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Reservoir debounces the float switch in the water reservoir. The switch is held closed while
// there is enough water, so a confirmed press means the level is fine and a confirmed release
// means the reservoir is running low.
type Reservoir struct {
	*Debouncer
	waterLow bool
}

// NewReservoir creates the reservoir watcher. initialLow is the level sampled from the input line
// before the event loop starts; it is announced on Init.
func NewReservoir(window int, initialLow bool, logger *log.Logger) *Reservoir {
	r := &Reservoir{waterLow: initialLow}
	r.Debouncer = newDebouncer("Reservoir", fsm.TimerWaterDebounce, window, logger, func(pressed bool) []fsm.Effect {
		return r.update(!pressed)
	})
	return r
}

// WaterLow reports the last confirmed reservoir level.
func (r *Reservoir) WaterLow() bool {
	return r.waterLow
}

// Handle runs one event through the reservoir watcher.
func (r *Reservoir) Handle(ev fsm.Event) []fsm.Effect {
	if ev.Kind == fsm.KindInit {
		r.logger.Printf("Initial reservoir level: water low=%v", r.waterLow)
		return r.update(r.waterLow)
	}
	return r.Debouncer.Handle(ev)
}

// update drives the indicator and tells the bridge twice.
func (r *Reservoir) update(low bool) []fsm.Effect {
	r.waterLow = low
	update := fsm.E(fsm.KindWaterLowUpdate, fsm.Flag(low))
	return []fsm.Effect{
		fsm.Set(fsm.OutputWaterLow, low),
		fsm.PostTo(fsm.ServiceBridge, update),
		fsm.PostTo(fsm.ServiceBridge, update),
	}
}
