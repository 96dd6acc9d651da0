// Package telemetry publishes periodic status snapshots of the pot to Redis, MQTT and
// Prometheus.
package telemetry

import (
	"log"
	"time"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Snapshot is the pot status at one point in time.
type Snapshot struct {
	Time        time.Time `json:"time"`
	Temperature int       `json:"temperature"`
	Unit        string    `json:"unit"`
	Moisture    int       `json:"moisture"`
	Threshold   int       `json:"threshold"`
	WaterLow    bool      `json:"water_low"`
	Pumping     bool      `json:"pumping"`
	PumpRuns    int       `json:"pump_runs"`
	FramesOut   int       `json:"frames_out"`
	CommandsIn  int       `json:"commands_in"`
	Display     string    `json:"display"`
}

// Reporter is the service that takes a snapshot every period. It runs on the event loop, so
// collect may read machine accessors directly. Snapshots are handed to offer, which must not
// block.
type Reporter struct {
	period  int
	collect func() Snapshot
	offer   func(Snapshot) bool
	logger  *log.Logger

	dropped int
}

// NewReporter creates a reporter taking a snapshot every period ticks.
func NewReporter(period int, collect func() Snapshot, offer func(Snapshot) bool, logger *log.Logger) *Reporter {
	return &Reporter{
		period:  period,
		collect: collect,
		offer:   offer,
		logger:  logger,
	}
}

// Dropped returns the number of snapshots the publisher had no room for.
func (r *Reporter) Dropped() int {
	return r.dropped
}

// Handle runs one event through the reporter.
func (r *Reporter) Handle(ev fsm.Event) []fsm.Effect {
	switch ev.Kind {
	case fsm.KindInit:
	case fsm.KindTimeout:
		if !r.offer(r.collect()) {
			r.dropped++
			r.logger.Printf("Warning: Telemetry publisher busy, dropped snapshot (%d total)", r.dropped)
		}
	default:
		return nil
	}
	return []fsm.Effect{fsm.Arm(fsm.TimerTelemetry, r.period)}
}
