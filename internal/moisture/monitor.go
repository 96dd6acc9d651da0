// Package moisture measures soil moisture, owns the watering threshold and requests water when
// the soil is dry.
package moisture

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/librescoot/smartpot-service/internal/analog"
	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Timing constants for the measurement cycle, in ticks
const (
	SettleTicks   = 500
	IntervalTicks = 4500
	WateringTicks = 2000
)

// ProbeMissingPercent is the reading below which the probe is assumed to be out of the soil.
const ProbeMissingPercent = 5

// Threshold is the watering mode.
type Threshold int

const (
	Low Threshold = iota
	High
)

// Percent returns the moisture level below which watering starts.
func (t Threshold) Percent() int {
	if t == High {
		return 30
	}
	return 20
}

// String returns the string representation of the threshold
func (t Threshold) String() string {
	if t == High {
		return "high"
	}
	return "low"
}

// State represents the monitor states
type State int

const (
	StateMeasuring State = iota
	StateWaiting
)

// String returns the string representation of the monitor state
func (s State) String() string {
	switch s {
	case StateMeasuring:
		return "measuring"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Monitor runs the measure/wait cycle.
type Monitor struct {
	ctx     context.Context
	sensor  analog.Sensor
	timeout time.Duration
	logger  *log.Logger

	state     State
	threshold Threshold
	current   int
}

// NewMonitor creates a soil moisture monitor starting in the low threshold.
func NewMonitor(ctx context.Context, sensor analog.Sensor, timeout time.Duration, logger *log.Logger) *Monitor {
	return &Monitor{
		ctx:     ctx,
		sensor:  sensor,
		timeout: timeout,
		logger:  logger,
		state:   StateMeasuring,
	}
}

// State returns the current monitor state
func (m *Monitor) State() State {
	return m.state
}

// CurrentMoisture returns the last measured moisture percentage.
func (m *Monitor) CurrentMoisture() int {
	return m.current
}

// Threshold returns the watering threshold.
func (m *Monitor) Threshold() Threshold {
	return m.threshold
}

// Handle runs one event through the monitor.
func (m *Monitor) Handle(ev fsm.Event) []fsm.Effect {
	switch ev.Kind {
	case fsm.KindInit:
		m.state = StateMeasuring
		effects := m.indicators()
		return append(effects,
			fsm.Set(fsm.OutputProbe, true),
			fsm.Arm(fsm.TimerMoisture, SettleTicks),
		)

	case fsm.KindToggleThreshold:
		if m.threshold == Low {
			m.threshold = High
		} else {
			m.threshold = Low
		}
		m.logger.Printf("Watering threshold toggled to %s (%d%%)", m.threshold, m.threshold.Percent())
		update := fsm.E(fsm.KindThresholdUpdate, fsm.Flag(m.threshold == High))
		return append(m.indicators(),
			fsm.PostTo(fsm.ServiceBridge, update),
			fsm.PostTo(fsm.ServiceBridge, update),
		)

	case fsm.KindSetThreshold:
		m.threshold = Low
		if ev.Param != 0 {
			m.threshold = High
		}
		m.logger.Printf("Watering threshold set to %s (%d%%)", m.threshold, m.threshold.Percent())
		return m.indicators()
	}

	if ev.Kind != fsm.KindTimeout {
		return nil
	}

	switch m.state {
	case StateWaiting:
		m.setState(StateMeasuring)
		return []fsm.Effect{
			fsm.Set(fsm.OutputProbe, true),
			fsm.Arm(fsm.TimerMoisture, SettleTicks),
		}

	case StateMeasuring:
		effects := m.measure()
		m.setState(StateWaiting)
		return append(effects, fsm.Arm(fsm.TimerMoisture, IntervalTicks))
	}
	return nil
}

// measure takes one reading with the probe powered, then powers it down.
func (m *Monitor) measure() []fsm.Effect {
	percent, err := m.read()
	effects := []fsm.Effect{fsm.Set(fsm.OutputProbe, false)}
	if err != nil {
		m.logger.Printf("Warning: Soil moisture read failed, keeping %d%%: %v", m.current, err)
		return effects
	}

	m.current = percent
	update := fsm.E(fsm.KindMoistureUpdate, percent)
	effects = append(effects,
		fsm.PostTo(fsm.ServiceBridge, update),
		fsm.PostTo(fsm.ServiceDisplay, update),
	)

	if NeedsWater(percent, m.threshold) {
		m.logger.Printf("Soil moisture %d%% below %d%%, requesting water", percent, m.threshold.Percent())
		effects = append(effects, fsm.PostTo(fsm.ServicePump, fsm.E(fsm.KindAddWater, WateringTicks)))
	}
	return effects
}

// NeedsWater applies the watering policy to a reading.
func NeedsWater(percent int, threshold Threshold) bool {
	return percent >= ProbeMissingPercent && percent < threshold.Percent()
}

// Percent converts a raw reading into a 0-100 percentage.
func Percent(raw uint16) int {
	p := int(raw) * 100 / analog.MaxRaw
	if p > 100 {
		p = 100
	}
	return p
}

func (m *Monitor) read() (int, error) {
	ctx := m.ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
	}

	s, err := m.sensor.Sample(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sample moisture channel: %w", err)
	}
	return Percent(s.Moisture), nil
}

func (m *Monitor) indicators() []fsm.Effect {
	return []fsm.Effect{
		fsm.Set(fsm.OutputThresholdLow, m.threshold == Low),
		fsm.Set(fsm.OutputThresholdHigh, m.threshold == High),
	}
}

func (m *Monitor) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
}
