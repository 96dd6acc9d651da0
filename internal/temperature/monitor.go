// Package temperature samples the thermistor and publishes whole-degree readings.
package temperature

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/librescoot/smartpot-service/internal/analog"
	"github.com/librescoot/smartpot-service/internal/fsm"
)

// PeriodTicks is the interval between published readings.
const PeriodTicks = 500

// Unit is the temperature unit readings are published in.
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
)

// String returns the string representation of the unit
func (u Unit) String() string {
	if u == Fahrenheit {
		return "F"
	}
	return "C"
}

// State represents the monitor states
type State int

const (
	StatePublishing State = iota
	StateSuspended
)

// String returns the string representation of the monitor state
func (s State) String() string {
	switch s {
	case StatePublishing:
		return "publishing"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Monitor owns the temperature unit and the current reading.
type Monitor struct {
	ctx     context.Context
	sensor  analog.Sensor
	timeout time.Duration
	logger  *log.Logger

	// SuspendOnUnitSelect stops periodic publishing while the display is showing the unit
	// carousel. Publishing resumes on EndUnitSelect.
	SuspendOnUnitSelect bool

	state   State
	unit    Unit
	current int
}

// NewMonitor creates a temperature monitor. Each read is bounded by timeout.
func NewMonitor(ctx context.Context, sensor analog.Sensor, timeout time.Duration, logger *log.Logger) *Monitor {
	return &Monitor{
		ctx:     ctx,
		sensor:  sensor,
		timeout: timeout,
		logger:  logger,
		state:   StatePublishing,
	}
}

// State returns the current monitor state
func (m *Monitor) State() State {
	return m.state
}

// CurrentTemperature returns the last published reading in the current unit.
func (m *Monitor) CurrentTemperature() int {
	return m.current
}

// Unit returns the unit readings are published in.
func (m *Monitor) Unit() Unit {
	return m.unit
}

// Handle runs one event through the monitor.
func (m *Monitor) Handle(ev fsm.Event) []fsm.Effect {
	if ev.Kind == fsm.KindSetUnit {
		// a unit change is published immediately
		if m.setUnit(Unit(ev.Param)) && m.state == StatePublishing {
			return m.publish(false)
		}
		return nil
	}

	if ev.Kind == fsm.KindInit {
		m.state = StatePublishing
		var effects []fsm.Effect
		if t, err := m.read(); err != nil {
			m.logger.Printf("Warning: Initial temperature read failed: %v", err)
		} else {
			m.current = t
			effects = append(effects, fsm.PostTo(fsm.ServiceDisplay, fsm.E(fsm.KindUpdateTemperature, t)))
		}
		return append(effects, fsm.Arm(fsm.TimerTemperature, PeriodTicks))
	}

	switch m.state {
	case StatePublishing:
		switch ev.Kind {
		case fsm.KindTimeout:
			return m.publish(true)
		case fsm.KindBeginUnitSelect:
			if m.SuspendOnUnitSelect {
				m.setState(StateSuspended)
			}
		}

	case StateSuspended:
		if ev.Kind == fsm.KindEndUnitSelect {
			m.setState(StatePublishing)
			return m.publish(true)
		}
	}
	return nil
}

// publish samples and sends the reading to the display and the bridge, optionally rearming the
// period.
func (m *Monitor) publish(rearm bool) []fsm.Effect {
	var effects []fsm.Effect
	if t, err := m.read(); err != nil {
		m.logger.Printf("Warning: Temperature read failed, keeping %d%s: %v", m.current, m.unit, err)
	} else {
		m.current = t
		update := fsm.E(fsm.KindUpdateTemperature, t)
		effects = append(effects,
			fsm.PostTo(fsm.ServiceDisplay, update),
			fsm.PostTo(fsm.ServiceBridge, update),
		)
	}
	if rearm {
		effects = append(effects, fsm.Arm(fsm.TimerTemperature, PeriodTicks))
	}
	return effects
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
		return 0, fmt.Errorf("failed to sample temperature channel: %w", err)
	}
	return Convert(s.Temperature, m.unit), nil
}

// setUnit reports whether the unit changed.
func (m *Monitor) setUnit(u Unit) bool {
	if u != Fahrenheit {
		u = Celsius
	}
	if u == m.unit {
		return false
	}
	m.logger.Printf("Switched temperature unit to %s", u)
	m.unit = u
	return true
}

func (m *Monitor) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Printf("Temperature state transition: %s -> %s", m.state, s)
	m.state = s
}
