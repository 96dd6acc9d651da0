package service

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/librescoot/smartpot-service/internal/analog"
	"github.com/librescoot/smartpot-service/internal/bridge"
	"github.com/librescoot/smartpot-service/internal/button"
	"github.com/librescoot/smartpot-service/internal/console"
	"github.com/librescoot/smartpot-service/internal/display"
	"github.com/librescoot/smartpot-service/internal/fsm"
	"github.com/librescoot/smartpot-service/internal/moisture"
	"github.com/librescoot/smartpot-service/internal/pump"
	"github.com/librescoot/smartpot-service/internal/telemetry"
	"github.com/librescoot/smartpot-service/internal/temperature"
)

// Service priorities; higher runs first. Input debouncers go first so edges are confirmed before
// anything reacts to stale state, the reporters go last.
var priorities = map[fsm.ServiceID]int{
	fsm.ServiceUserButton:  9,
	fsm.ServiceWaterButton: 8,
	fsm.ServicePump:        7,
	fsm.ServiceDisplay:     6,
	fsm.ServiceTemperature: 5,
	fsm.ServiceMoisture:    4,
	fsm.ServiceBridge:      3,
	fsm.ServiceConsole:     2,
	fsm.ServiceTelemetry:   1,
}

var timerOwners = map[fsm.TimerID]fsm.ServiceID{
	fsm.TimerUserDebounce:  fsm.ServiceUserButton,
	fsm.TimerWaterDebounce: fsm.ServiceWaterButton,
	fsm.TimerTemperature:   fsm.ServiceTemperature,
	fsm.TimerMoisture:      fsm.ServiceMoisture,
	fsm.TimerPump:          fsm.ServicePump,
	fsm.TimerDisplay:       fsm.ServiceDisplay,
	fsm.TimerConsole:       fsm.ServiceConsole,
	fsm.TimerTelemetry:     fsm.ServiceTelemetry,
}

// MachineOptions configures the state machines.
type MachineOptions struct {
	Sensor        analog.Sensor
	SensorTimeout time.Duration
	DebounceTicks int

	// InitialWaterLow is the reservoir level sampled before the loop starts.
	InitialWaterLow                bool
	SuspendTemperatureDuringSelect bool

	// ConsoleOut enables the status console when set.
	ConsoleOut   io.Writer
	ConsoleClear bool

	// Offer enables periodic snapshots when set.
	Offer          func(telemetry.Snapshot) bool
	TelemetryTicks int
}

// Machines is the fixed set of state machines.
type Machines struct {
	UserButton  *button.Debouncer
	Reservoir   *button.Reservoir
	Temperature *temperature.Monitor
	Moisture    *moisture.Monitor
	Pump        *pump.Controller
	Display     *display.Controller
	Bridge      *bridge.Bridge
	Console     *console.Console
	Reporter    *telemetry.Reporter
}

// NewMachines builds every machine. Console and Reporter stay nil unless enabled.
func NewMachines(ctx context.Context, opts MachineOptions, logger *log.Logger) *Machines {
	m := &Machines{
		UserButton:  button.NewUserButton(opts.DebounceTicks, logger),
		Reservoir:   button.NewReservoir(opts.DebounceTicks, opts.InitialWaterLow, logger),
		Temperature: temperature.NewMonitor(ctx, opts.Sensor, opts.SensorTimeout, logger),
		Moisture:    moisture.NewMonitor(ctx, opts.Sensor, opts.SensorTimeout, logger),
		Pump:        pump.NewController(logger),
		Bridge:      bridge.New(logger),
	}
	m.Temperature.SuspendOnUnitSelect = opts.SuspendTemperatureDuringSelect
	m.Display = display.NewController(m.Temperature, m.Moisture, logger)

	if opts.ConsoleOut != nil {
		m.Console = console.New(opts.ConsoleOut, opts.ConsoleClear, m.Temperature, m.Moisture, m.Reservoir, logger)
	}
	if opts.Offer != nil {
		m.Reporter = telemetry.NewReporter(opts.TelemetryTicks, m.Snapshot, opts.Offer, logger)
	}
	return m
}

// handlers returns the handler of every enabled machine.
func (m *Machines) handlers() map[fsm.ServiceID]fsm.Handler {
	h := map[fsm.ServiceID]fsm.Handler{
		fsm.ServiceUserButton:  m.UserButton.Handle,
		fsm.ServiceWaterButton: m.Reservoir.Handle,
		fsm.ServiceTemperature: m.Temperature.Handle,
		fsm.ServiceMoisture:    m.Moisture.Handle,
		fsm.ServicePump:        m.Pump.Handle,
		fsm.ServiceDisplay:     m.Display.Handle,
		fsm.ServiceBridge:      m.Bridge.Handle,
	}
	if m.Console != nil {
		h[fsm.ServiceConsole] = m.Console.Handle
	}
	if m.Reporter != nil {
		h[fsm.ServiceTelemetry] = m.Reporter.Handle
	}
	return h
}

// Snapshot collects the current status. It must run on the event loop.
func (m *Machines) Snapshot() telemetry.Snapshot {
	return telemetry.Snapshot{
		Time:        time.Now(),
		Temperature: m.Temperature.CurrentTemperature(),
		Unit:        m.Temperature.Unit().String(),
		Moisture:    m.Moisture.CurrentMoisture(),
		Threshold:   m.Moisture.Threshold().Percent(),
		WaterLow:    m.Reservoir.WaterLow(),
		Pumping:     m.Pump.Pumping(),
		PumpRuns:    m.Pump.Runs(),
		FramesOut:   m.Bridge.FramesOut(),
		CommandsIn:  m.Bridge.CommandsIn(),
		Display:     m.Display.State().String(),
	}
}
