// Package console prints a periodic status screen and accepts single-key commands.
package console

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/librescoot/smartpot-service/internal/fsm"
	"github.com/librescoot/smartpot-service/internal/moisture"
	"github.com/librescoot/smartpot-service/internal/temperature"
)

// RefreshTicks is the status screen refresh period.
const RefreshTicks = 2000

const clearScreen = "\033[2J\033[H"

// TemperatureReader exposes the temperature owner's state.
type TemperatureReader interface {
	CurrentTemperature() int
	Unit() temperature.Unit
}

// MoistureReader exposes the moisture owner's state.
type MoistureReader interface {
	CurrentMoisture() int
	Threshold() moisture.Threshold
}

// ReservoirReader exposes the reservoir level.
type ReservoirReader interface {
	WaterLow() bool
}

// Console renders status through the owners' accessors. It never mutates shared state; key
// commands are posted to the owners.
type Console struct {
	out    io.Writer
	logger *log.Logger
	clear  bool

	temperature TemperatureReader
	moisture    MoistureReader
	reservoir   ReservoirReader
}

// New creates a console writing to out. With clear set the screen is wiped before every render.
func New(out io.Writer, clear bool, t TemperatureReader, m MoistureReader, r ReservoirReader, logger *log.Logger) *Console {
	return &Console{
		out:         out,
		logger:      logger,
		clear:       clear,
		temperature: t,
		moisture:    m,
		reservoir:   r,
	}
}

// Handle runs one event through the console.
func (c *Console) Handle(ev fsm.Event) []fsm.Effect {
	switch ev.Kind {
	case fsm.KindInit:
		return []fsm.Effect{fsm.Arm(fsm.TimerConsole, RefreshTicks)}
	case fsm.KindTimeout:
		if _, err := io.WriteString(c.out, c.Render()); err != nil {
			c.logger.Printf("Warning: Failed to write console status: %v", err)
		}
		return []fsm.Effect{fsm.Arm(fsm.TimerConsole, RefreshTicks)}
	case fsm.KindKeyPressed:
		return Command(rune(ev.Param))
	}
	return nil
}

// Render returns the status screen.
func (c *Console) Render() string {
	var b strings.Builder
	if c.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString("Smart Pot\r\n\r\n")
	b.WriteString("Press 'f' to switch to Fahrenheit\r\n")
	b.WriteString("Press 'c' to switch to Celsius\r\n")
	b.WriteString("Press 'w' to water the plant\r\n")
	b.WriteString("Press 't' to switch water level threshold\r\n")
	fmt.Fprintf(&b, "Temperature: %d %s\r\n", c.temperature.CurrentTemperature(), c.temperature.Unit())
	fmt.Fprintf(&b, "Soil Moisture: %d%%\r\n", c.moisture.CurrentMoisture())
	fmt.Fprintf(&b, "Threshold = %d%%\r\n", c.moisture.Threshold().Percent())
	if c.reservoir.WaterLow() {
		b.WriteString("\r\n**************************\r\n")
		b.WriteString("WATER LOW!!!\r\nRefill Water\r\n")
		b.WriteString("**************************\r\n")
	}
	return b.String()
}

// Command maps a key to the events it posts. Unknown keys map to nothing.
func Command(key rune) []fsm.Effect {
	switch key {
	case 'f', 'F':
		return setUnit(true)
	case 'c', 'C':
		return setUnit(false)
	case 'w', 'W':
		return []fsm.Effect{fsm.PostTo(fsm.ServicePump, fsm.E(fsm.KindWaterPress, 0))}
	case 't', 'T':
		return []fsm.Effect{fsm.PostTo(fsm.ServiceMoisture, fsm.E(fsm.KindToggleThreshold, 0))}
	}
	return nil
}

func setUnit(fahrenheit bool) []fsm.Effect {
	update := fsm.E(fsm.KindUnitUpdate, fsm.Flag(fahrenheit))
	return []fsm.Effect{
		fsm.PostTo(fsm.ServiceTemperature, fsm.E(fsm.KindSetUnit, fsm.Flag(fahrenheit))),
		fsm.PostTo(fsm.ServiceBridge, update),
		fsm.PostTo(fsm.ServiceBridge, update),
	}
}
