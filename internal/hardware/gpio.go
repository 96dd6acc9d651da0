package hardware

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// EdgeFunc is called from the GPIO event goroutine for every edge on a button line. down is
// true when the button was pressed. It must not block.
type EdgeFunc func(down bool)

// GPIOManager handles the digital outputs and the button inputs
type GPIOManager struct {
	chip    *gpiocdev.Chip
	lines   map[fsm.Output]*gpiocdev.Line
	offsets map[fsm.Output]int
	inputs  map[string]*gpiocdev.Line
	logger  *log.Logger
	dryRun  bool

	mu     sync.Mutex
	levels [fsm.NumOutputs]bool
}

// NewGPIOManager opens the chip and requests every output line, driven low.
func NewGPIOManager(chipName string, outputs map[fsm.Output]int, logger *log.Logger, dryRun bool) (*GPIOManager, error) {
	gm := &GPIOManager{
		lines:   make(map[fsm.Output]*gpiocdev.Line),
		offsets: outputs,
		inputs:  make(map[string]*gpiocdev.Line),
		logger:  logger,
		dryRun:  dryRun,
	}

	if !dryRun {
		chip, err := gpiocdev.NewChip(chipName)
		if err != nil {
			return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipName, err)
		}
		gm.chip = chip

		if err := gm.initializeOutputs(); err != nil {
			gm.Close()
			return nil, fmt.Errorf("failed to initialize output GPIO lines: %w", err)
		}
	}

	return gm, nil
}

// initializeOutputs requests all output lines
func (gm *GPIOManager) initializeOutputs() error {
	for out, offset := range gm.offsets {
		line, err := gm.chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			return fmt.Errorf("failed to request %s GPIO %d: %w", out, offset, err)
		}
		gm.lines[out] = line
		gm.logger.Printf("Initialized %s output on GPIO %d", out, offset)
	}
	return nil
}

// SetOutput drives an output line
func (gm *GPIOManager) SetOutput(out fsm.Output, on bool) error {
	gm.mu.Lock()
	gm.levels[out] = on
	gm.mu.Unlock()

	if gm.dryRun {
		gm.logger.Printf("DRY RUN: Would set %s to %v", out, on)
		return nil
	}

	line, exists := gm.lines[out]
	if !exists {
		return fmt.Errorf("%s GPIO line not initialized", out)
	}

	value := 0
	if on {
		value = 1
	}

	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set %s GPIO: %w", out, err)
	}
	return nil
}

// Output returns the last level written to an output
func (gm *GPIOManager) Output(out fsm.Output) bool {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return gm.levels[out]
}

// WatchButton requests a pulled-up input for an active-low button and reports both edges to
// onEdge. It returns whether the button is pressed right now. In dry-run mode buttons are never
// pressed.
func (gm *GPIOManager) WatchButton(name string, offset int, onEdge EdgeFunc) (bool, error) {
	if gm.dryRun {
		gm.logger.Printf("DRY RUN: Would watch %s button on GPIO %d", name, offset)
		return false, nil
	}

	line, err := gm.chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			onEdge(evt.Type == gpiocdev.LineEventFallingEdge)
		}))
	if err != nil {
		return false, fmt.Errorf("failed to request %s button GPIO %d: %w", name, offset, err)
	}
	gm.inputs[name] = line

	value, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read %s button GPIO %d: %w", name, offset, err)
	}

	gm.logger.Printf("Watching %s button on GPIO %d (pressed=%v)", name, offset, value == 0)
	return value == 0, nil
}

// Close releases all GPIO resources
func (gm *GPIOManager) Close() error {
	if gm.dryRun {
		return nil
	}

	var lastErr error

	for name, line := range gm.inputs {
		if err := line.Close(); err != nil {
			gm.logger.Printf("Failed to close %s button GPIO line: %v", name, err)
			lastErr = err
		}
	}

	for out, line := range gm.lines {
		// leave the pump and LEDs off
		_ = line.SetValue(0)
		if err := line.Close(); err != nil {
			gm.logger.Printf("Failed to close %s GPIO line: %v", out, err)
			lastErr = err
		}
	}

	if gm.chip != nil {
		if err := gm.chip.Close(); err != nil {
			gm.logger.Printf("Failed to close GPIO chip: %v", err)
			lastErr = err
		}
	}

	gm.logger.Printf("Closed GPIO manager")
	return lastErr
}
