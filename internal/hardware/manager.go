package hardware

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/librescoot/smartpot-service/internal/analog"
	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Options selects the hardware the manager opens.
type Options struct {
	Chip    string
	Outputs map[fsm.Output]int

	DisplayDevice string

	IIODevice          string
	TemperatureChannel int
	MoistureChannel    int

	DryRun bool
}

// DryRunSample is what the sensor reports in dry-run mode: about 21 °C and 40 % moisture.
var DryRunSample = analog.Sample{Temperature: 2048, Moisture: 1638}

const outputStateBuffer = 32

type outputState struct {
	out fsm.Output
	on  bool
}

// Manager coordinates the pot hardware and mirrors output state to Redis
type Manager struct {
	gpio    *GPIOManager
	display *DisplayPort
	sensor  analog.Sensor
	redis   *redis.Client
	logger  *log.Logger
	ctx     context.Context

	states chan outputState
	done   chan struct{}
}

// NewManager creates a new hardware manager. redisClient may be nil.
func NewManager(ctx context.Context, redisClient *redis.Client, opts Options, logger *log.Logger) (*Manager, error) {
	gpio, err := NewGPIOManager(opts.Chip, opts.Outputs, logger, opts.DryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPIO manager: %w", err)
	}

	display, err := NewDisplayPort(opts.DisplayDevice, logger, opts.DryRun)
	if err != nil {
		gpio.Close()
		return nil, fmt.Errorf("failed to create display port: %w", err)
	}

	var sensor analog.Sensor
	if opts.DryRun {
		sensor = analog.NewStatic(DryRunSample)
	} else {
		sensor = NewADC(opts.IIODevice, opts.TemperatureChannel, opts.MoistureChannel, logger)
	}

	m := &Manager{
		gpio:    gpio,
		display: display,
		sensor:  sensor,
		redis:   redisClient,
		logger:  logger,
		ctx:     ctx,
		states:  make(chan outputState, outputStateBuffer),
		done:    make(chan struct{}),
	}
	go m.publishOutputs()
	return m, nil
}

// Sensor returns the analog front end
func (m *Manager) Sensor() analog.Sensor {
	return m.sensor
}

// SetOutput drives an output and queues its new state for Redis
func (m *Manager) SetOutput(out fsm.Output, on bool) error {
	if err := m.gpio.SetOutput(out, on); err != nil {
		return err
	}

	select {
	case m.states <- outputState{out: out, on: on}:
	default:
		m.logger.Printf("Warning: Output state queue full, dropping %s=%v", out, on)
	}
	return nil
}

// Output returns the last level written to an output
func (m *Manager) Output(out fsm.Output) bool {
	return m.gpio.Output(out)
}

// WritePattern writes a segment word to the display
func (m *Manager) WritePattern(pattern uint16) error {
	return m.display.WritePattern(pattern)
}

// WatchButton forwards edges of a button line; see GPIOManager.WatchButton
func (m *Manager) WatchButton(name string, offset int, onEdge EdgeFunc) (bool, error) {
	return m.gpio.WatchButton(name, offset, onEdge)
}

// publishOutputs writes output changes to the outputs hash off the event loop
func (m *Manager) publishOutputs() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			return
		case s, ok := <-m.states:
			if !ok {
				return
			}
			if m.redis == nil {
				continue
			}
			value := "off"
			if s.on {
				value = "on"
			}

			pipe := m.redis.Pipeline()
			pipe.HSet(m.ctx, "smartpot:outputs", s.out.String(), value)
			pipe.Publish(m.ctx, "smartpot:outputs", s.out.String())
			if _, err := pipe.Exec(m.ctx); err != nil {
				m.logger.Printf("Warning: Failed to update %s state in Redis: %v", s.out, err)
			}
		}
	}
}

// InitializeRedisState records every output as off before the machines start
func (m *Manager) InitializeRedisState() error {
	if m.redis == nil {
		return nil
	}

	pipe := m.redis.Pipeline()
	for i := 0; i < fsm.NumOutputs; i++ {
		pipe.HSet(m.ctx, "smartpot:outputs", fsm.Output(i).String(), "off")
	}
	pipe.Publish(m.ctx, "smartpot:outputs", "all")

	if _, err := pipe.Exec(m.ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis output state: %w", err)
	}

	m.logger.Printf("Initialized Redis output state")
	return nil
}

// Close releases all hardware resources
func (m *Manager) Close() error {
	close(m.states)
	<-m.done

	var lastErr error
	if err := m.display.Close(); err != nil {
		m.logger.Printf("Failed to close display: %v", err)
		lastErr = err
	}
	if err := m.gpio.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}
