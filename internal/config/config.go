package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTTopic    string `yaml:"mqtt_topic"`

	MetricsAddr    string `yaml:"metrics_addr"`
	TelemetryTicks int    `yaml:"telemetry_ticks"`

	TickInterval    time.Duration `yaml:"tick_interval"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	InterruptBuffer int           `yaml:"interrupt_buffer"`
	DebounceTicks   int           `yaml:"debounce_ticks"`

	GPIOChip          string `yaml:"gpio_chip"`
	PumpLine          int    `yaml:"pump_line"`
	ThresholdLowLine  int    `yaml:"threshold_low_line"`
	ThresholdHighLine int    `yaml:"threshold_high_line"`
	WaterLowLine      int    `yaml:"water_low_line"`
	ProbeLine         int    `yaml:"probe_line"`
	UserButtonLine    int    `yaml:"user_button_line"`
	ReservoirLine     int    `yaml:"reservoir_line"`

	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`

	DisplayDevice string `yaml:"display_device"`

	IIODevice          string        `yaml:"iio_device"`
	TemperatureChannel int           `yaml:"temperature_channel"`
	MoistureChannel    int           `yaml:"moisture_channel"`
	SensorTimeout      time.Duration `yaml:"sensor_timeout"`

	SuspendTemperatureDuringSelect bool `yaml:"suspend_temperature_during_select"`

	DryRun       bool `yaml:"dry_run"`
	Console      bool `yaml:"console"`
	ConsoleClear bool `yaml:"console_clear"`

	ConfigFile  string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

func New() *Config {
	return &Config{
		RedisHost:          "localhost",
		RedisPort:          6379,
		MQTTClientID:       "smartpot",
		MQTTTopic:          "smartpot/status",
		TelemetryTicks:     5000,
		TickInterval:       time.Millisecond,
		QueueCapacity:      10,
		InterruptBuffer:    64,
		DebounceTicks:      50,
		GPIOChip:           "gpiochip0",
		PumpLine:           17,
		ThresholdLowLine:   22,
		ThresholdHighLine:  23,
		WaterLowLine:       24,
		ProbeLine:          25,
		UserButtonLine:     5,
		ReservoirLine:      6,
		SerialPort:         "/dev/ttyS1",
		SerialBaud:         9600,
		DisplayDevice:      "/dev/spidev0.0",
		IIODevice:          "/sys/bus/iio/devices/iio:device0",
		TemperatureChannel: 0,
		MoistureChannel:    1,
		SensorTimeout:      20 * time.Millisecond,
		DryRun:             false,
	}
}

// Parse reads flags from args. Values from -config are applied first, then any flag given
// explicitly on the command line.
func (c *Config) Parse(args []string) error {
	fs := flag.NewFlagSet("smartpot", flag.ContinueOnError)

	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Optional YAML configuration file")
	fs.BoolVar(&c.ShowVersion, "version", c.ShowVersion, "Print version and exit")

	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis host (empty disables Redis)")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")

	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker,
		"MQTT broker URL, e.g. tcp://broker:1883 (empty disables MQTT)")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client id")
	fs.StringVar(&c.MQTTTopic, "mqtt-topic", c.MQTTTopic, "MQTT topic for status snapshots")

	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr,
		"Listen address for Prometheus metrics (empty disables the endpoint)")
	fs.IntVar(&c.TelemetryTicks, "telemetry-ticks", c.TelemetryTicks,
		"Ticks between status snapshots")

	fs.DurationVar(&c.TickInterval, "tick", c.TickInterval, "Length of one timer tick")
	fs.IntVar(&c.QueueCapacity, "queue-capacity", c.QueueCapacity, "Events per service queue")
	fs.IntVar(&c.InterruptBuffer, "interrupt-buffer", c.InterruptBuffer,
		"Events buffered between input sources and the event loop")
	fs.IntVar(&c.DebounceTicks, "debounce-ticks", c.DebounceTicks, "Button debounce window in ticks")

	fs.StringVar(&c.GPIOChip, "gpio-chip", c.GPIOChip, "GPIO chip name")
	fs.IntVar(&c.PumpLine, "pump-line", c.PumpLine, "GPIO line driving the pump")
	fs.IntVar(&c.ThresholdLowLine, "threshold-low-line", c.ThresholdLowLine, "GPIO line of the low threshold LED")
	fs.IntVar(&c.ThresholdHighLine, "threshold-high-line", c.ThresholdHighLine, "GPIO line of the high threshold LED")
	fs.IntVar(&c.WaterLowLine, "water-low-line", c.WaterLowLine, "GPIO line of the water low LED")
	fs.IntVar(&c.ProbeLine, "probe-line", c.ProbeLine, "GPIO line powering the moisture probe")
	fs.IntVar(&c.UserButtonLine, "user-button-line", c.UserButtonLine, "GPIO line of the user button")
	fs.IntVar(&c.ReservoirLine, "reservoir-line", c.ReservoirLine, "GPIO line of the reservoir float switch")

	fs.StringVar(&c.SerialPort, "serial-port", c.SerialPort, "Serial port of the wireless bridge")
	fs.IntVar(&c.SerialBaud, "serial-baud", c.SerialBaud, "Baud rate of the wireless bridge")

	fs.StringVar(&c.DisplayDevice, "display-device", c.DisplayDevice, "SPI device driving the display")

	fs.StringVar(&c.IIODevice, "iio-device", c.IIODevice, "IIO device directory of the ADC")
	fs.IntVar(&c.TemperatureChannel, "temperature-channel", c.TemperatureChannel, "ADC channel of the thermistor")
	fs.IntVar(&c.MoistureChannel, "moisture-channel", c.MoistureChannel, "ADC channel of the moisture probe")
	fs.DurationVar(&c.SensorTimeout, "sensor-timeout", c.SensorTimeout, "Upper bound on one ADC read")

	fs.BoolVar(&c.SuspendTemperatureDuringSelect, "suspend-temperature-during-select", c.SuspendTemperatureDuringSelect,
		"Stop temperature updates while the unit carousel is open")

	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun,
		"Dry run (log hardware writes, use a fixed sensor reading)")
	fs.BoolVar(&c.Console, "console", c.Console, "Render the status console on stdout and read key commands from stdin")
	fs.BoolVar(&c.ConsoleClear, "console-clear", c.ConsoleClear, "Clear the terminal before each console refresh")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if c.ConfigFile == "" {
		return c.Validate()
	}

	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := c.Load(c.ConfigFile); err != nil {
		return err
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to reapply -%s: %w", name, err)
		}
	}
	return c.Validate()
}

// Load overlays the values found in a YAML file.
func (c *Config) Load(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// Validate checks values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %v", c.TickInterval))
	}
	if c.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity))
	}
	if c.InterruptBuffer <= 0 {
		errs = append(errs, fmt.Errorf("interrupt buffer must be positive, got %d", c.InterruptBuffer))
	}
	if c.DebounceTicks <= 0 {
		errs = append(errs, fmt.Errorf("debounce window must be positive, got %d", c.DebounceTicks))
	}
	if c.TelemetryTicks <= 0 {
		errs = append(errs, fmt.Errorf("telemetry period must be positive, got %d", c.TelemetryTicks))
	}
	return errors.Join(errs...)
}
