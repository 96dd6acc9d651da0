package hardware

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/librescoot/smartpot-service/internal/analog"
)

// ADC reads the thermistor and moisture channels from an IIO device through sysfs.
type ADC struct {
	logger          *log.Logger
	temperaturePath string
	moisturePath    string
}

// NewADC creates an ADC reader for the given IIO device directory and channel numbers.
func NewADC(device string, temperatureChannel, moistureChannel int, logger *log.Logger) *ADC {
	return &ADC{
		logger:          logger,
		temperaturePath: channelPath(device, temperatureChannel),
		moisturePath:    channelPath(device, moistureChannel),
	}
}

func channelPath(device string, channel int) string {
	return filepath.Join(device, fmt.Sprintf("in_voltage%d_raw", channel))
}

// Sample reads both channels. A read that outlives ctx is abandoned.
func (a *ADC) Sample(ctx context.Context) (analog.Sample, error) {
	type result struct {
		sample analog.Sample
		err    error
	}
	done := make(chan result, 1)

	go func() {
		var r result
		t, err := readRaw(a.temperaturePath)
		if err != nil {
			r.err = err
			done <- r
			return
		}
		m, err := readRaw(a.moisturePath)
		if err != nil {
			r.err = err
			done <- r
			return
		}
		r.sample = analog.Sample{Temperature: t, Moisture: m}
		done <- r
	}()

	select {
	case r := <-done:
		return r.sample, r.err
	case <-ctx.Done():
		return analog.Sample{}, fmt.Errorf("ADC read: %w", ctx.Err())
	}
}

// readRaw reads one sysfs raw value, clamped to the 12-bit range.
func readRaw(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid ADC value in %s: %w", path, err)
	}
	if v < 0 {
		v = 0
	}
	if v > analog.MaxRaw {
		v = analog.MaxRaw
	}
	return uint16(v), nil
}
