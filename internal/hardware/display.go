package hardware

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// DisplayPort writes 16-bit segment words to the display driver over spidev.
type DisplayPort struct {
	logger *log.Logger
	dryRun bool

	mu   sync.Mutex
	dev  *os.File
	last uint16
}

// NewDisplayPort opens the spidev node. The driver shifts the word out MSB first.
func NewDisplayPort(device string, logger *log.Logger, dryRun bool) (*DisplayPort, error) {
	dp := &DisplayPort{
		logger: logger,
		dryRun: dryRun,
	}
	if dryRun {
		return dp, nil
	}

	dev, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open display device %s: %w", device, err)
	}
	dp.dev = dev
	logger.Printf("Opened display on %s", device)
	return dp, nil
}

// WritePattern latches a segment word into the display
func (dp *DisplayPort) WritePattern(pattern uint16) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.last = pattern

	if dp.dryRun {
		dp.logger.Printf("DRY RUN: Would write display pattern %#04x", pattern)
		return nil
	}

	if _, err := dp.dev.Write([]byte{byte(pattern >> 8), byte(pattern)}); err != nil {
		return fmt.Errorf("failed to write display pattern: %w", err)
	}
	return nil
}

// Pattern returns the last word written
func (dp *DisplayPort) Pattern() uint16 {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.last
}

// Close blanks the display and closes the device
func (dp *DisplayPort) Close() error {
	if dp.dev == nil {
		return nil
	}
	_ = dp.WritePattern(0)
	return dp.dev.Close()
}
