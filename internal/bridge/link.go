package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"

	"github.com/librescoot/smartpot-service/internal/wire"
)

// Link carries frames to the companion module.
type Link interface {
	Write(f wire.Frame) error
	Close() error
}

// ReceiveFunc is called from the reader goroutine for every non-zero byte. It must not block.
type ReceiveFunc func(b byte)

const (
	openRetries     = 5
	openMaxElapsed  = 10 * time.Second
	readTimeout     = 100 * time.Millisecond
	readBufferBytes = 64
)

// SerialLink is a Link over a serial port.
type SerialLink struct {
	port   serial.Port
	name   string
	logger *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenSerial opens the named port, retrying with exponential backoff, and starts forwarding
// received bytes to rx.
func OpenSerial(ctx context.Context, name string, baud int, logger *log.Logger, rx ReceiveFunc) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed

	var port serial.Port
	err := backoff.Retry(func() error {
		p, err := serial.Open(name, mode)
		if err != nil {
			logger.Printf("Failed to open bridge port %s: %v", name, err)
			return err
		}
		port = p
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, openRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	l := &SerialLink{
		port:   port,
		name:   name,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.readLoop(readCtx, rx)

	logger.Printf("Opened bridge link on %s at %d baud", name, baud)
	return l, nil
}

// Write sends one frame.
func (l *SerialLink) Write(f wire.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.port.Write(f[:])
	if err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", l.name, err)
	}
	if n != wire.FrameSize {
		return fmt.Errorf("short frame write to %s: %d of %d bytes", l.name, n, wire.FrameSize)
	}
	return nil
}

// Close stops the reader and closes the port.
func (l *SerialLink) Close() error {
	l.cancel()
	err := l.port.Close()
	<-l.done
	l.logger.Printf("Closed bridge link on %s", l.name)
	return err
}

func (l *SerialLink) readLoop(ctx context.Context, rx ReceiveFunc) {
	defer close(l.done)
	forwardBytes(ctx, l.port, rx, l.logger)
}

// forwardBytes reads until ctx is done or the reader fails, passing every non-zero byte to rx.
// A zero-length read is a read timeout.
func forwardBytes(ctx context.Context, r io.Reader, rx ReceiveFunc, logger *log.Logger) {
	buf := make([]byte, readBufferBytes)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b != 0 {
				rx(b)
			}
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				logger.Printf("Bridge link read failed: %v", err)
			}
			return
		}
	}
}

// LogLink logs frames instead of sending them. It is used in dry-run mode.
type LogLink struct {
	logger *log.Logger
}

// NewLogLink creates a dry-run link
func NewLogLink(logger *log.Logger) *LogLink {
	return &LogLink{logger: logger}
}

// Write implements Link
func (l *LogLink) Write(f wire.Frame) error {
	l.logger.Printf("DRY RUN: Would send bridge frame %s", f)
	return nil
}

// Close implements Link
func (l *LogLink) Close() error {
	return nil
}
