// Package analog describes the analog front end the sensor monitors sample from.
package analog

import (
	"context"
	"sync"
)

// MaxRaw is the full-scale value of a 12-bit conversion.
const MaxRaw = 4095

// Sample is one conversion of both analog channels.
type Sample struct {
	Temperature uint16
	Moisture    uint16
}

// Sensor returns the latest raw readings. Sample blocks until the conversion is done or ctx
// expires.
type Sensor interface {
	Sample(ctx context.Context) (Sample, error)
}

// Static is a Sensor returning whatever was last stored in it. It backs dry-run mode and tests.
type Static struct {
	mu     sync.Mutex
	sample Sample
	err    error
	reads  int
}

// NewStatic creates a static sensor holding s.
func NewStatic(s Sample) *Static {
	return &Static{sample: s}
}

// Set replaces the stored sample and clears any stored error.
func (s *Static) Set(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = sample
	s.err = nil
}

// Fail makes subsequent reads return err.
func (s *Static) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Reads returns how many samples were taken.
func (s *Static) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Sample implements Sensor
func (s *Static) Sample(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return Sample{}, s.err
	}
	return s.sample, nil
}
