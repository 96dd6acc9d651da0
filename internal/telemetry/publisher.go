package telemetry

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// Sink receives snapshots.
type Sink interface {
	Name() string
	Publish(ctx context.Context, s Snapshot) error
}

const (
	breakerFailures = 3
	breakerOpen     = 30 * time.Second
	breakerInterval = time.Minute
	publishTimeout  = 5 * time.Second
)

type guardedSink struct {
	sink    Sink
	breaker *gobreaker.CircuitBreaker
}

// Publisher fans snapshots out to its sinks from its own goroutine. Each sink sits behind a
// circuit breaker so a dead broker does not stall the others.
type Publisher struct {
	sinks     []guardedSink
	snapshots chan Snapshot
	logger    *log.Logger
}

// NewPublisher creates a publisher buffering up to buffer snapshots.
func NewPublisher(buffer int, logger *log.Logger, sinks ...Sink) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	p := &Publisher{
		snapshots: make(chan Snapshot, buffer),
		logger:    logger,
	}
	for _, s := range sinks {
		p.sinks = append(p.sinks, guardedSink{sink: s, breaker: p.newBreaker(s.Name())})
	}
	return p
}

func (p *Publisher) newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: breakerInterval,
		Timeout:  breakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Printf("Telemetry sink %s: %s -> %s", name, from, to)
		},
	})
}

// Offer queues a snapshot without blocking. It reports false when the buffer is full.
func (p *Publisher) Offer(s Snapshot) bool {
	select {
	case p.snapshots <- s:
		return true
	default:
		return false
	}
}

// Run publishes queued snapshots until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.snapshots:
			p.publish(ctx, s)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, s Snapshot) {
	for _, g := range p.sinks {
		_, err := g.breaker.Execute(func() (interface{}, error) {
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			defer cancel()
			return nil, g.sink.Publish(pubCtx, s)
		})
		if err == nil || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			continue
		}
		p.logger.Printf("Warning: Failed to publish snapshot to %s: %v", g.sink.Name(), err)
	}
}
