package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/librescoot/smartpot-service/internal/bridge"
	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Outputs is the hardware the effects drive.
type Outputs interface {
	SetOutput(out fsm.Output, on bool) error
	WritePattern(pattern uint16) error
}

// Loop owns the dispatcher and timers and applies the machines' effects. Everything except
// Inbox.Post runs on the goroutine calling Run.
type Loop struct {
	machines   *Machines
	dispatcher *fsm.Dispatcher
	timers     *fsm.TimerService
	inbox      *Inbox
	outputs    Outputs
	link       bridge.Link
	onDrop     func(queue string)
	logger     *log.Logger
}

// NewLoop registers the machines and binds their timers. onDrop may be nil.
func NewLoop(m *Machines, queueCapacity int, inbox *Inbox, outputs Outputs, link bridge.Link, onDrop func(queue string), logger *log.Logger) (*Loop, error) {
	l := &Loop{
		machines: m,
		inbox:    inbox,
		outputs:  outputs,
		link:     link,
		onDrop:   onDrop,
		logger:   logger,
	}
	l.dispatcher = fsm.NewDispatcher(queueCapacity, l)
	l.timers = fsm.NewTimerService(l.dispatcher)

	for id, handler := range m.handlers() {
		if err := l.dispatcher.Register(id, priorities[id], handler); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", id, err)
		}
	}
	for timer, owner := range timerOwners {
		if _, ok := l.dispatcher.Priority(owner); ok {
			l.timers.Bind(timer, owner)
		}
	}
	return l, nil
}

// Start posts Init to every machine and runs them.
func (l *Loop) Start() error {
	if err := l.dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start machines: %w", err)
	}
	l.dispatcher.Drain()
	return nil
}

// Run processes ticks and interrupts until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick()
		case i := <-l.inbox.C():
			l.deliver(i)
			l.dispatcher.Drain()
		}
	}
}

// Tick advances the timers by one tick and runs everything that became ready.
func (l *Loop) Tick() {
	if err := l.timers.Tick(); err != nil {
		l.logger.Printf("Warning: %v", err)
		l.countDrop(err)
	}
	l.dispatcher.Drain()
}

// Flush delivers every interrupt waiting in the inbox without blocking.
func (l *Loop) Flush() {
	for {
		select {
		case i := <-l.inbox.C():
			l.deliver(i)
			l.dispatcher.Drain()
		default:
			return
		}
	}
}

func (l *Loop) deliver(i Interrupt) {
	if err := l.dispatcher.Post(i.To, i.Event); err != nil {
		l.logger.Printf("Warning: Dropping interrupt: %v", err)
		l.countDrop(err)
	}
}

// Execute applies effects in order. Hardware errors are logged and do not stop the loop.
func (l *Loop) Execute(from fsm.ServiceID, effects []fsm.Effect) {
	for _, e := range effects {
		var err error
		switch e.Op {
		case fsm.OpArmTimer:
			err = l.timers.Arm(e.Timer, e.Ticks)
		case fsm.OpPost:
			if err = l.dispatcher.Post(e.To, e.Event); err != nil {
				l.countDrop(err)
			}
		case fsm.OpSetOutput:
			err = l.outputs.SetOutput(e.Output, e.On)
		case fsm.OpWriteDisplay:
			err = l.outputs.WritePattern(e.Pattern)
		case fsm.OpSendFrame:
			err = l.link.Write(e.Frame)
		default:
			err = fmt.Errorf("unknown effect %s", e)
		}
		if err != nil {
			l.logger.Printf("Warning: %s effect %q failed: %v", from, e, err)
		}
	}
}

func (l *Loop) countDrop(err error) {
	if l.onDrop != nil && errors.Is(err, fsm.ErrQueueFull) {
		l.onDrop("service")
	}
}
