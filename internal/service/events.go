package service

import (
	"log"
	"sync/atomic"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Interrupt is an event produced outside the event loop: a GPIO edge, a byte from the bridge,
// a console key or a remote command.
type Interrupt struct {
	To    fsm.ServiceID
	Event fsm.Event
}

// Inbox is the bounded hand-off from interrupt producers to the event loop. Producers never
// block; when the inbox is full the event is dropped and counted.
type Inbox struct {
	ch      chan Interrupt
	dropped atomic.Int64
	onDrop  func(queue string)
	logger  *log.Logger
}

// NewInbox creates an inbox holding up to size pending interrupts. onDrop may be nil.
func NewInbox(size int, onDrop func(queue string), logger *log.Logger) *Inbox {
	if size <= 0 {
		size = 1
	}
	return &Inbox{
		ch:     make(chan Interrupt, size),
		onDrop: onDrop,
		logger: logger,
	}
}

// Post offers an event to the loop. Safe for concurrent use.
func (in *Inbox) Post(to fsm.ServiceID, ev fsm.Event) {
	select {
	case in.ch <- Interrupt{To: to, Event: ev}:
	default:
		n := in.dropped.Add(1)
		in.logger.Printf("Warning: Interrupt inbox full, dropped %s for %s (%d total)", ev, to, n)
		if in.onDrop != nil {
			in.onDrop("interrupt")
		}
	}
}

// Dropped returns the number of interrupts lost to a full inbox.
func (in *Inbox) Dropped() int64 {
	return in.dropped.Load()
}

// C returns the receive side for the event loop.
func (in *Inbox) C() <-chan Interrupt {
	return in.ch
}
