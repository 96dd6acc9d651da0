package fsm

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultQueueCapacity is the per-service queue size used when none is configured.
const DefaultQueueCapacity = 10

var (
	ErrQueueFull         = errors.New("service queue full")
	ErrUnknownService    = errors.New("unknown service")
	ErrDuplicateService  = errors.New("service already registered")
	ErrDuplicatePriority = errors.New("priority already taken")
)

// Handler runs one event to completion and returns the effects it wants applied.
type Handler func(Event) []Effect

// Executor applies the effects returned by a handler.
type Executor interface {
	Execute(from ServiceID, effects []Effect)
}

// Poster accepts events for a service.
type Poster interface {
	Post(to ServiceID, ev Event) error
}

// queue is a bounded FIFO ring.
type queue struct {
	buf  []Event
	head int
	n    int
}

func (q *queue) push(ev Event) bool {
	if q.n == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
	return true
}

func (q *queue) pop() Event {
	ev := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return ev
}

type service struct {
	id       ServiceID
	priority int
	handler  Handler
	queue    queue
}

// Dispatcher is a priority-ordered registry of services, each owning a FIFO queue.
// It is not safe for concurrent use; all posting happens on the event loop.
type Dispatcher struct {
	capacity int
	exec     Executor
	services []*service // highest priority first
	byID     map[ServiceID]*service
}

// NewDispatcher creates a dispatcher whose queues hold capacity events each.
func NewDispatcher(capacity int, exec Executor) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Dispatcher{
		capacity: capacity,
		exec:     exec,
		byID:     make(map[ServiceID]*service),
	}
}

// SetExecutor replaces the effect executor.
func (d *Dispatcher) SetExecutor(exec Executor) {
	d.exec = exec
}

// Register adds a service. Priorities are static and unique; higher runs first.
func (d *Dispatcher) Register(id ServiceID, priority int, handler Handler) error {
	if _, exists := d.byID[id]; exists {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateService)
	}
	for _, s := range d.services {
		if s.priority == priority {
			return fmt.Errorf("register %s at priority %d (held by %s): %w", id, priority, s.id, ErrDuplicatePriority)
		}
	}

	s := &service{
		id:       id,
		priority: priority,
		handler:  handler,
		queue:    queue{buf: make([]Event, d.capacity)},
	}
	d.byID[id] = s
	d.services = append(d.services, s)
	sort.Slice(d.services, func(i, j int) bool {
		return d.services[i].priority > d.services[j].priority
	})
	return nil
}

// Post enqueues an event for a service. It fails only if the service is unknown or its queue is
// full; the caller decides what to do about it.
func (d *Dispatcher) Post(to ServiceID, ev Event) error {
	s, ok := d.byID[to]
	if !ok {
		return fmt.Errorf("post %s to %s: %w", ev, to, ErrUnknownService)
	}
	if !s.queue.push(ev) {
		return fmt.Errorf("post %s to %s: %w", ev, to, ErrQueueFull)
	}
	return nil
}

// Start posts Init to every registered service.
func (d *Dispatcher) Start() error {
	var errs []error
	for _, s := range d.services {
		if err := d.Post(s.id, Event{Kind: KindInit}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Step delivers one event from the highest-priority non-empty queue and applies the handler's
// effects. It reports whether an event was delivered.
func (d *Dispatcher) Step() bool {
	for _, s := range d.services {
		if s.queue.n == 0 {
			continue
		}
		ev := s.queue.pop()
		effects := s.handler(ev)
		if d.exec != nil && len(effects) > 0 {
			d.exec.Execute(s.id, effects)
		}
		return true
	}
	return false
}

// Drain steps until every queue is empty and returns the number of events delivered.
func (d *Dispatcher) Drain() int {
	n := 0
	for d.Step() {
		n++
	}
	return n
}

// Pending returns the number of queued events for a service.
func (d *Dispatcher) Pending(id ServiceID) int {
	if s, ok := d.byID[id]; ok {
		return s.queue.n
	}
	return 0
}

// Priority returns the registered priority of a service.
func (d *Dispatcher) Priority(id ServiceID) (int, bool) {
	s, ok := d.byID[id]
	if !ok {
		return 0, false
	}
	return s.priority, true
}
