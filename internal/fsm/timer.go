package fsm

import (
	"errors"
	"fmt"
)

// TimerService keeps the fixed set of countdown timers. Every timer has one owner; when it runs
// out a Timeout event carrying the timer id is posted to that owner.
type TimerService struct {
	poster    Poster
	owners    [NumTimers]ServiceID
	bound     [NumTimers]bool
	remaining [NumTimers]int
}

// NewTimerService creates a timer service posting timeouts through poster.
func NewTimerService(poster Poster) *TimerService {
	return &TimerService{poster: poster}
}

// Bind assigns the owner of a timer.
func (t *TimerService) Bind(id TimerID, owner ServiceID) {
	t.owners[id] = owner
	t.bound[id] = true
}

// Arm starts a timer, replacing any pending deadline for the same id. A non-positive duration
// expires on the next tick.
func (t *TimerService) Arm(id TimerID, ticks int) error {
	if id < 0 || int(id) >= NumTimers {
		return fmt.Errorf("arm %s: unknown timer", id)
	}
	if !t.bound[id] {
		return fmt.Errorf("arm %s: timer has no owner", id)
	}
	if ticks < 1 {
		ticks = 1
	}
	t.remaining[id] = ticks
	return nil
}

// Stop clears a timer without posting.
func (t *TimerService) Stop(id TimerID) {
	t.remaining[id] = 0
}

// Active reports whether a timer is counting down.
func (t *TimerService) Active(id TimerID) bool {
	return t.remaining[id] > 0
}

// Remaining returns the ticks left on a timer, zero when inactive.
func (t *TimerService) Remaining(id TimerID) int {
	return t.remaining[id]
}

// Tick advances every live timer by one unit. Timers reaching zero are removed and their
// timeouts posted in timer id order.
func (t *TimerService) Tick() error {
	var errs []error
	for i := range t.remaining {
		if t.remaining[i] == 0 {
			continue
		}
		t.remaining[i]--
		if t.remaining[i] > 0 {
			continue
		}
		id := TimerID(i)
		if err := t.poster.Post(t.owners[i], Event{Kind: KindTimeout, Param: int(id)}); err != nil {
			errs = append(errs, fmt.Errorf("timer %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
