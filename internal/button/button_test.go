package button

import (
	"io"
	"log"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

var discard = log.New(io.Discard, "", 0)

func down() fsm.Event { return fsm.E(fsm.KindButtonDown, 0) }
func up() fsm.Event   { return fsm.E(fsm.KindButtonUp, 0) }
func timeout(id fsm.TimerID) fsm.Event {
	return fsm.E(fsm.KindTimeout, int(id))
}

func TestUserButtonConfirmsPressAndRelease(t *testing.T) {
	b := NewUserButton(0, discard)

	effects := b.Handle(down())
	assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerUserDebounce, DebounceTicks)}, effects)
	assert.Equal(t, StateConfirmingFall, b.State())

	effects = b.Handle(timeout(fsm.TimerUserDebounce))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindPressed, 0)}, fsm.Posts(effects, fsm.ServiceDisplay))
	assert.Equal(t, StateIdle, b.State())

	b.Handle(up())
	assert.Equal(t, StateConfirmingRise, b.State())
	effects = b.Handle(timeout(fsm.TimerUserDebounce))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindReleased, 0)}, fsm.Posts(effects, fsm.ServiceDisplay))
}

func TestBounceCancelsConfirmation(t *testing.T) {
	b := NewUserButton(0, discard)

	b.Handle(down())
	assert.Empty(t, b.Handle(up()))
	assert.Equal(t, StateIdle, b.State())

	// a stale timeout after cancelling is ignored
	assert.Empty(t, b.Handle(timeout(fsm.TimerUserDebounce)))

	b.Handle(up())
	assert.Empty(t, b.Handle(down()))
	assert.Equal(t, StateIdle, b.State())
}

// harness runs a single debouncer on a real dispatcher and timer service and collects what it
// posts to the display.
type harness struct {
	d      *fsm.Dispatcher
	timers *fsm.TimerService
	got    []fsm.Event
}

func (h *harness) Execute(_ fsm.ServiceID, effects []fsm.Effect) {
	for _, e := range effects {
		switch e.Op {
		case fsm.OpArmTimer:
			_ = h.timers.Arm(e.Timer, e.Ticks)
		case fsm.OpPost:
			h.got = append(h.got, e.Event)
		}
	}
}

func newHarness(t *testing.T, b *Debouncer) *harness {
	h := &harness{}
	h.d = fsm.NewDispatcher(fsm.DefaultQueueCapacity, h)
	h.timers = fsm.NewTimerService(h.d)
	h.timers.Bind(fsm.TimerUserDebounce, fsm.ServiceUserButton)
	require.NoError(t, h.d.Register(fsm.ServiceUserButton, 1, b.Handle))
	return h
}

func (h *harness) ticks(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, h.timers.Tick())
		h.d.Drain()
	}
}

func TestShortGlitchesNeverConfirm(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		h := newHarness(t, NewUserButton(0, discard))

		// alternate edges, each held for less than the window
		pressed := false
		for i := 0; i < 20; i++ {
			if pressed {
				require.NoError(t, h.d.Post(fsm.ServiceUserButton, up()))
			} else {
				require.NoError(t, h.d.Post(fsm.ServiceUserButton, down()))
			}
			pressed = !pressed
			h.d.Drain()
			h.ticks(t, rng.Intn(DebounceTicks-1)+1)
		}
		// return to the starting level inside the window
		if pressed {
			require.NoError(t, h.d.Post(fsm.ServiceUserButton, up()))
			h.d.Drain()
		}
		h.ticks(t, 2*DebounceTicks)

		assert.Empty(t, h.got, "run %d", run)
	}
}

func TestStableEdgeConfirmsAfterWindow(t *testing.T) {
	h := newHarness(t, NewUserButton(0, discard))

	require.NoError(t, h.d.Post(fsm.ServiceUserButton, down()))
	h.d.Drain()
	h.ticks(t, DebounceTicks-1)
	assert.Empty(t, h.got)

	h.ticks(t, 1)
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindPressed, 0)}, h.got)
}

func TestReservoirAnnouncesInitialLevel(t *testing.T) {
	r := NewReservoir(0, true, discard)
	effects := r.Handle(fsm.E(fsm.KindInit, 0))

	assert.Contains(t, effects, fsm.Set(fsm.OutputWaterLow, true))
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindWaterLowUpdate, 1),
		fsm.E(fsm.KindWaterLowUpdate, 1),
	}, fsm.Posts(effects, fsm.ServiceBridge))
	assert.True(t, r.WaterLow())
}

func TestReservoirTracksConfirmedEdges(t *testing.T) {
	r := NewReservoir(20, true, discard)
	r.Handle(fsm.E(fsm.KindInit, 0))

	effects := r.Handle(down())
	assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerWaterDebounce, 20)}, effects)

	effects = r.Handle(timeout(fsm.TimerWaterDebounce))
	assert.False(t, r.WaterLow())
	assert.Contains(t, effects, fsm.Set(fsm.OutputWaterLow, false))
	assert.Len(t, fsm.Posts(effects, fsm.ServiceBridge), 2)

	r.Handle(up())
	effects = r.Handle(timeout(fsm.TimerWaterDebounce))
	assert.True(t, r.WaterLow())
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindWaterLowUpdate, 1),
		fsm.E(fsm.KindWaterLowUpdate, 1),
	}, fsm.Posts(effects, fsm.ServiceBridge))
}
