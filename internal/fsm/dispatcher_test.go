package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback applies Post effects back into the dispatcher and records everything else.
type loopback struct {
	d     *Dispatcher
	other []Effect
	errs  []error
}

func (l *loopback) Execute(_ ServiceID, effects []Effect) {
	for _, e := range effects {
		if e.Op == OpPost {
			if err := l.d.Post(e.To, e.Event); err != nil {
				l.errs = append(l.errs, err)
			}
			continue
		}
		l.other = append(l.other, e)
	}
}

type trace struct {
	log []string
}

func (tr *trace) handler(id ServiceID, react func(Event) []Effect) Handler {
	return func(ev Event) []Effect {
		tr.log = append(tr.log, id.String()+":"+ev.String())
		if react != nil {
			return react(ev)
		}
		return nil
	}
}

func newLoopback(capacity int) (*Dispatcher, *loopback) {
	l := &loopback{}
	d := NewDispatcher(capacity, l)
	l.d = d
	return d, l
}

func TestHighestPriorityRunsFirst(t *testing.T) {
	d, _ := newLoopback(4)
	tr := &trace{}

	require.NoError(t, d.Register(ServicePump, 1, tr.handler(ServicePump, nil)))
	require.NoError(t, d.Register(ServiceDisplay, 5, tr.handler(ServiceDisplay, nil)))
	require.NoError(t, d.Register(ServiceBridge, 3, tr.handler(ServiceBridge, nil)))

	require.NoError(t, d.Post(ServicePump, E(KindWaterPress, 0)))
	require.NoError(t, d.Post(ServiceBridge, E(KindUnitUpdate, 1)))
	require.NoError(t, d.Post(ServiceDisplay, E(KindPressed, 0)))
	require.NoError(t, d.Post(ServiceDisplay, E(KindReleased, 0)))

	assert.Equal(t, 4, d.Drain())
	assert.Equal(t, []string{
		"display:pressed",
		"display:released",
		"bridge:unit-update(1)",
		"pump:water-press",
	}, tr.log)
}

func TestPostsFromHandlerAreQueuedBeforeNextSelection(t *testing.T) {
	d, _ := newLoopback(4)
	tr := &trace{}

	// the low priority service posts to the high priority one, which must run next even though
	// another low priority event is already waiting
	require.NoError(t, d.Register(ServiceDisplay, 9, tr.handler(ServiceDisplay, nil)))
	require.NoError(t, d.Register(ServiceMoisture, 2, tr.handler(ServiceMoisture, func(ev Event) []Effect {
		if ev.Kind == KindTimeout {
			return []Effect{PostTo(ServiceDisplay, E(KindMoistureUpdate, 40))}
		}
		return nil
	})))

	require.NoError(t, d.Post(ServiceMoisture, E(KindTimeout, 0)))
	require.NoError(t, d.Post(ServiceMoisture, E(KindToggleThreshold, 0)))

	d.Drain()
	assert.Equal(t, []string{
		"moisture:timeout",
		"display:moisture-update(40)",
		"moisture:toggle-threshold",
	}, tr.log)
}

func TestPostFailsWhenQueueFull(t *testing.T) {
	d, _ := newLoopback(2)
	require.NoError(t, d.Register(ServicePump, 1, func(Event) []Effect { return nil }))

	require.NoError(t, d.Post(ServicePump, E(KindWaterPress, 0)))
	require.NoError(t, d.Post(ServicePump, E(KindWaterPress, 0)))

	err := d.Post(ServicePump, E(KindWaterPress, 0))
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, 2, d.Pending(ServicePump))

	d.Step()
	assert.NoError(t, d.Post(ServicePump, E(KindWaterPress, 0)), "space frees after a step")
}

func TestQueueIsFIFOAcrossWrap(t *testing.T) {
	d, _ := newLoopback(3)
	var got []int
	require.NoError(t, d.Register(ServiceBridge, 1, func(ev Event) []Effect {
		got = append(got, ev.Param)
		return nil
	}))

	for i := 1; i <= 3; i++ {
		require.NoError(t, d.Post(ServiceBridge, E(KindFrameByteReceived, i)))
	}
	d.Step()
	d.Step()
	require.NoError(t, d.Post(ServiceBridge, E(KindFrameByteReceived, 4)))
	require.NoError(t, d.Post(ServiceBridge, E(KindFrameByteReceived, 5)))
	d.Drain()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d, _ := newLoopback(2)
	nop := func(Event) []Effect { return nil }

	require.NoError(t, d.Register(ServicePump, 1, nop))
	assert.True(t, errors.Is(d.Register(ServicePump, 2, nop), ErrDuplicateService))
	assert.True(t, errors.Is(d.Register(ServiceDisplay, 1, nop), ErrDuplicatePriority))
	assert.True(t, errors.Is(d.Post(ServiceConsole, E(KindInit, 0)), ErrUnknownService))
}

func TestStartPostsInit(t *testing.T) {
	d, _ := newLoopback(1)
	tr := &trace{}
	require.NoError(t, d.Register(ServicePump, 1, tr.handler(ServicePump, nil)))
	require.NoError(t, d.Register(ServiceBridge, 2, tr.handler(ServiceBridge, nil)))

	require.NoError(t, d.Start())
	d.Drain()
	assert.Equal(t, []string{"bridge:init", "pump:init"}, tr.log)

	// a full queue at startup is reported
	require.NoError(t, d.Post(ServicePump, E(KindWaterPress, 0)))
	err := d.Start()
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestNonPostEffectsReachExecutor(t *testing.T) {
	d, l := newLoopback(2)
	require.NoError(t, d.Register(ServicePump, 1, func(ev Event) []Effect {
		return []Effect{Set(OutputPump, true), Arm(TimerPump, 2000)}
	}))
	require.NoError(t, d.Post(ServicePump, E(KindWaterPress, 0)))
	d.Drain()

	assert.Equal(t, []Effect{Set(OutputPump, true), Arm(TimerPump, 2000)}, l.other)
	assert.Empty(t, l.errs)
}
