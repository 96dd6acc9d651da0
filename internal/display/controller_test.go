package display

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

type readings struct {
	temperature int
	moisture    int
}

func (r *readings) CurrentTemperature() int { return r.temperature }
func (r *readings) CurrentMoisture() int    { return r.moisture }

var (
	pressed  = fsm.E(fsm.KindPressed, 0)
	released = fsm.E(fsm.KindReleased, 0)
	timeout  = fsm.E(fsm.KindTimeout, int(fsm.TimerDisplay))
)

func newController(t *testing.T) (*Controller, *readings) {
	r := &readings{temperature: 21, moisture: 35}
	c := NewController(r, r, log.New(io.Discard, "", 0))
	require.Equal(t, []fsm.Effect{fsm.Display(Blank)}, c.Handle(fsm.E(fsm.KindInit, 0)))
	return c, r
}

// patterns returns the display writes among effects.
func patterns(effects []fsm.Effect) []uint16 {
	var out []uint16
	for _, e := range effects {
		if e.Op == fsm.OpWriteDisplay {
			out = append(out, e.Pattern)
		}
	}
	return out
}

func TestDigits(t *testing.T) {
	assert.Equal(t, uint16(0x5B66), Digits(42))
	assert.Equal(t, uint16(0x3F3F), Digits(0))
	assert.Equal(t, Digits(99), Digits(150))
	assert.Equal(t, Digits(0), Digits(-7))
}

func TestTemperatureRenderingSuppressesRepeats(t *testing.T) {
	c, _ := newController(t)

	effects := c.Handle(fsm.E(fsm.KindUpdateTemperature, 23))
	assert.Equal(t, []uint16{Digits(23)}, patterns(effects))

	assert.Empty(t, c.Handle(fsm.E(fsm.KindUpdateTemperature, 23)))

	effects = c.Handle(fsm.E(fsm.KindUpdateTemperature, 24))
	assert.Equal(t, []uint16{Digits(24)}, patterns(effects))
}

func TestDoubleClickOpensCarousel(t *testing.T) {
	c, _ := newController(t)

	assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerDisplay, LongPressTicks)}, c.Handle(pressed))
	assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerDisplay, DoubleClickTicks)}, c.Handle(released))

	effects := c.Handle(pressed)
	assert.Equal(t, StateFahrenheitSelect, c.State())
	assert.Equal(t, []uint16{GlyphF}, patterns(effects))
	assert.Contains(t, effects, fsm.Arm(fsm.TimerDisplay, CarouselIdleTicks))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindBeginUnitSelect, 0)}, fsm.Posts(effects, fsm.ServiceTemperature))
}

func TestSingleClickTogglesThreshold(t *testing.T) {
	c, _ := newController(t)

	c.Handle(pressed)
	c.Handle(released)
	effects := c.Handle(timeout)

	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindToggleThreshold, 0)}, fsm.Posts(effects, fsm.ServiceMoisture))
}

func TestHoldWaters(t *testing.T) {
	c, _ := newController(t)

	c.Handle(pressed)
	effects := c.Handle(timeout)
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindWaterPress, 0)}, fsm.Posts(effects, fsm.ServicePump))

	// the release that follows the hold is ignored
	assert.Empty(t, c.Handle(released))
	assert.Equal(t, StateWaiting, c.State())
}

func openCarousel(c *Controller) {
	c.Handle(pressed)
	c.Handle(released)
	c.Handle(pressed)
}

func TestCarouselCycles(t *testing.T) {
	c, _ := newController(t)
	openCarousel(c)
	c.Handle(released) // release of the second click does nothing in the select state
	require.Equal(t, StateFahrenheitSelect, c.State())

	steps := []struct {
		state State
		glyph uint16
	}{
		{StateCelsiusSelect, GlyphC},
		{StateMoistureSelect, GlyphP},
		{StateFahrenheitSelect, GlyphF},
	}
	for _, step := range steps {
		assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerDisplay, LongPressTicks)}, c.Handle(pressed))
		effects := c.Handle(released)
		assert.Equal(t, step.state, c.State())
		assert.Equal(t, []uint16{step.glyph}, patterns(effects))
		assert.Contains(t, effects, fsm.Arm(fsm.TimerDisplay, CarouselIdleTicks))
	}
}

func TestIdleTimeoutCommitsFahrenheit(t *testing.T) {
	c, r := newController(t)
	r.temperature = 70
	openCarousel(c)

	effects := c.Handle(timeout)
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindSetUnit, 1),
		fsm.E(fsm.KindEndUnitSelect, 0),
	}, fsm.Posts(effects, fsm.ServiceTemperature))
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindUnitUpdate, 1),
		fsm.E(fsm.KindUnitUpdate, 1),
	}, fsm.Posts(effects, fsm.ServiceBridge))
	assert.Equal(t, []uint16{Digits(70)}, patterns(effects))

	// the committed value counts as shown
	assert.Empty(t, c.Handle(fsm.E(fsm.KindUpdateTemperature, 70)))
}

func TestHoldInCelsiusCommitsCelsius(t *testing.T) {
	c, _ := newController(t)
	openCarousel(c)
	c.Handle(pressed)
	c.Handle(released) // C
	c.Handle(pressed)

	effects := c.Handle(timeout)
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindSetUnit, 0),
		fsm.E(fsm.KindEndUnitSelect, 0),
	}, fsm.Posts(effects, fsm.ServiceTemperature))
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindUnitUpdate, 0),
		fsm.E(fsm.KindUnitUpdate, 0),
	}, fsm.Posts(effects, fsm.ServiceBridge))
}

func TestMoistureView(t *testing.T) {
	c, r := newController(t)
	c.Handle(fsm.E(fsm.KindUpdateTemperature, 21))

	openCarousel(c)
	c.Handle(pressed)
	c.Handle(released) // C
	c.Handle(pressed)
	c.Handle(released) // P

	effects := c.Handle(timeout)
	assert.Equal(t, StateWaitingMoisture, c.State())
	assert.Equal(t, []uint16{Digits(r.moisture)}, patterns(effects))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindEndUnitSelect, 0)}, fsm.Posts(effects, fsm.ServiceTemperature))
	assert.Empty(t, fsm.Posts(effects, fsm.ServiceBridge))

	assert.Empty(t, c.Handle(fsm.E(fsm.KindUpdateTemperature, 22)))
	assert.Equal(t, []uint16{Digits(99)}, patterns(c.Handle(fsm.E(fsm.KindMoistureUpdate, 100))))
	assert.Equal(t, []uint16{Digits(40)}, patterns(c.Handle(fsm.E(fsm.KindMoistureUpdate, 40))))

	// a click leaves the moisture view and the same temperature is drawn again
	c.Handle(pressed)
	c.Handle(released)
	c.Handle(timeout)
	require.Equal(t, StateWaiting, c.State())
	assert.Equal(t, []uint16{Digits(21)}, patterns(c.Handle(fsm.E(fsm.KindUpdateTemperature, 21))))
}

func TestUnhandledEventsAreIgnored(t *testing.T) {
	c, _ := newController(t)

	assert.Empty(t, c.Handle(released))
	assert.Empty(t, c.Handle(timeout))
	assert.Empty(t, c.Handle(fsm.E(fsm.KindMoistureUpdate, 50)))
	assert.Equal(t, StateWaiting, c.State())
}
