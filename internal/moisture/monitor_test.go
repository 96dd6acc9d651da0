package moisture

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/smartpot-service/internal/analog"
	"github.com/librescoot/smartpot-service/internal/fsm"
)

var discard = log.New(io.Discard, "", 0)

// rawFor returns a raw reading that converts to exactly percent.
func rawFor(percent int) uint16 {
	return uint16((percent*analog.MaxRaw + 99) / 100)
}

func timeout() fsm.Event {
	return fsm.E(fsm.KindTimeout, int(fsm.TimerMoisture))
}

func newMonitor(percent int) (*Monitor, *analog.Static) {
	sensor := analog.NewStatic(analog.Sample{Moisture: rawFor(percent)})
	return NewMonitor(context.Background(), sensor, 0, discard), sensor
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0))
	assert.Equal(t, 100, Percent(analog.MaxRaw))
	assert.Equal(t, 100, Percent(65535))
	for _, p := range []int{4, 5, 19, 20, 29, 30} {
		assert.Equal(t, p, Percent(rawFor(p)))
	}
}

func TestWateringPolicy(t *testing.T) {
	cases := []struct {
		percent   int
		threshold Threshold
		want      bool
	}{
		{4, Low, false},
		{5, Low, true},
		{19, Low, true},
		{20, Low, false},
		{25, Low, false},
		{25, High, true},
		{29, High, true},
		{30, High, false},
		{0, High, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NeedsWater(c.percent, c.threshold), "%d%% at %s", c.percent, c.threshold)
	}
}

func TestInitActivatesProbe(t *testing.T) {
	m, _ := newMonitor(50)
	effects := m.Handle(fsm.E(fsm.KindInit, 0))

	assert.Equal(t, []fsm.Effect{
		fsm.Set(fsm.OutputThresholdLow, true),
		fsm.Set(fsm.OutputThresholdHigh, false),
		fsm.Set(fsm.OutputProbe, true),
		fsm.Arm(fsm.TimerMoisture, SettleTicks),
	}, effects)
	assert.Equal(t, StateMeasuring, m.State())
}

func TestMeasureCycle(t *testing.T) {
	m, _ := newMonitor(12)
	m.Handle(fsm.E(fsm.KindInit, 0))

	effects := m.Handle(timeout())
	assert.Equal(t, StateWaiting, m.State())
	assert.Equal(t, 12, m.CurrentMoisture())
	assert.Contains(t, effects, fsm.Set(fsm.OutputProbe, false))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindMoistureUpdate, 12)}, fsm.Posts(effects, fsm.ServiceBridge))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindMoistureUpdate, 12)}, fsm.Posts(effects, fsm.ServiceDisplay))
	assert.Equal(t, []fsm.Event{fsm.E(fsm.KindAddWater, WateringTicks)}, fsm.Posts(effects, fsm.ServicePump))
	assert.Equal(t, fsm.Arm(fsm.TimerMoisture, IntervalTicks), effects[len(effects)-1])

	effects = m.Handle(timeout())
	assert.Equal(t, StateMeasuring, m.State())
	assert.Equal(t, []fsm.Effect{
		fsm.Set(fsm.OutputProbe, true),
		fsm.Arm(fsm.TimerMoisture, SettleTicks),
	}, effects)
}

func TestNoWaterAtThresholdOrWithoutProbe(t *testing.T) {
	for _, percent := range []int{20, 4, 0, 80} {
		m, _ := newMonitor(percent)
		m.Handle(fsm.E(fsm.KindInit, 0))
		effects := m.Handle(timeout())
		assert.Empty(t, fsm.Posts(effects, fsm.ServicePump), "%d%%", percent)
	}
}

func TestToggleIsTwoCycle(t *testing.T) {
	m, _ := newMonitor(50)
	initial := m.Handle(fsm.E(fsm.KindInit, 0))[:2]

	effects := m.Handle(fsm.E(fsm.KindToggleThreshold, 0))
	assert.Equal(t, High, m.Threshold())
	assert.Equal(t, []fsm.Effect{
		fsm.Set(fsm.OutputThresholdLow, false),
		fsm.Set(fsm.OutputThresholdHigh, true),
	}, effects[:2])
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindThresholdUpdate, 1),
		fsm.E(fsm.KindThresholdUpdate, 1),
	}, fsm.Posts(effects, fsm.ServiceBridge))

	effects = m.Handle(fsm.E(fsm.KindToggleThreshold, 0))
	assert.Equal(t, Low, m.Threshold())
	assert.Equal(t, initial, effects[:2])
	assert.Equal(t, []fsm.Event{
		fsm.E(fsm.KindThresholdUpdate, 0),
		fsm.E(fsm.KindThresholdUpdate, 0),
	}, fsm.Posts(effects, fsm.ServiceBridge))
}

func TestSetThresholdDoesNotNotifyBridge(t *testing.T) {
	m, _ := newMonitor(25)
	m.Handle(fsm.E(fsm.KindInit, 0))

	effects := m.Handle(fsm.E(fsm.KindSetThreshold, 1))
	assert.Equal(t, High, m.Threshold())
	assert.Empty(t, fsm.Posts(effects, fsm.ServiceBridge))
	assert.Contains(t, effects, fsm.Set(fsm.OutputThresholdHigh, true))

	// 25% waters only in high mode
	effects = m.Handle(timeout())
	assert.Len(t, fsm.Posts(effects, fsm.ServicePump), 1)
}

func TestReadFailureStillCycles(t *testing.T) {
	m, sensor := newMonitor(40)
	m.Handle(fsm.E(fsm.KindInit, 0))
	m.Handle(timeout())
	m.Handle(timeout())

	sensor.Fail(errors.New("adc busy"))
	effects := m.Handle(timeout())
	require.Equal(t, StateWaiting, m.State())
	assert.Equal(t, 40, m.CurrentMoisture())
	assert.Equal(t, []fsm.Effect{
		fsm.Set(fsm.OutputProbe, false),
		fsm.Arm(fsm.TimerMoisture, IntervalTicks),
	}, effects)
}
